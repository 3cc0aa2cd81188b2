package table

import enc "github.com/named-data/ndnd-ncc/std/encoding"

// VALID_DATA_1 is a minimal, well-formed cached-Data wire for name
// /ndn/edu/ucla/ping/123, shared by the pit/cs getter tests.
var VALID_DATA_1 = encodeCsWire(mustName("/ndn/edu/ucla/ping/123"))

func mustName(s string) enc.Name {
	n, err := enc.NameFromStr(s)
	if err != nil {
		panic(err)
	}
	return n
}
