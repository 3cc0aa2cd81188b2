package table

import (
	"github.com/cespare/xxhash"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// nameHash hashes an encoded name's wire bytes into a table key. Used by
// the Pit and the Measurements tree, both of which are indexed by name
// rather than by a structural trie - the teacher's own choice of xxhash
// for exactly this purpose.
func nameHash(name enc.Name) uint64 {
	h := xxhash.New()
	for _, c := range name {
		h.Write(c.Bytes())
	}
	return h.Sum64()
}
