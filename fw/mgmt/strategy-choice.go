// Package mgmt exposes the forwarder's runtime management surface: the
// namespace-to-strategy assignment table, over a small debug HTTP API
// rather than the full NDN management-Interest protocol (packet parsing
// and the signed command-Interest wire format are out of this module's
// scope; see its defn/encoding callers for what is in scope).
package mgmt

import (
	"fmt"

	"github.com/named-data/ndnd-ncc/fw/defn"
	"github.com/named-data/ndnd-ncc/fw/fw"
	"github.com/named-data/ndnd-ncc/fw/table"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// StrategyChoiceEntry is one namespace's resolved strategy assignment,
// the shape the HTTP surface lists and returns.
type StrategyChoiceEntry struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// StrategyChoiceModule is the management surface over a FibStrategyTable's
// strategy-choice half: assigning, clearing, and listing which forwarding
// strategy governs each namespace.
type StrategyChoiceModule struct {
	fib *table.FibStrategyTable
}

// NewStrategyChoiceModule constructs a StrategyChoiceModule over fib.
func NewStrategyChoiceModule(fib *table.FibStrategyTable) *StrategyChoiceModule {
	return &StrategyChoiceModule{fib: fib}
}

// String identifies this module as a core.Log subject.
func (m *StrategyChoiceModule) String() string { return "mgmt-strategy-choice" }

// Set assigns name the latest version registered for strategyName,
// returning the fully versioned strategy name actually assigned.
func (m *StrategyChoiceModule) Set(name enc.Name, strategyName string) (enc.Name, error) {
	versions, ok := fw.StrategyVersions[strategyName]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("unknown strategy %q", strategyName)
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v > latest {
			latest = v
		}
	}

	strategy := make(enc.Name, 0, len(defn.STRATEGY_PREFIX)+2)
	strategy = append(strategy, defn.STRATEGY_PREFIX...)
	strategy = append(strategy, enc.NewGenericComponent(strategyName), enc.NewVersionComponent(latest))

	m.fib.SetStrategyEnc(name, strategy)
	return strategy, nil
}

// Unset clears name's explicit strategy assignment; lookups under it
// revert to whichever ancestor (if any) carries an assignment.
func (m *StrategyChoiceModule) Unset(name enc.Name) {
	m.fib.UnSetStrategyEnc(name)
}

// List returns every namespace carrying an explicit strategy assignment.
func (m *StrategyChoiceModule) List() []StrategyChoiceEntry {
	raw := m.fib.GetAllForwardingStrategies()
	out := make([]StrategyChoiceEntry, 0, len(raw))
	for _, e := range raw {
		out = append(out, StrategyChoiceEntry{
			Name:     e.Name().String(),
			Strategy: e.GetStrategy().String(),
		})
	}
	return out
}
