package mgmt

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/named-data/ndnd-ncc/fw/core"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// strategyChoiceForm decodes the query-string form POST/DELETE requests
// carry: the namespace, and (for an assignment) the strategy's short name.
type strategyChoiceForm struct {
	Name     string `schema:"name,required"`
	Strategy string `schema:"strategy"`
}

var strategyChoiceDecoder = schema.NewDecoder()

// ServeHTTP exposes the strategy-choice table as a small debug API:
//
//	GET    /strategy-choice            -> list every assignment
//	POST   /strategy-choice?name=..&strategy=..  -> assign
//	DELETE /strategy-choice?name=..     -> clear
func (m *StrategyChoiceModule) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.serveList(w, r)
	case http.MethodPost:
		m.serveSet(w, r)
	case http.MethodDelete:
		m.serveUnset(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *StrategyChoiceModule) serveList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.List()); err != nil {
		core.Log.Warn(m, "Failed to encode strategy-choice list", "err", err)
	}
}

func (m *StrategyChoiceModule) decodeForm(w http.ResponseWriter, r *http.Request) (strategyChoiceForm, enc.Name, bool) {
	var form strategyChoiceForm
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed query", http.StatusBadRequest)
		return form, nil, false
	}
	if err := strategyChoiceDecoder.Decode(&form, r.Form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return form, nil, false
	}
	name, err := enc.NameFromStr(form.Name)
	if err != nil {
		http.Error(w, "invalid name: "+err.Error(), http.StatusBadRequest)
		return form, nil, false
	}
	return form, name, true
}

func (m *StrategyChoiceModule) serveSet(w http.ResponseWriter, r *http.Request) {
	form, name, ok := m.decodeForm(w, r)
	if !ok {
		return
	}
	if form.Strategy == "" {
		http.Error(w, "missing strategy", http.StatusBadRequest)
		return
	}

	strategy, err := m.Set(name, form.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	core.Log.Info(m, "Assigned strategy", "name", name, "strategy", strategy)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StrategyChoiceEntry{
		Name:     name.String(),
		Strategy: strategy.String(),
	})
}

func (m *StrategyChoiceModule) serveUnset(w http.ResponseWriter, r *http.Request) {
	_, name, ok := m.decodeForm(w, r)
	if !ok {
		return
	}
	m.Unset(name)
	core.Log.Info(m, "Cleared strategy assignment", "name", name)
	w.WriteHeader(http.StatusNoContent)
}
