package compat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ricesearch/kgeval/internal/kg"
)

// document is the on-disk form of a Table. Tables are always written in the
// order dom_dom, dom_ran, ran_dom, ran_ran.
type document struct {
	Params    Params        `json:"params"`
	Relations []kg.Relation `json:"relations"`
	Tables    []tableRecord `json:"tables"`
}

type tableRecord struct {
	Table   string  `json:"table"`
	Entries []entry `json:"entries"`
}

type entry struct {
	Relation   kg.Relation   `json:"relation"`
	Compatible []kg.Relation `json:"compatible"`
}

// Encode writes t as JSON.
func Encode(w io.Writer, t *Table) error {
	doc := document{
		Params:    t.Params,
		Relations: append([]kg.Relation{}, t.Order...),
		Tables:    make([]tableRecord, 0, len(Kinds)),
	}
	for _, k := range Kinds {
		rec := tableRecord{Table: k.String(), Entries: make([]entry, 0, len(t.Order))}
		for _, r := range t.Order {
			rec.Entries = append(rec.Entries, entry{
				Relation:   r,
				Compatible: append([]kg.Relation{}, t.List(k, r)...),
			})
		}
		doc.Tables = append(doc.Tables, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a table written by Encode.
func Decode(r io.Reader) (*Table, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding compatibility table: %w", err)
	}
	if len(doc.Tables) != len(Kinds) {
		return nil, fmt.Errorf("decoding compatibility table: %d tables, want %d", len(doc.Tables), len(Kinds))
	}

	t := NewTable(doc.Params, doc.Relations)
	for _, k := range Kinds {
		rec := doc.Tables[k]
		if rec.Table != k.String() {
			return nil, fmt.Errorf("decoding compatibility table: record %d is %q, want %q", k, rec.Table, k.String())
		}
		for _, e := range rec.Entries {
			t.Set(k, e.Relation, e.Compatible)
		}
	}
	// Relations listed in the order but missing from a record still get an
	// empty entry.
	for _, r := range t.Order {
		for _, k := range Kinds {
			if t.lists[k][r] == nil {
				t.Set(k, r, nil)
			}
		}
	}
	return t, nil
}
