package rules

import (
	"sort"

	"github.com/danielpatrickdp/review-tuner/internal/adjust"
	"github.com/danielpatrickdp/review-tuner/internal/params"
)

// #region entry

// Entry is the set of adjustments tied to one weak-point key.
type Entry struct {
	Rules       []adjust.Rule
	Description string
}

// #endregion entry

// #region table

// Table is an immutable weak-point key → Entry lookup. The zero Table is
// empty and every lookup misses.
type Table struct {
	entries map[string]Entry
}

// NewTable copies entries into a new Table.
func NewTable(entries map[string]Entry) Table {
	t := Table{entries: make(map[string]Entry, len(entries))}
	for k, e := range entries {
		t.entries[k] = copyEntry(e)
	}
	return t
}

// Lookup returns the entry for key. Callers get a copy and cannot alter the table.
func (t Table) Lookup(key string) (Entry, bool) {
	e, ok := t.entries[key]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Keys returns all mapped keys, sorted.
func (t Table) Keys() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of mapped keys.
func (t Table) Len() int { return len(t.entries) }

// With returns a new Table with key mapped to e, leaving t untouched.
func (t Table) With(key string, e Entry) Table {
	next := NewTable(t.entries)
	next.entries[key] = copyEntry(e)
	return next
}

func copyEntry(e Entry) Entry {
	out := Entry{Description: e.Description, Rules: make([]adjust.Rule, len(e.Rules))}
	for i, r := range e.Rules {
		ops := make([]string, len(r.Operands))
		copy(ops, r.Operands)
		out.Rules[i] = adjust.Rule{TargetPath: r.TargetPath, Action: r.Action, Operands: ops}
	}
	return out
}

// #endregion table

// #region default-table

// DefaultTable returns the built-in rules over the given schema. Increase
// rules take their scale from the schema so the two cannot drift apart.
func DefaultTable(schema params.Schema) Table {
	inc := func(path string) adjust.Rule {
		return adjust.Rule{TargetPath: path, Action: adjust.ActionIncrease, Operands: schema.Scale(path)}
	}
	rec := func(path, v string) adjust.Rule {
		return adjust.Rule{TargetPath: path, Action: adjust.ActionRecommend, Operands: []string{v}}
	}
	oneOf := func(path string, vs ...string) adjust.Rule {
		return adjust.Rule{TargetPath: path, Action: adjust.ActionRecommendAny, Operands: vs}
	}
	contains := func(v string) adjust.Rule {
		return adjust.Rule{TargetPath: params.PathElements, Action: adjust.ActionEnsureContains, Operands: []string{v}}
	}
	notEmpty := func(path, v string) adjust.Rule {
		return adjust.Rule{TargetPath: path, Action: adjust.ActionEnsureNotEmpty, Operands: []string{v}}
	}

	return NewTable(map[string]Entry{
		// voice axis
		"H_scene": {
			Rules:       []adjust.Rule{inc(params.PathScene), contains("surroundings")},
			Description: "scene description is thin; add concrete on-site moments",
		},
		"H_emotion": {
			Rules:       []adjust.Rule{inc(params.PathEmotion), oneOf(params.PathTone, "enthusiastic", "friendly")},
			Description: "emotional expression is flat; let the reviewer react",
		},
		"H_originality": {
			Rules:       []adjust.Rule{inc(params.PathOriginality), oneOf(params.PathHook, "episode", "scene")},
			Description: "reads like a template; lead with a personal episode",
		},
		"H_persona": {
			Rules:       []adjust.Rule{notEmpty(params.PathPersona, "couple")},
			Description: "no clear traveler persona",
		},
		"H_sensory": {
			Rules:       []adjust.Rule{inc(params.PathSensory), contains("view")},
			Description: "few sensory details; describe sights, sounds and smells",
		},

		// quality axis
		"Q_structure": {
			Rules:       []adjust.Rule{oneOf(params.PathStructure, "highlight", "problem_solution")},
			Description: "structure is hard to follow; switch to a highlight-first outline",
		},
		"Q_depth": {
			Rules:       []adjust.Rule{inc(params.PathDepth)},
			Description: "information is shallow; go deeper on each facility",
		},
		"Q_length": {
			Rules:       []adjust.Rule{inc(params.PathLength)},
			Description: "too short to be useful",
		},
		"Q_specificity": {
			Rules:       []adjust.Rule{inc(params.PathSpecificity), contains("price")},
			Description: "lacks concrete numbers and prices",
		},
		"Q_readability": {
			Rules:       []adjust.Rule{inc(params.PathReadability), rec(params.PathTone, "calm")},
			Description: "hard to read; use a calmer, plainer register",
		},
		"Q_tone": {
			Rules:       []adjust.Rule{oneOf(params.PathTone, "friendly", "candid")},
			Description: "tone does not fit a review",
		},

		// content axis
		"C_breakfast": {
			Rules:       []adjust.Rule{contains("breakfast")},
			Description: "breakfast is not covered",
		},
		"C_bath": {
			Rules:       []adjust.Rule{contains("bath")},
			Description: "bath and spa facilities are not covered",
		},
		"C_access": {
			Rules:       []adjust.Rule{contains("access")},
			Description: "access from the station is not covered",
		},
		"C_service": {
			Rules:       []adjust.Rule{contains("service")},
			Description: "staff and service are not covered",
		},
		"C_price": {
			Rules:       []adjust.Rule{contains("price"), inc(params.PathSpecificity)},
			Description: "value for money is not discussed",
		},
		"C_surroundings": {
			Rules:       []adjust.Rule{contains("surroundings"), contains("tips")},
			Description: "nothing about the neighborhood",
		},
		"C_hook": {
			Rules:       []adjust.Rule{notEmpty(params.PathHook, "scene")},
			Description: "opening does not draw the reader in",
		},
		"C_closing": {
			Rules:       []adjust.Rule{notEmpty(params.PathClosing, "recommendation")},
			Description: "ending lacks a clear recommendation",
		},
	})
}

// #endregion default-table
