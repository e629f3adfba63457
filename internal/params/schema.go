package params

import (
	"errors"
	"fmt"
	"sort"
)

// #region domain

// DomainKind describes the value space of a parameter.
type DomainKind int

const (
	DomainOrdered  DomainKind = iota // totally ordered scale, e.g. I1 < I2 < I3
	DomainCategory                   // unordered category set
	DomainSet                        // set of content-element identifiers
)

// Domain is the declared value space for one path.
type Domain struct {
	Kind   DomainKind
	Values []string
}

// Index returns the position of v in the domain, or -1.
func (d Domain) Index(v string) int {
	for i, x := range d.Values {
		if x == v {
			return i
		}
	}
	return -1
}

// Allows reports whether v is a legal member of the domain.
func (d Domain) Allows(v string) bool {
	return d.Index(v) >= 0
}

// #endregion domain

// #region schema

// Schema maps "layer.key" to its Domain.
type Schema map[string]Domain

// DefaultSchema returns the hotel-review parameter domains.
func DefaultSchema() Schema {
	return Schema{
		PathPersona:     {Kind: DomainCategory, Values: []string{"couple", "family", "solo", "business", "friends", "senior"}},
		PathTone:        {Kind: DomainCategory, Values: []string{"friendly", "enthusiastic", "calm", "candid", "elegant"}},
		PathEmotion:     {Kind: DomainOrdered, Values: []string{"E1", "E2", "E3"}},
		PathScene:       {Kind: DomainOrdered, Values: []string{"S1", "S2", "S3"}},
		PathOriginality: {Kind: DomainOrdered, Values: []string{"I1", "I2", "I3"}},
		PathSensory:     {Kind: DomainOrdered, Values: []string{"V1", "V2", "V3"}},
		PathStructure:   {Kind: DomainCategory, Values: []string{"timeline", "highlight", "problem_solution", "comparison", "qa"}},
		PathDepth:       {Kind: DomainOrdered, Values: []string{"D1", "D2", "D3"}},
		PathLength:      {Kind: DomainOrdered, Values: []string{"L1", "L2", "L3"}},
		PathSpecificity: {Kind: DomainOrdered, Values: []string{"P1", "P2", "P3"}},
		PathReadability: {Kind: DomainOrdered, Values: []string{"R1", "R2", "R3"}},
		PathElements: {Kind: DomainSet, Values: []string{
			"rooms", "breakfast", "bath", "access", "service", "price",
			"surroundings", "facilities", "view", "tips",
		}},
		PathHook:    {Kind: DomainCategory, Values: []string{"scene", "question", "conclusion", "episode"}},
		PathClosing: {Kind: DomainCategory, Values: []string{"recommendation", "summary", "tip"}},
	}
}

// Domain looks up the domain declared for path.
func (s Schema) Domain(path string) (Domain, bool) {
	d, ok := s[path]
	return d, ok
}

// Scale returns the ordered values for path, or nil if path is not an
// ordered scale.
func (s Schema) Scale(path string) []string {
	d, ok := s[path]
	if !ok || d.Kind != DomainOrdered {
		return nil
	}
	out := make([]string, len(d.Values))
	copy(out, d.Values)
	return out
}

// Validate checks every populated entry that has a declared domain. Entries
// without a declared domain are accepted as-is.
func (s Schema) Validate(p ParameterSet) error {
	var errs []error
	for _, path := range p.Paths() {
		d, ok := s[path]
		if !ok {
			continue
		}
		v := p.GetPath(path)
		switch d.Kind {
		case DomainOrdered, DomainCategory:
			str, ok := v.Str()
			if !ok {
				errs = append(errs, fmt.Errorf("%s: expected scalar, got %s", path, v.Kind()))
				continue
			}
			if !d.Allows(str) {
				errs = append(errs, fmt.Errorf("%s: %q not in %v", path, str, d.Values))
			}
		case DomainSet:
			if v.Kind() != KindSet {
				errs = append(errs, fmt.Errorf("%s: expected set, got %s", path, v.Kind()))
				continue
			}
			for _, it := range v.Items() {
				if !d.Allows(it) {
					errs = append(errs, fmt.Errorf("%s: element %q not in %v", path, it, d.Values))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Paths returns the declared paths, sorted.
func (s Schema) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// #endregion schema

// #region defaults

// DefaultSettings returns the baseline global parameter set.
func DefaultSettings() ParameterSet {
	p := New()
	p.SetPath(PathPersona, Scalar("couple"))
	p.SetPath(PathTone, Scalar("friendly"))
	p.SetPath(PathEmotion, Scalar("E1"))
	p.SetPath(PathScene, Scalar("S1"))
	p.SetPath(PathOriginality, Scalar("I1"))
	p.SetPath(PathStructure, Scalar("timeline"))
	p.SetPath(PathDepth, Scalar("D1"))
	p.SetPath(PathLength, Scalar("L2"))
	p.SetPath(PathSpecificity, Scalar("P1"))
	p.SetPath(PathReadability, Scalar("R2"))
	p.SetPath(PathElements, SetOf("rooms", "service"))
	p.SetPath(PathClosing, Scalar("recommendation"))
	return p
}

// #endregion defaults
