package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region layers

// Layer identifiers used by the default schema.
const (
	LayerVoice   = "h" // persona, tone, emotional and scenic texture
	LayerQuality = "q" // structure, depth, length
	LayerContent = "c" // content elements, opening and closing
)

// Well-known paths.
const (
	PathPersona     = "h.persona"
	PathTone        = "h.tone"
	PathEmotion     = "h.emotion"
	PathScene       = "h.scene"
	PathOriginality = "h.originality"
	PathSensory     = "h.sensory"
	PathStructure   = "q.structure"
	PathDepth       = "q.depth"
	PathLength      = "q.length"
	PathSpecificity = "q.specificity"
	PathReadability = "q.readability"
	PathElements    = "c.elements"
	PathHook        = "c.hook"
	PathClosing     = "c.closing"
)

// ParsePath splits "layer.key". ok is false unless there are exactly two
// non-empty segments.
func ParsePath(path string) (layer, key string, ok bool) {
	parts := strings.Split(path, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// #endregion layers

// #region parameter-set

// ParameterSet is the layered generation configuration. The zero value is an
// empty set ready for use.
type ParameterSet struct {
	layers map[string]map[string]Value
}

// New returns an empty ParameterSet.
func New() ParameterSet {
	return ParameterSet{layers: map[string]map[string]Value{}}
}

// Get returns the value at layer.key, or an absent Value.
func (p ParameterSet) Get(layer, key string) Value {
	if p.layers == nil {
		return Value{}
	}
	return p.layers[layer][key]
}

// GetPath is Get addressed by "layer.key".
func (p ParameterSet) GetPath(path string) Value {
	layer, key, ok := ParsePath(path)
	if !ok {
		return Value{}
	}
	return p.Get(layer, key)
}

// Set writes v at layer.key, creating the layer on first write.
// Setting an absent Value removes the entry.
func (p *ParameterSet) Set(layer, key string, v Value) {
	if p.layers == nil {
		p.layers = map[string]map[string]Value{}
	}
	if v.IsZero() {
		delete(p.layers[layer], key)
		return
	}
	if p.layers[layer] == nil {
		p.layers[layer] = map[string]Value{}
	}
	p.layers[layer][key] = v
}

// SetPath is Set addressed by "layer.key". Malformed paths are ignored.
func (p *ParameterSet) SetPath(path string, v Value) {
	layer, key, ok := ParsePath(path)
	if !ok {
		return
	}
	p.Set(layer, key, v)
}

// Clone returns a deep copy.
func (p ParameterSet) Clone() ParameterSet {
	out := New()
	for layer, entries := range p.layers {
		for key, v := range entries {
			if v.kind == KindSet {
				v = SetOf(v.items...)
			}
			out.Set(layer, key, v)
		}
	}
	return out
}

// Paths lists every populated "layer.key", sorted.
func (p ParameterSet) Paths() []string {
	var out []string
	for layer, entries := range p.layers {
		for key := range entries {
			out = append(out, layer+"."+key)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of populated entries.
func (p ParameterSet) Len() int {
	n := 0
	for _, entries := range p.layers {
		n += len(entries)
	}
	return n
}

// Equal compares two sets entry by entry using Value.Equal.
func (p ParameterSet) Equal(o ParameterSet) bool {
	if p.Len() != o.Len() {
		return false
	}
	for layer, entries := range p.layers {
		for key, v := range entries {
			if !v.Equal(o.Get(layer, key)) {
				return false
			}
		}
	}
	return true
}

// #endregion parameter-set

// #region encoding

func (p ParameterSet) toRaw() map[string]map[string]any {
	out := make(map[string]map[string]any, len(p.layers))
	for layer, entries := range p.layers {
		if len(entries) == 0 {
			continue
		}
		m := make(map[string]any, len(entries))
		for key, v := range entries {
			m[key] = v.raw()
		}
		out[layer] = m
	}
	return out
}

func fromRawSet(raw map[string]map[string]any) (ParameterSet, error) {
	p := New()
	for layer, entries := range raw {
		for key, x := range entries {
			v, err := fromRaw(x)
			if err != nil {
				return ParameterSet{}, fmt.Errorf("%s.%s: %w", layer, key, err)
			}
			p.Set(layer, key, v)
		}
	}
	return p, nil
}

// MarshalJSON encodes scalars as strings and sets as string arrays.
func (p ParameterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toRaw())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *ParameterSet) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode parameter set: %w", err)
	}
	decoded, err := fromRawSet(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p ParameterSet) MarshalYAML() (any, error) {
	return p.toRaw(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *ParameterSet) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode parameter set: %w", err)
	}
	decoded, err := fromRawSet(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// #endregion encoding
