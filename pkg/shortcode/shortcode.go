// Package shortcode holds the vocabulary of reference tags ("shortcodes") that
// flows attach to answers for downstream systems.
//
// A Vocabulary is built once and is read-only afterwards.
package shortcode

import (
	"fmt"
	"sort"
	"time"
)

// ValueType is the expected type of an answer tagged with a shortcode.
type ValueType string

const (
	TypeString     ValueType = "string"
	TypeNumber     ValueType = "number"
	TypeBoolean    ValueType = "boolean"
	TypeStringList ValueType = "string[]"
	TypeDate       ValueType = "date"
)

// Category groups shortcodes for listings.
type Category string

const (
	Demographics Category = "demographics"
	Medical      Category = "medical"
	Lifestyle    Category = "lifestyle"
	Goals        Category = "goals"
	System       Category = "system"
)

// Definition describes one shortcode.
type Definition struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Type        ValueType `json:"type"`
	Category    Category  `json:"category"`
}

// Vocabulary is an immutable set of shortcode definitions.
type Vocabulary struct {
	byCode map[string]Definition
	codes  []string
}

// New builds a vocabulary. Duplicate codes are an error.
func New(defs ...Definition) (*Vocabulary, error) {
	v := &Vocabulary{byCode: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Code == "" {
			return nil, fmt.Errorf("shortcode without code: %q", d.Description)
		}
		if _, dup := v.byCode[d.Code]; dup {
			return nil, fmt.Errorf("duplicate shortcode %q", d.Code)
		}
		v.byCode[d.Code] = d
		v.codes = append(v.codes, d.Code)
	}
	sort.Strings(v.codes)
	return v, nil
}

var defaultVocabulary = mustNew(defaults...)

func mustNew(defs ...Definition) *Vocabulary {
	v, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return v
}

// Default returns the vocabulary used by the bundled flows.
func Default() *Vocabulary { return defaultVocabulary }

// Lookup returns the definition of code.
func (v *Vocabulary) Lookup(code string) (Definition, bool) {
	d, ok := v.byCode[code]
	return d, ok
}

// Valid reports whether code is part of the vocabulary.
func (v *Vocabulary) Valid(code string) bool {
	_, ok := v.byCode[code]
	return ok
}

// Codes returns every code, sorted.
func (v *Vocabulary) Codes() []string {
	out := make([]string, len(v.codes))
	copy(out, v.codes)
	return out
}

// ByCategory returns the sorted codes of a category.
func (v *Vocabulary) ByCategory(c Category) []string {
	var out []string
	for _, code := range v.codes {
		if v.byCode[code].Category == c {
			out = append(out, code)
		}
	}
	return out
}

// Conforms reports whether value has the shape the shortcode expects.
// Unknown codes and nil values conform.
func (v *Vocabulary) Conforms(code string, value any) bool {
	d, ok := v.byCode[code]
	if !ok || value == nil {
		return true
	}
	switch d.Type {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeStringList:
		switch items := value.(type) {
		case []string:
			return true
		case []any:
			for _, it := range items {
				if _, ok := it.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	}
	return true
}
