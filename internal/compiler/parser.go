package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dylan-euc/client-side-quiz/internal/dto"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the text encoding of a flow document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from a file extension. Unknown extensions are YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parser is responsible for converting raw flow documents into FlowDefinitions.
// It decodes and compiles; structural validation is the registry's job.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes data as JSON when it starts with '{', otherwise as YAML.
func (p *Parser) Parse(data []byte) (*domain.FlowDefinition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return p.ParseFormat(data, FormatJSON)
	}
	return p.ParseFormat(data, FormatYAML)
}

// ParseFormat decodes data in the given format.
func (p *Parser) ParseFormat(data []byte, format Format) (*domain.FlowDefinition, error) {
	var raw map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse flow json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse flow yaml: %w", err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("empty flow document")
	}

	var doc dto.FlowDocument
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	return Compile(&doc)
}

// Compile turns a decoded document into a FlowDefinition.
func Compile(doc *dto.FlowDocument) (*domain.FlowDefinition, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("flow missing id")
	}

	flow := &domain.FlowDefinition{
		ID:          doc.ID,
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		InitialStep: doc.InitialStep,
		Steps:       make([]domain.Step, 0, len(doc.Steps)),
		Outcomes:    make(map[string]domain.Outcome, len(doc.Outcomes)),
	}
	for id, o := range doc.Outcomes {
		flow.Outcomes[id] = o
	}

	for i, sd := range doc.Steps {
		next, err := compileNext(sd.Next)
		if err != nil {
			return nil, fmt.Errorf("flow %q: steps[%d] (%s): %w", doc.ID, i, sd.ID, err)
		}
		flow.Steps = append(flow.Steps, domain.Step{
			ID:          sd.ID,
			Kind:        domain.StepKind(sd.Type),
			Question:    sd.Question,
			Description: sd.Description,
			Placeholder: sd.Placeholder,
			HelpText:    sd.HelpText,
			Options:     sd.Options,
			Validation:  sd.Validation,
			Shortcode:   sd.Shortcode,
			Next:        next,
		})
	}
	return flow, nil
}

func compileNext(raw any) (domain.Next, error) {
	switch v := raw.(type) {
	case nil:
		return domain.End(), nil
	case string:
		return domain.Goto(v), nil
	case []any:
		branches := make([]domain.Branch, 0, len(v))
		for i, item := range v {
			b, err := compileBranch(item)
			if err != nil {
				return domain.Next{}, fmt.Errorf("next[%d]: %w", i, err)
			}
			branches = append(branches, b)
		}
		return domain.Branches(branches...), nil
	}
	return domain.Next{}, fmt.Errorf("next must be a string or a list of branches, got %T", raw)
}

func compileBranch(raw any) (domain.Branch, error) {
	var bd dto.BranchDocument
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &bd, ErrorUnused: true})
	if err != nil {
		return domain.Branch{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Branch{}, err
	}

	if bd.Default != nil {
		if bd.When != nil || bd.Then != "" {
			return domain.Branch{}, fmt.Errorf("default branch cannot have when/then")
		}
		return domain.Otherwise(*bd.Default), nil
	}
	if bd.When == nil {
		return domain.Branch{}, fmt.Errorf("branch needs either when/then or default")
	}
	cond, err := CompileCondition(bd.When)
	if err != nil {
		return domain.Branch{}, fmt.Errorf("when: %w", err)
	}
	return domain.When(cond, bd.Then), nil
}

// CompileCondition turns a map keyed by operator into a Condition.
// Exactly one operator key is allowed, plus "answer" on leaf conditions.
func CompileCondition(raw map[string]any) (domain.Condition, error) {
	var (
		op      domain.Op
		operand any
		ref     string
		hasRef  bool
	)
	for k, v := range raw {
		if k == "answer" {
			s, ok := v.(string)
			if !ok || s == "" {
				return domain.Condition{}, fmt.Errorf("answer must be a step id")
			}
			ref, hasRef = s, true
			continue
		}
		candidate := domain.Op(k)
		if !candidate.IsLeaf() && !candidate.IsCombinator() {
			return domain.Condition{}, fmt.Errorf("unknown operator %q", k)
		}
		if op != "" {
			return domain.Condition{}, fmt.Errorf("conflicting operators %q and %q", op, candidate)
		}
		op, operand = candidate, v
	}
	if op == "" {
		return domain.Condition{}, fmt.Errorf("condition has no operator")
	}
	if hasRef && op.IsCombinator() {
		return domain.Condition{}, fmt.Errorf("answer cannot be combined with %q", op)
	}

	switch op {
	case domain.OpAnd, domain.OpOr:
		items, ok := operand.([]any)
		if !ok {
			return domain.Condition{}, fmt.Errorf("%s expects a list of conditions", op)
		}
		conds := make([]domain.Condition, 0, len(items))
		for i, item := range items {
			m, ok := asMap(item)
			if !ok {
				return domain.Condition{}, fmt.Errorf("%s[%d]: expected a condition", op, i)
			}
			c, err := CompileCondition(m)
			if err != nil {
				return domain.Condition{}, fmt.Errorf("%s[%d]: %w", op, i, err)
			}
			conds = append(conds, c)
		}
		return domain.Condition{Op: op, Conditions: conds}, nil
	case domain.OpNot:
		m, ok := asMap(operand)
		if !ok {
			return domain.Condition{}, fmt.Errorf("not expects a condition")
		}
		inner, err := CompileCondition(m)
		if err != nil {
			return domain.Condition{}, fmt.Errorf("not: %w", err)
		}
		return domain.Not(inner), nil
	}

	value := normalizeNumber(operand)
	if op.IsNumeric() {
		if _, ok := value.(float64); !ok {
			return domain.Condition{}, fmt.Errorf("%s expects a number, got %T", op, operand)
		}
	}
	if op == domain.OpMatches {
		if _, ok := value.(string); !ok {
			return domain.Condition{}, fmt.Errorf("matches expects a pattern string, got %T", operand)
		}
	}
	return domain.Condition{Op: op, Value: value, Answer: ref}, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// normalizeNumber converts YAML/JSON numbers to float64 so operands have one
// numeric representation.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}
