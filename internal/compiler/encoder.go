package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/dylan-euc/client-side-quiz/internal/dto"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"gopkg.in/yaml.v3"
)

type whenBranch struct {
	When map[string]any `json:"when" yaml:"when"`
	Then string         `json:"then" yaml:"then"`
}

type defaultBranch struct {
	Default string `json:"default" yaml:"default"`
}

// Encode serializes flow into a document that Parse accepts and compiles back
// to an equal FlowDefinition.
func Encode(flow *domain.FlowDefinition, format Format) ([]byte, error) {
	doc := Decompile(flow)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// Decompile is the inverse of Compile.
func Decompile(flow *domain.FlowDefinition) *dto.FlowDocument {
	doc := &dto.FlowDocument{
		ID:          flow.ID,
		Name:        flow.Name,
		Version:     flow.Version,
		Description: flow.Description,
		InitialStep: flow.InitialStep,
		Steps:       make([]dto.StepDocument, 0, len(flow.Steps)),
		Outcomes:    flow.Outcomes,
	}
	for _, s := range flow.Steps {
		doc.Steps = append(doc.Steps, dto.StepDocument{
			ID:          s.ID,
			Type:        string(s.Kind),
			Question:    s.Question,
			Description: s.Description,
			Placeholder: s.Placeholder,
			HelpText:    s.HelpText,
			Options:     s.Options,
			Validation:  s.Validation,
			Shortcode:   s.Shortcode,
			Next:        decompileNext(s.Next),
		})
	}
	return doc
}

func decompileNext(n domain.Next) any {
	if n.Kind == domain.NextLiteral {
		return n.Target
	}
	out := make([]any, 0, len(n.Branches))
	for _, b := range n.Branches {
		if b.Default || b.When == nil {
			out = append(out, defaultBranch{Default: b.Target})
			continue
		}
		out = append(out, whenBranch{When: DecompileCondition(*b.When), Then: b.Target})
	}
	return out
}

// DecompileCondition renders a condition in its operator keyed map form.
func DecompileCondition(c domain.Condition) map[string]any {
	switch c.Op {
	case domain.OpAnd, domain.OpOr:
		items := make([]any, len(c.Conditions))
		for i, sub := range c.Conditions {
			items[i] = DecompileCondition(sub)
		}
		return map[string]any{string(c.Op): items}
	case domain.OpNot:
		if c.Inner == nil {
			return map[string]any{"not": map[string]any{}}
		}
		return map[string]any{"not": DecompileCondition(*c.Inner)}
	}
	m := map[string]any{string(c.Op): c.Value}
	if c.Answer != "" {
		m["answer"] = c.Answer
	}
	return m
}
