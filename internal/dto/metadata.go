package dto

import (
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// FlowDocument is the on-disk shape of a flow definition.
// It uses "mapstructure" tags to match the camelCase YAML/JSON keys (initialStep, helpText).
type FlowDocument struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Version     string `json:"version" yaml:"version" mapstructure:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	InitialStep string `json:"initialStep" yaml:"initialStep" mapstructure:"initialStep"`

	Steps    []StepDocument            `json:"steps" yaml:"steps" mapstructure:"steps"`
	Outcomes map[string]domain.Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty" mapstructure:"outcomes"`
}

// StepDocument is the on-disk shape of a step.
//
// Next is either a string or a list of branches, each one of {when, then} or
// {default}. Conditions are nested maps keyed by operator. The compiler turns
// both into the tagged domain types.
type StepDocument struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Type        string `json:"type" yaml:"type" mapstructure:"type"`
	Question    string `json:"question" yaml:"question" mapstructure:"question"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty" mapstructure:"placeholder"`

	HelpText   *domain.HelpText        `json:"helpText,omitempty" yaml:"helpText,omitempty" mapstructure:"helpText"`
	Options    []domain.StepOption     `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	Validation *domain.ValidationRules `json:"validation,omitempty" yaml:"validation,omitempty" mapstructure:"validation"`
	Shortcode  string                  `json:"shortcode,omitempty" yaml:"shortcode,omitempty" mapstructure:"shortcode"`

	Next any `json:"next" yaml:"next" mapstructure:"next"`
}

// BranchDocument is one entry of a branching next.
type BranchDocument struct {
	When    map[string]any `json:"when,omitempty" yaml:"when,omitempty" mapstructure:"when"`
	Then    string         `json:"then,omitempty" yaml:"then,omitempty" mapstructure:"then"`
	Default *string        `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}
