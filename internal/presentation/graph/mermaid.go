package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// GraphOverlay contains session state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart of a flow.
// It applies semantic styling:
// - Initial step: ((Circle))
// - Info: [Rectangle]
// - Stop: [[Subroutine]]
// - Input: [/Parallelogram/]
// - Outcome: {{Hexagon}}, classed by outcome kind
//
// Conditional edges carry the condition label and default edges are dashed.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(flow *domain.FlowDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, step := range flow.Steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[/", "/]"
		switch {
		case step.ID == flow.InitialStep:
			opener, closer = "((", "))"
		case step.Kind == domain.KindInfo:
			opener, closer = "[", "]"
		case step.Kind == domain.KindStop:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(step.ID), closer)

		switch next := step.Next; {
		case !next.IsBranching():
			if next.Target != "" {
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(next.Target))
			}
		default:
			for _, b := range next.Branches {
				safeTo := sanitizeMermaidID(b.Target)
				if b.Default || b.When == nil {
					fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, safeTo)
					continue
				}
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(runtime.BranchLabel(b)), safeTo)
			}
		}
	}

	outcomeIDs := slices.Sorted(maps.Keys(flow.Outcomes))
	for _, id := range outcomeIDs {
		fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", sanitizeMermaidID(id), escape(strings.TrimPrefix(id, domain.OutcomePrefix)))
	}

	if len(outcomeIDs) > 0 {
		sb.WriteString("\n    %% Outcome Styles\n")
		sb.WriteString("    classDef eligible fill:#e8f5e9,stroke:#2e7d32,color:#000;\n")
		sb.WriteString("    classDef ineligible fill:#ffebee,stroke:#c62828,color:#000;\n")
		sb.WriteString("    classDef review fill:#fff8e1,stroke:#f9a825,color:#000;\n")
		for _, id := range outcomeIDs {
			class := "review"
			switch flow.Outcomes[id].Kind {
			case domain.OutcomeEligible:
				class = "eligible"
			case domain.OutcomeIneligible:
				class = "ineligible"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), class)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", ":", "__", " ", "_")

func sanitizeMermaidID(id string) string {
	return idReplacer.Replace(id)
}

// escape keeps labels inside their double quotes.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
