package graph

import (
	"fmt"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []string
	CurrentStep  string
}

// OverlayFor builds the overlay of a session snapshot.
func OverlayFor(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{CurrentStep: s.CurrentStepID}
}

// GenerateMermaid produces a Mermaid flowchart of the flow.
// It applies semantic styling:
// - Start: ((Circle))
// - Question: [/Parallelogram/]
// - Condition: {Rhombus}
// - Wait: {{Hexagon}}
// - Template, Assign: [[Subroutine]]
// - Default: [Rectangle]
// Steps and edges are written in declaration order so the output is stable.
func GenerateMermaid(flow *domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	options := map[string]string{}
	for _, step := range flow.Steps {
		safeID := sanitizeMermaidID(step.ID)
		opener, closer := "[", "]"
		label := step.ID

		switch cfg := step.Config.(type) {
		case domain.StartConfig:
			opener, closer = "((", "))"
		case domain.QuestionConfig:
			opener, closer = "[/", "/]"
			for _, o := range cfg.Options {
				options[step.ID+"\x00"+o.ID] = o.Label
			}
		case domain.ConditionConfig:
			opener, closer = "{", "}"
			label = fmt.Sprintf("%s <br/> %s %s %s", step.ID, cfg.Variable, cfg.Operator, cfg.Value)
		case domain.WaitConfig:
			opener, closer = "{{", "}}"
			label = fmt.Sprintf("%s <br/> ⏱️ %d %s", step.ID, cfg.Duration, cfg.Unit)
		case domain.TemplateConfig, domain.AssignConversationConfig:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)
	}

	for _, c := range flow.Connections {
		from, to := sanitizeMermaidID(c.From), sanitizeMermaidID(c.To)
		switch {
		case c.Label != "":
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escapeLabel(c.Label), to)
		case c.Option != "":
			text := c.Option
			if label, ok := options[c.From+"\x00"+c.Option]; ok {
				text = label
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escapeLabel(text), to)
		default:
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high contrast on light backgrounds whatever the theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentStep != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
