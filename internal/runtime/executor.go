package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// Outcome is the result of executing one step.
type Outcome struct {
	Actions  []domain.Action
	Next     string            // Empty when the graph is exhausted or the step is a question
	Suspend  domain.Suspension // Non-empty halts the loop
	Bindings domain.Bindings
	DeadEnd  bool // Condition step found neither a labeled nor a fallback edge
}

// execute runs a single step against the session bindings.
func (e *Engine) execute(ctx context.Context, step domain.Step, s *domain.Session) (Outcome, error) {
	b := s.Bindings
	out := Outcome{Bindings: b}
	phone := b.String(domain.KeyPhone)

	switch cfg := step.Config.(type) {
	case domain.StartConfig:
		out.Next, _ = e.nav.NextUnconditional(step.ID)

	case domain.SendMessageConfig:
		out.Actions = append(out.Actions, domain.NewSendWhatsApp(phone, Interpolate(cfg.Message, b)))
		out.Next, _ = e.nav.NextUnconditional(step.ID)

	case domain.QuestionConfig:
		out.Actions = append(out.Actions, domain.NewSendWhatsApp(phone, questionText(cfg, b)))
		out.Suspend = domain.SuspendQuestion

	case domain.WaitConfig:
		unit := cfg.Unit
		if unit == "" {
			unit = domain.UnitMinutes
		}
		out.Actions = append(out.Actions, domain.NewWait(cfg.Duration, unit))
		out.Next, _ = e.nav.NextUnconditional(step.ID)
		out.Suspend = domain.SuspendWait

	case domain.ConditionConfig:
		ok, err := EvaluateCondition(cfg, b)
		if err != nil {
			return out, fmt.Errorf("step %q: %w", step.ID, err)
		}
		var found bool
		out.Next, found = e.nav.NextConditional(step.ID, ok)
		out.DeadEnd = !found
		e.logger.Debug("condition evaluated",
			"step_id", step.ID,
			"variable", cfg.Variable,
			"operator", cfg.Operator,
			"result", ok,
			"next", out.Next,
		)

	case domain.TemplateConfig:
		vars := InterpolateMap(cfg.Variables, b)
		out.Actions = append(out.Actions, domain.NewSendWhatsAppTemplate(phone, cfg.Template, cfg.Language, vars))
		out.Next, _ = e.nav.NextUnconditional(step.ID)

	case domain.AssignConversationConfig:
		if cfg.AssigneeType == "" || strings.EqualFold(cfg.AssigneeType, "admin") {
			out.Actions = append(out.Actions, domain.NewAssignToAdmin(cfg.AssigneeID))
		} else {
			out.Actions = append(out.Actions, domain.NewAssignConversation(cfg.AssigneeID, cfg.AssigneeType, s.ID))
		}
		if cfg.NotifyEmail != "" {
			out.Actions = append(out.Actions, domain.NewSendEmail(cfg.NotifyEmail, Interpolate(cfg.EmailSubject, b), Summary(b)))
		}
		out.Next, _ = e.nav.NextUnconditional(step.ID)

	default:
		e.logger.WarnContext(ctx, "unhandled step kind, skipping",
			"step_id", step.ID,
			"kind", step.Kind,
		)
		out.Next, _ = e.nav.NextUnconditional(step.ID)
	}

	return out, nil
}

// questionText renders the question, listing numbered options for multiple choice.
func questionText(cfg domain.QuestionConfig, b domain.Bindings) string {
	text := Interpolate(cfg.Question, b)
	if !cfg.Multiple() || len(cfg.Options) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n")
	for i, o := range cfg.Options {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, Interpolate(o.Label, b))
	}
	return sb.String()
}

// Summary renders all bindings as sorted "key: value" lines.
func Summary(b domain.Bindings) string {
	keys := b.Keys()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + ": " + b.String(k)
	}
	return strings.Join(lines, "\n")
}

// matchOption resolves a typed answer to an option by number, label or id.
func matchOption(options []domain.QuestionOption, answer string) (domain.QuestionOption, bool) {
	a := strings.TrimSpace(answer)
	if a == "" {
		return domain.QuestionOption{}, false
	}
	if n, err := strconv.Atoi(a); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	for _, o := range options {
		if strings.EqualFold(o.Label, a) || o.ID == a {
			return o, true
		}
	}
	return domain.QuestionOption{}, false
}

func optionByID(options []domain.QuestionOption, id string) (domain.QuestionOption, bool) {
	for _, o := range options {
		if o.ID == id {
			return o, true
		}
	}
	return domain.QuestionOption{}, false
}
