package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// rawConfig normalizes a step config blob to a map.
// Builders store configs either inline or as a JSON string column.
func rawConfig(v any) (map[string]any, error) {
	switch c := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return c, nil
	case string:
		if strings.TrimSpace(c) == "" {
			return map[string]any{}, nil
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(c)))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("config is not a JSON object: %w", err)
		}
		return m, nil
	case map[any]any:
		m := make(map[string]any, len(c))
		for k, val := range c {
			m[fmt.Sprint(k)] = val
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported config type %T", v)
	}
}

// decodeInto applies struct defaults, decodes raw over them and validates the result.
func decodeInto(raw map[string]any, target any) error {
	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// decodeStep turns a raw config map into the typed config of kind.
// Unknown kinds yield domain.UnhandledConfig.
func decodeStep(kind domain.StepKind, raw map[string]any) (domain.StepConfig, error) {
	switch kind {
	case domain.KindStart:
		return domain.StartConfig{}, nil

	case domain.KindSendMessage:
		var c domain.SendMessageConfig
		err := decodeInto(withAlias(raw, "message", "text", "body"), &c)
		return c, err

	case domain.KindQuestionSimple, domain.KindQuestionMultiple:
		var c domain.QuestionConfig
		if err := decodeInto(withAlias(raw, "question", "text", "message"), &c); err != nil {
			return nil, err
		}
		if kind == domain.KindQuestionMultiple {
			if len(c.Options) == 0 {
				return nil, fmt.Errorf("multiple-choice question needs at least one option")
			}
			c = c.AsMultiple()
		}
		return c, nil

	case domain.KindWait:
		var c domain.WaitConfig
		err := decodeInto(raw, &c)
		return c, err

	case domain.KindCondition:
		var c domain.ConditionConfig
		err := decodeInto(raw, &c)
		return c, err

	case domain.KindTemplate:
		var c domain.TemplateConfig
		err := decodeInto(withAlias(raw, "template", "template_name", "name"), &c)
		return c, err

	case domain.KindAssignConversation:
		var c domain.AssignConversationConfig
		err := decodeInto(withAlias(raw, "assignee_id", "admin", "admin_id"), &c)
		return c, err

	default:
		return domain.UnhandledConfig{Kind: string(kind), Raw: raw}, nil
	}
}

// withAlias copies the first present alias into key when key itself is absent.
func withAlias(raw map[string]any, key string, aliases ...string) map[string]any {
	if _, ok := raw[key]; ok {
		return raw
	}
	for _, a := range aliases {
		if v, ok := raw[a]; ok {
			out := make(map[string]any, len(raw)+1)
			for k, val := range raw {
				out[k] = val
			}
			out[key] = v
			return out
		}
	}
	return raw
}
