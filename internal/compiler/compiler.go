// Package compiler turns authored flow documents into typed domain flows.
//
// A document is JSON or YAML. Each step carries its kind in "type" and a
// kind-specific "config", given either inline or as a JSON string.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"gopkg.in/yaml.v3"
)

type rawStep struct {
	ID     string `json:"id" yaml:"id"`
	Type   string `json:"type" yaml:"type"`
	Config any    `json:"config" yaml:"config"`
}

type rawFlow struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	Key         string              `json:"key" yaml:"key"`
	StartStepID string              `json:"start_step_id" yaml:"start_step_id"`
	Steps       []rawStep           `json:"steps" yaml:"steps"`
	Connections []domain.Connection `json:"connections" yaml:"connections"`
}

// Compile parses a JSON or YAML flow document.
// All step errors are collected into an *AggregateError.
func Compile(data []byte) (*domain.Flow, error) {
	var raw rawFlow
	if isJSON(data) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse flow: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	return build(raw)
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func build(raw rawFlow) (*domain.Flow, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("flow missing ID")
	}

	flow := &domain.Flow{
		ID:          raw.ID,
		Name:        raw.Name,
		Key:         raw.Key,
		StartStepID: raw.StartStepID,
		Steps:       make([]domain.Step, 0, len(raw.Steps)),
		Connections: raw.Connections,
	}

	var errs []error
	seen := make(map[string]bool, len(raw.Steps))
	for i, rs := range raw.Steps {
		if rs.ID == "" {
			errs = append(errs, fmt.Errorf("step #%d missing ID", i))
			continue
		}
		if seen[rs.ID] {
			errs = append(errs, &StepError{StepID: rs.ID, Kind: rs.Type, Err: fmt.Errorf("duplicate step id")})
			continue
		}
		seen[rs.ID] = true

		kind := domain.StepKind(rs.Type)
		cfg, err := rawConfig(rs.Config)
		if err == nil {
			var typed domain.StepConfig
			typed, err = decodeStep(kind, cfg)
			if err == nil {
				flow.Steps = append(flow.Steps, domain.Step{ID: rs.ID, Kind: kind, Config: typed})
				continue
			}
		}
		errs = append(errs, &StepError{StepID: rs.ID, Kind: rs.Type, Err: err})
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return flow, nil
}
