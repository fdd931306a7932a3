// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/fireside/internal/config"
)

// Bounds for per-request overrides.
const (
	MaxTemperature     = 2.0
	MaxOutputTokensCap = 65536
	maxModelIDLength   = 200
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid model settings")

// Settings are per-request overrides. Nil or empty fields fall back to the
// configured defaults. Unknown JSON keys are ignored.
type Settings struct {
	ModelID         string   `json:"modelId,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// UnmarshalJSON also accepts the snake_case keys model_id and
// max_output_tokens. camelCase wins when both are present.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		ModelID         string   `json:"modelId"`
		ModelIDSnake    string   `json:"model_id"`
		Temperature     *float64 `json:"temperature"`
		MaxOutputTokens *int     `json:"maxOutputTokens"`
		MaxTokensSnake  *int     `json:"max_output_tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings{
		ModelID:         raw.ModelID,
		Temperature:     raw.Temperature,
		MaxOutputTokens: raw.MaxOutputTokens,
	}
	if s.ModelID == "" {
		s.ModelID = raw.ModelIDSnake
	}
	if s.MaxOutputTokens == nil {
		s.MaxOutputTokens = raw.MaxTokensSnake
	}
	return nil
}

// Validate checks override ranges. A nil receiver is valid.
func (s *Settings) Validate() error {
	if s == nil {
		return nil
	}
	if len(s.ModelID) > maxModelIDLength || strings.ContainsAny(s.ModelID, " \t\r\n") {
		return fmt.Errorf("%w: modelId is not a model identifier", ErrInvalidSettings)
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > MaxTemperature) {
		return fmt.Errorf("%w: temperature must be 0-%g", ErrInvalidSettings, MaxTemperature)
	}
	if s.MaxOutputTokens != nil && (*s.MaxOutputTokens < 1 || *s.MaxOutputTokens > MaxOutputTokensCap) {
		return fmt.Errorf("%w: maxOutputTokens must be 1-%d", ErrInvalidSettings, MaxOutputTokensCap)
	}
	return nil
}

// Resolved are the generation parameters actually sent to a provider.
// A nil Temperature or zero MaxOutputTokens means "provider default".
type Resolved struct {
	ModelID         string
	Temperature     *float64
	MaxOutputTokens int
}

// Resolve merges overrides onto the configured defaults.
func (s *Settings) Resolve(defaults config.ModelConfig) Resolved {
	r := Resolved{
		ModelID:         defaults.DefaultModel,
		Temperature:     defaults.Temperature,
		MaxOutputTokens: defaults.MaxOutputTokens,
	}
	if r.ModelID == "" {
		r.ModelID = config.DefaultModelFor(defaults.Provider)
	}
	if s == nil {
		return r
	}
	if s.ModelID != "" {
		r.ModelID = s.ModelID
	}
	if s.Temperature != nil {
		r.Temperature = s.Temperature
	}
	if s.MaxOutputTokens != nil {
		r.MaxOutputTokens = *s.MaxOutputTokens
	}
	return r
}
