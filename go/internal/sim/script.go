package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is the YAML contest script the simulator binary runs. Durations are
// Go duration strings ("45s", "1m30s").
type Script struct {
	Name          string        `yaml:"name"`
	Price         float64       `yaml:"price"`
	LobbyDuration Duration      `yaml:"lobby_duration"`
	RoundDuration Duration      `yaml:"round_duration"`
	GradingDelay  Duration      `yaml:"grading_delay"`
	Rounds        []ScriptRound `yaml:"rounds"`
}

// Duration decodes a YAML duration string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type ScriptRound struct {
	Prompt  string            `yaml:"prompt"`
	Options map[string]string `yaml:"options"`
	Correct string            `yaml:"correct"`
}

// LoadScript reads and validates a contest script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if script.Name == "" {
		return nil, fmt.Errorf("script has no contest name")
	}
	if len(script.Rounds) == 0 {
		return nil, fmt.Errorf("script has no rounds")
	}
	for i, round := range script.Rounds {
		if round.Prompt == "" {
			return nil, fmt.Errorf("round %d has no prompt", i+1)
		}
		if len(round.Options) < 2 {
			return nil, fmt.Errorf("round %d needs at least two options", i+1)
		}
		if _, ok := round.Options[round.Correct]; !ok {
			return nil, fmt.Errorf("round %d correct option %q not among options", i+1, round.Correct)
		}
	}
	return &script, nil
}

// Config converts the script's pacing and rounds, falling back to defaults
// for unset durations.
func (s *Script) Config() Config {
	cfg := DefaultConfig()
	if s.LobbyDuration > 0 {
		cfg.LobbyDuration = time.Duration(s.LobbyDuration)
	}
	if s.RoundDuration > 0 {
		cfg.RoundDuration = time.Duration(s.RoundDuration)
	}
	if s.GradingDelay > 0 {
		cfg.GradingDelay = time.Duration(s.GradingDelay)
	}
	for _, round := range s.Rounds {
		cfg.Questions = append(cfg.Questions, RoundQuestion{
			Prompt:  round.Prompt,
			Options: round.Options,
			Correct: round.Correct,
		})
	}
	return cfg
}
