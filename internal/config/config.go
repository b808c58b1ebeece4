// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"agentcli/internal/tools"
)

// Config represents the application configuration.
type Config struct {
	APIKey             string       `json:"api_key"`
	APIURL             string       `json:"api_url,omitempty"`
	Model              string       `json:"model"`
	Temperature        *float32     `json:"temperature,omitempty"`
	MaxTokens          *int         `json:"max_tokens,omitempty"`
	MaxTurns           int          `json:"max_turns,omitempty"`
	RepoPath           string       `json:"repo_path,omitempty"`
	IgnoreFile         string       `json:"ignore_file,omitempty"`
	AllowedDirs        []string     `json:"allowed_dirs,omitempty"`
	ToolLimits         ToolLimits   `json:"tool_limits,omitempty"`
	HistoryFile        string       `json:"history_file,omitempty"`
	CommandHistoryFile string       `json:"command_history_file,omitempty"`
	HistoryMaxMessages int          `json:"history_max_messages,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxFileSizeBytes   int64 `json:"max_file_size_bytes,omitempty"`
	MaxSearchFileBytes int64 `json:"max_search_file_bytes,omitempty"`
	MaxOutputChars     int   `json:"max_output_chars,omitempty"`
	MaxViewLines       int   `json:"max_view_lines,omitempty"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	defaults := tools.DefaultLimits()
	return &Config{
		Model:  "gpt-4o-mini",
		APIURL: "https://api.openai.com/v1",
		ToolLimits: ToolLimits{
			MaxFileSizeBytes:   defaults.MaxFileSizeBytes,
			MaxSearchFileBytes: defaults.MaxSearchFileBytes,
			MaxOutputChars:     defaults.MaxOutputChars,
			MaxViewLines:       defaults.MaxViewLines,
		},
		HistoryFile:        ".agentcli_conversation_history",
		CommandHistoryFile: ".agentcli_history",
		HistoryMaxMessages: 100,
	}
}

// LoadConfig loads configuration from a JSON file, applies env
// overrides, and validates required fields.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", filepath, err)
		}
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		config.APIKey = val
	}
	if val := os.Getenv("OPENAI_API_URL"); val != "" {
		config.APIURL = val
	}

	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.APIURL == "" {
		config.APIURL = "https://api.openai.com/v1"
	}
	if config.RepoPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot determine working directory: %w", err)
		}
		config.RepoPath = cwd
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set api_key in config.json or OPENAI_API_KEY)")
	}

	return config, nil
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes:   c.ToolLimits.MaxFileSizeBytes,
		MaxSearchFileBytes: c.ToolLimits.MaxSearchFileBytes,
		MaxOutputChars:     c.ToolLimits.MaxOutputChars,
		MaxViewLines:       c.ToolLimits.MaxViewLines,
	}
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings.
func (c *Config) Validate() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
	}

	if c.MaxTurns < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_turns",
			Message: fmt.Sprintf("max_turns %d should not be negative, using default", c.MaxTurns),
		})
	}

	if c.HistoryMaxMessages <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "history_max_messages",
			Message: fmt.Sprintf("history_max_messages %d should be positive, using default", c.HistoryMaxMessages),
		})
	}

	if c.RepoPath != "" {
		if info, err := os.Stat(c.RepoPath); err != nil || !info.IsDir() {
			warnings = append(warnings, ValidationWarning{
				Field:   "repo_path",
				Message: fmt.Sprintf("repo_path %q is not an existing directory", c.RepoPath),
			})
		}
	}

	return warnings
}
