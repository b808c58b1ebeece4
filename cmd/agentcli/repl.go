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

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"agentcli/internal/chat"
	"agentcli/internal/config"
	"agentcli/internal/paths"
	"agentcli/internal/tools"
)

func runREPL(logger zerolog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, warning := range cfg.Validate() {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}

	session, err := buildSession(cfg, logger)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "❯ ",
		HistoryFile:     cfg.CommandHistoryFile,
		AutoComplete:    getCommandCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("agentcli")
	fmt.Printf("Repository: %s\n", cfg.RepoPath)
	fmt.Printf("Model in use: %s\n", cfg.Model)
	fmt.Println("Type /help for commands, exit or quit to leave")
	fmt.Println()

	for {
		line, err := rl.Readline()
		if err != nil {
			logger.Debug().Msg("readline interrupted")
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		logger.Info().Str("user_input", line).Msg("user input received")

		if strings.HasPrefix(line, "/") {
			if handleCommand(line, session, logger) {
				break
			}
			continue
		}

		handleConversation(line, session, cfg, logger)
	}

	logger.Info().Msg("session ended")
	return nil
}

func handleConversation(line string, session *chat.Session, cfg *config.Config, logger zerolog.Logger) {
	response, err := session.Run(context.Background(), line)
	if err != nil {
		logger.Error().Err(err).Msg("conversation turn failed")
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("⟫ %s\n", response)
	fmt.Println(session.Tokens.Summary())
	fmt.Println()

	if cfg.HistoryFile != "" {
		if err := session.SaveConversationHistory(cfg.HistoryFile); err != nil {
			logger.Warn().Err(err).Msg("failed to save conversation history")
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *maxTokensFlag > 0 {
		v := *maxTokensFlag
		cfg.MaxTokens = &v
	}
	if *maxTurnsFlag > 0 {
		cfg.MaxTurns = *maxTurnsFlag
	}
	if *repoPathFlag != "" {
		cfg.RepoPath = *repoPathFlag
	}
	if *ignoreFileFlag != "" {
		cfg.IgnoreFile = *ignoreFileFlag
	}
	if *maxOutputFlag > 0 {
		cfg.ToolLimits.MaxOutputChars = *maxOutputFlag
	}
	if len(allowDirs) > 0 {
		cfg.AllowedDirs = append(cfg.AllowedDirs, allowDirs...)
	}

	return cfg, nil
}

func buildSession(cfg *config.Config, logger zerolog.Logger) (*chat.Session, error) {
	ignoreFile := cfg.IgnoreFile
	if ignoreFile == "" {
		ignoreFile = filepath.Join(cfg.RepoPath, ".toolignore")
	}

	guard, err := paths.NewGuard(paths.Policy{
		Root:        cfg.RepoPath,
		AllowedDirs: cfg.AllowedDirs,
		IgnoreFile:  ignoreFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up path guard: %w", err)
	}

	tools.ConfigureLimits(cfg.ToolLimitsConfig())

	registry := tools.NewRegistry()
	registry.SetLogger(logger)

	editor := tools.NewEditor(guard, newChangeConfirmer())
	editor.SetLogger(logger)
	if err := registry.Register(editor.Spec(), editor.Execute); err != nil {
		return nil, tools.NewRegistryError("file_editor", err)
	}

	searcher := tools.NewSearcher(guard)
	searcher.SetLogger(logger)
	if err := registry.Register(searcher.Spec(), searcher.Execute); err != nil {
		return nil, tools.NewRegistryError("file_content_search", err)
	}

	session := chat.NewSession(cfg, registry)
	session.Logger = logger

	if cfg.HistoryFile != "" {
		if err := session.LoadConversationHistory(cfg.HistoryFile, cfg.HistoryMaxMessages); err != nil {
			logger.Warn().Err(err).Msg("failed to load conversation history")
		}
	}

	return session, nil
}

// getCommandCompleter builds a readline completer from available commands.
func getCommandCompleter() *readline.PrefixCompleter {
	commands := getAvailableCommands()
	items := make([]readline.PrefixCompleterInterface, len(commands))
	for i, cmd := range commands {
		items[i] = readline.PcItem("/" + cmd.Name)
	}
	return readline.NewPrefixCompleter(items...)
}
