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
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"agentcli/internal/chat"
)

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
}

// getAvailableCommands returns the list of all slash commands.
func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Description: "Show available commands"},
		{Name: "clear", Description: "Clear conversation history"},
		{Name: "history", Description: "Display conversation history"},
		{Name: "tools", Description: "List registered tools"},
		{Name: "tokens", Description: "Show token usage for this session"},
		{Name: "quit", Description: "Exit the application"},
		{Name: "exit", Description: "Exit the application"},
	}
}

// handleCommand processes slash commands, returns true if should quit.
func handleCommand(input string, session *chat.Session, logger zerolog.Logger) bool {
	cmdName := strings.TrimPrefix(input, "/")
	cmdName = strings.ToLower(strings.TrimSpace(cmdName))

	logger.Debug().Str("command", cmdName).Msg("executing command")

	switch cmdName {
	case "help":
		showHelp()
		return false

	case "clear":
		session.ClearHistory()
		fmt.Println("✓ Conversation history cleared")
		return false

	case "history":
		showHistory(session)
		return false

	case "tools":
		showTools(session)
		return false

	case "tokens":
		fmt.Println(session.Tokens.Summary())
		return false

	case "quit", "exit":
		return true

	default:
		fmt.Printf("✗ Unknown command: /%s (type /help for available commands)\n", cmdName)
		return false
	}
}

func showHelp() {
	fmt.Println("\nAvailable Commands:")
	seen := make(map[string]bool)
	for _, cmd := range getAvailableCommands() {
		if seen[cmd.Name] {
			continue
		}
		seen[cmd.Name] = true
		fmt.Printf("  /%-12s - %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println()
}

func showHistory(session *chat.Session) {
	messages := session.GetHistory()
	if len(messages) == 0 {
		fmt.Println("No conversation history")
		return
	}

	fmt.Println("\nConversation History:")
	for _, msg := range messages {
		switch msg.Role {
		case openai.ChatMessageRoleUser:
			fmt.Printf("❯ %s\n", msg.Content)
		case openai.ChatMessageRoleAssistant:
			if msg.Content != "" {
				fmt.Printf("⟫ %s\n", msg.Content)
			}
			for _, call := range msg.ToolCalls {
				fmt.Printf("  [tool call: %s]\n", call.Function.Name)
			}
		case openai.ChatMessageRoleTool:
			fmt.Printf("  [tool result: %s]\n", firstLine(msg.Content))
		}
	}
	fmt.Println()
}

func showTools(session *chat.Session) {
	specs := session.Registry.Specs()
	if len(specs) == 0 {
		fmt.Println("No tools registered")
		return
	}

	fmt.Println("\nRegistered Tools:")
	for _, spec := range specs {
		fmt.Printf("  %s - %s\n", spec.Name, firstLine(spec.Description))
	}
	fmt.Println()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	const max = 100
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
