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

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"agentcli/internal/config"
	"agentcli/internal/tools"
	systemprompt "agentcli/system_prompt"
)

// DefaultMaxTurns caps how many model round-trips a single user
// message may trigger before the loop gives up.
const DefaultMaxTurns = 40

// Session drives the agent loop: user message in, model responses and
// tool dispatches until a final text answer comes back.
//
// Message operations are protected by an internal mutex; the loop
// itself is synchronous and tool calls run sequentially in the order
// the model requested them.
type Session struct {
	Client   ChatClient
	Config   *config.Config
	Registry *tools.Registry
	Tokens   TokenTracker
	Logger   zerolog.Logger

	mu                sync.Mutex
	messages          []openai.ChatCompletionMessage
	lastSavedMsgCount int
}

// NewSession creates a session backed by a real OpenAI client.
func NewSession(cfg *config.Config, registry *tools.Registry) *Session {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
		clientConfig.HTTPClient = &http.Client{}
	}
	client := openai.NewClientWithConfig(clientConfig)
	return NewSessionWithClient(cfg, client, registry)
}

// NewSessionWithClient creates a session with an injected client, used
// by tests to avoid real API calls.
func NewSessionWithClient(cfg *config.Config, client ChatClient, registry *tools.Registry) *Session {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: buildSystemPrompt(cfg.RepoPath),
		},
	}
	return &Session{
		Client:   client,
		Config:   cfg,
		Registry: registry,
		Logger:   zerolog.Nop(),
		messages: messages,
	}
}

func buildSystemPrompt(repoPath string) string {
	prompt, err := systemprompt.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load system prompt: %v", err))
	}
	if repoPath != "" {
		prompt += fmt.Sprintf("\n\nThe repository you are working on is located at: %s", repoPath)
	}
	return prompt
}

// Run sends a user message and loops through model responses and tool
// calls until the model answers with plain text. Tool failures are fed
// back to the model as result text; only API failures and the turn
// ceiling abort the loop.
func (s *Session) Run(ctx context.Context, prompt string) (string, error) {
	s.AddMessage(openai.ChatMessageRoleUser, prompt)

	maxTurns := s.Config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		req := openai.ChatCompletionRequest{
			Model:    s.Config.Model,
			Messages: s.MessagesSnapshot(),
			Tools:    s.Registry.OpenAITools(),
		}
		if s.Config.Temperature != nil {
			req.Temperature = *s.Config.Temperature
		}
		if s.Config.MaxTokens != nil {
			req.MaxTokens = *s.Config.MaxTokens
		}

		resp, err := s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", &APIError{Operation: "create_completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &APIError{Operation: "create_completion", Err: fmt.Errorf("response has no choices")}
		}
		s.Tokens.Record(resp.Usage)

		message := resp.Choices[0].Message
		s.AddAssistantMessage(message.Content, message.ToolCalls)

		if len(message.ToolCalls) == 0 {
			return message.Content, nil
		}

		for _, call := range message.ToolCalls {
			s.Logger.Debug().
				Str("tool", call.Function.Name).
				Str("call_id", call.ID).
				Msg("dispatching tool call")
			result := s.Registry.DispatchToolCall(call)
			if result.Error != nil {
				s.Logger.Warn().
					Str("tool", result.Function).
					Err(result.Error).
					Msg("tool call failed")
			}
			s.AddToolResultMessage(call, result)
		}
	}

	return "", fmt.Errorf("%w after %d turns", ErrTurnLimitExceeded, maxTurns)
}

// AddMessage appends a plain message to the conversation.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    role,
		Content: content,
	})
}

// AddAssistantMessage appends an assistant message with optional tool calls.
func (s *Session) AddAssistantMessage(content string, toolCalls []openai.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResultMessage appends a tool result, keyed to its call ID so
// the model can pair request and outcome.
func (s *Session) AddToolResultMessage(call openai.ToolCall, result *tools.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := result.Result
	if content == "" && result.Error != nil {
		content = fmt.Sprintf("Error: %v", result.Error)
	}
	name := call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: call.ID,
	})
}

// MessagesSnapshot returns a copy of the current messages.
func (s *Session) MessagesSnapshot() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]openai.ChatCompletionMessage, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// ClearHistory drops everything but the system message.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	systemMsg := s.messages[0]
	s.messages = []openai.ChatCompletionMessage{systemMsg}
	s.lastSavedMsgCount = 0
}

// GetHistory returns the conversation excluding the system message.
func (s *Session) GetHistory() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) <= 1 {
		return []openai.ChatCompletionMessage{}
	}
	out := make([]openai.ChatCompletionMessage, len(s.messages)-1)
	copy(out, s.messages[1:])
	return out
}

// SaveConversationHistory appends messages not yet persisted to a
// JSONL file, one message per line.
func (s *Session) SaveConversationHistory(filepath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[1:]
	if len(history) <= s.lastSavedMsgCount {
		return nil
	}

	file, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &HistoryError{Operation: "open", Filepath: filepath, Err: err}
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i := s.lastSavedMsgCount; i < len(history); i++ {
		if err := encoder.Encode(history[i]); err != nil {
			return &HistoryError{Operation: "encode", Filepath: filepath, Err: err}
		}
	}

	s.lastSavedMsgCount = len(history)
	return nil
}

// LoadConversationHistory loads prior messages from a JSONL file,
// keeping at most maxMessages of the most recent ones. A missing file
// is not an error.
func (s *Session) LoadConversationHistory(filepath string, maxMessages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &HistoryError{Operation: "open", Filepath: filepath, Err: err}
	}
	defer file.Close()

	var messages []openai.ChatCompletionMessage
	decoder := json.NewDecoder(file)
	for {
		var msg openai.ChatCompletionMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return &HistoryError{Operation: "decode", Filepath: filepath, Err: err}
		}
		messages = append(messages, msg)
	}

	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	s.messages = append(s.messages, messages...)
	s.lastSavedMsgCount = len(messages)
	return nil
}
