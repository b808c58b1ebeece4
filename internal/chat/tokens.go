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
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// TokenTracker accumulates API usage over a session.
type TokenTracker struct {
	mu         sync.Mutex
	Prompt     int
	Completion int
	Total      int
	Requests   int
}

// Record adds one response's usage to the running totals.
func (t *TokenTracker) Record(usage openai.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Prompt += usage.PromptTokens
	t.Completion += usage.CompletionTokens
	t.Total += usage.TotalTokens
	t.Requests++
}

// Summary renders the totals for display after an exchange.
func (t *TokenTracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("[tokens: %d prompt, %d completion, %d total over %d requests]",
		t.Prompt, t.Completion, t.Total, t.Requests)
}
