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

package tools

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ChangeOp classifies a pending filesystem mutation.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpEdit   ChangeOp = "edit"
	OpDelete ChangeOp = "delete"
)

// PendingChange describes a mutation awaiting user approval. Path is
// shown relative to the repository root when possible; Preview is a
// unified diff for edits, the new content for creates, and a notice
// for deletes.
type PendingChange struct {
	Path    string
	Op      ChangeOp
	Preview string
}

// ConfirmFunc decides whether a pending change may be applied. The
// tool blocks until it returns; a non-nil error aborts the operation
// without applying anything.
type ConfirmFunc func(change PendingChange) (bool, error)

// ConfirmQuestion is the exact question a confirmation driver asks.
// Only "yes" or "y" (case-insensitive) approves.
const ConfirmQuestion = "Do you want to apply these changes? (yes/no)"

// ParseConfirmAnswer interprets a user's reply to ConfirmQuestion.
// Everything that is not an explicit yes, including empty input, is a
// rejection.
func ParseConfirmAnswer(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	}
	return false
}

// unifiedDiff renders an edit preview with three lines of context.
func unifiedDiff(displayPath, oldContent, newContent string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + displayPath,
		ToFile:   "b/" + displayPath,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to compute diff: %v", err)
	}
	if text == "" {
		text = "(no changes)"
	}
	return text, nil
}
