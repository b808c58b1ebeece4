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
	"errors"
	"fmt"

	apperrors "agentcli/internal/errors"
)

var (
	// ErrToolNotFound indicates a dispatch for a name nobody registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments indicates the model sent arguments that do not
	// satisfy the tool schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrDuplicateTool indicates a second registration under the same name.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrInvalidSchema indicates a tool spec that cannot be exported.
	ErrInvalidSchema = errors.New("invalid tool schema")
	// ErrUserRejected indicates the user declined a pending change.
	ErrUserRejected = errors.New("changes rejected by the user")
	// ErrNoBackup indicates an undo with nothing recorded for the path.
	ErrNoBackup = errors.New("no backup available")
)

// NewToolExecutionError wraps a tool execution failure with a shared
// error code.
func NewToolExecutionError(toolName string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("tool %s failed", toolName), err)
}

// NewRegistryError wraps a registration failure with a shared error code.
func NewRegistryError(toolName string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("cannot register tool %s", toolName), err)
}
