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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"agentcli/internal/paths"
)

const createPreviewChars = 1000

// Editor implements the file_editor tool: view, create, str_replace,
// insert, delete and undo_edit, every mutation gated by the confirm
// callback and recorded in the backup store.
type Editor struct {
	guard   *paths.Guard
	backups *BackupStore
	confirm ConfirmFunc
	logger  zerolog.Logger
}

// NewEditor builds an editor bound to a path guard. The confirm
// callback may be nil, in which case every change applies directly
// (used by tests and non-interactive runs that opt out).
func NewEditor(guard *paths.Guard, confirm ConfirmFunc) *Editor {
	return &Editor{
		guard:   guard,
		backups: NewBackupStore(),
		confirm: confirm,
		logger:  zerolog.Nop(),
	}
}

// SetLogger installs a logger for edit diagnostics.
func (e *Editor) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// Backups exposes the store, mainly for tests.
func (e *Editor) Backups() *BackupStore {
	return e.backups
}

// Spec declares the file_editor surface for the registry.
func (e *Editor) Spec() ToolSpec {
	return ToolSpec{
		Name: "file_editor",
		Description: "View, create and edit files inside the repository. " +
			"Commands: view (file contents with line numbers, or a directory listing), " +
			"create (new file), str_replace (replace a unique occurrence), " +
			"insert (add text after a line), delete (remove a file), " +
			"undo_edit (revert the last change to a file). " +
			"Edits require user confirmation before they are applied.",
		Params: map[string]ParamSpec{
			"command": {
				Type:        ParamString,
				Description: "The operation to run.",
				Enum:        []string{"view", "create", "str_replace", "insert", "delete", "undo_edit"},
			},
			"path":        {Type: ParamString, Description: "File or directory path, relative to the repository root."},
			"file_text":   {Type: ParamString, Description: "Content for the create command."},
			"old_str":     {Type: ParamString, Description: "Exact text to replace; must occur exactly once."},
			"new_str":     {Type: ParamString, Description: "Replacement text for str_replace, or the text to insert."},
			"insert_line": {Type: ParamInteger, Description: "Line number to insert after; 0 inserts at the top."},
			"view_range":  {Type: ParamArray, Description: "Two-element [start, end] line range for view; end -1 means end of file."},
		},
		Required: []string{"command", "path"},
	}
}

type editorRequest struct {
	Command    string `mapstructure:"command"`
	Path       string `mapstructure:"path"`
	FileText   string `mapstructure:"file_text"`
	OldStr     string `mapstructure:"old_str"`
	NewStr     string `mapstructure:"new_str"`
	InsertLine *int   `mapstructure:"insert_line"`
	ViewRange  []int  `mapstructure:"view_range"`
}

// Execute is the registry executor for file_editor.
func (e *Editor) Execute(args map[string]interface{}) (string, error) {
	var req editorRequest
	if err := decodeArgs(args, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	out, err := e.run(req)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			// The user said no: report a final non-error outcome so
			// the model does not retry the same change.
			return "Changes were rejected by the user.", nil
		}
		return "", err
	}
	return TruncateText(out, getLimits().MaxOutputChars), nil
}

func (e *Editor) run(req editorRequest) (string, error) {
	resolved, err := e.guard.Validate(req.Path)
	if err != nil {
		return "", err
	}
	display := e.displayPath(resolved)

	switch req.Command {
	case "view":
		return e.view(resolved, display, req.ViewRange)
	case "create":
		return e.create(resolved, display, req.FileText)
	case "str_replace":
		return e.strReplace(resolved, display, req.OldStr, req.NewStr)
	case "insert":
		return e.insert(resolved, display, req.InsertLine, req.NewStr)
	case "delete":
		return e.delete(resolved, display)
	case "undo_edit":
		return e.undoEdit(resolved, display)
	case "":
		return "", fmt.Errorf("%w: missing command", ErrInvalidArguments)
	default:
		return "", fmt.Errorf("%w: unknown command %q", ErrInvalidArguments, req.Command)
	}
}

func (e *Editor) view(resolved, display string, viewRange []int) (string, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", display)
		}
		return "", fmt.Errorf("failed to stat %s: %v", display, err)
	}
	if info.IsDir() {
		if len(viewRange) != 0 {
			return "", fmt.Errorf("%w: view_range is not valid for directories", ErrInvalidArguments)
		}
		return e.listDirectory(resolved, display)
	}

	content, err := e.readTextFile(resolved, display, info.Size())
	if err != nil {
		return "", err
	}

	// A trailing newline is a line terminator, not an extra empty line.
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	total := len(lines)
	start, end := 1, total
	if len(viewRange) > 0 {
		if len(viewRange) != 2 {
			return "", fmt.Errorf("%w: view_range must be [start, end]", ErrInvalidArguments)
		}
		start, end = viewRange[0], viewRange[1]
		if end == -1 {
			end = total
		}
		if start < 1 || start > total {
			return "", fmt.Errorf("%w: view_range start %d out of bounds (file has %d lines)", ErrInvalidArguments, start, total)
		}
		if end < start || end > total {
			return "", fmt.Errorf("%w: view_range end %d out of bounds (file has %d lines)", ErrInvalidArguments, end, total)
		}
	}

	maxLines := getLimits().MaxViewLines
	capped := false
	if end-start+1 > maxLines {
		end = start + maxLines - 1
		capped = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", display)
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	if capped || end < total {
		fmt.Fprintf(&b, "\n[Showing lines %d to %d of %d. Use view_range to see more.]", start, end, total)
	}
	return b.String(), nil
}

func (e *Editor) listDirectory(resolved, display string) (string, error) {
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %v", display, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", display)
	shown := 0
	for _, entry := range entries {
		full := filepath.Join(resolved, entry.Name())
		if e.guard.Ignored(full, entry.IsDir()) {
			continue
		}
		if entry.IsDir() {
			fmt.Fprintf(&b, "  %s/\n", entry.Name())
		} else {
			var size int64
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}
			fmt.Fprintf(&b, "  %s (%s)\n", entry.Name(), humanSize(size))
		}
		shown++
	}
	if shown == 0 {
		b.WriteString("  (empty)\n")
	}
	return b.String(), nil
}

func (e *Editor) create(resolved, display, fileText string) (string, error) {
	if _, err := os.Lstat(resolved); err == nil {
		return "", fmt.Errorf("file already exists at %s, cannot overwrite with create", display)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat %s: %v", display, err)
	}
	if !isTextContent([]byte(fileText)) {
		return "", fmt.Errorf("refusing to create %s: content is not text", display)
	}

	preview := fileText
	if len(preview) > createPreviewChars {
		cut := createPreviewChars
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "\n..."
	}
	change := PendingChange{Path: display, Op: OpCreate, Preview: preview}

	err := e.applyChange(change, resolved, func() error {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directories: %v", err)
		}
		return os.WriteFile(resolved, []byte(fileText), 0o644)
	})
	if err != nil {
		return "", err
	}
	e.logger.Info().Str("path", display).Msg("file created")
	return fmt.Sprintf("Successfully created %s", display), nil
}

func (e *Editor) strReplace(resolved, display, oldStr, newStr string) (string, error) {
	if oldStr == "" {
		return "", fmt.Errorf("%w: old_str cannot be empty", ErrInvalidArguments)
	}
	content, mode, err := e.readMutable(resolved, display)
	if err != nil {
		return "", err
	}

	count := strings.Count(content, oldStr)
	if count == 0 {
		return "", fmt.Errorf("old_str not found in %s", display)
	}
	if count > 1 {
		return "", fmt.Errorf("old_str occurs %d times in %s, it must be unique", count, display)
	}

	updated := strings.Replace(content, oldStr, newStr, 1)
	preview, err := unifiedDiff(display, content, updated)
	if err != nil {
		return "", err
	}
	change := PendingChange{Path: display, Op: OpEdit, Preview: preview}

	if err := e.applyChange(change, resolved, func() error {
		return os.WriteFile(resolved, []byte(updated), mode)
	}); err != nil {
		return "", err
	}
	e.logger.Info().Str("path", display).Msg("str_replace applied")
	return fmt.Sprintf("Successfully edited %s", display), nil
}

func (e *Editor) insert(resolved, display string, insertLine *int, newStr string) (string, error) {
	if insertLine == nil {
		return "", fmt.Errorf("%w: insert requires insert_line", ErrInvalidArguments)
	}
	content, mode, err := e.readMutable(resolved, display)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	at := *insertLine
	if at < 0 || at > len(lines) {
		return "", fmt.Errorf("%w: insert_line %d out of bounds (file has %d lines)", ErrInvalidArguments, at, len(lines))
	}

	inserted := strings.Split(newStr, "\n")
	updatedLines := make([]string, 0, len(lines)+len(inserted))
	updatedLines = append(updatedLines, lines[:at]...)
	updatedLines = append(updatedLines, inserted...)
	updatedLines = append(updatedLines, lines[at:]...)
	updated := strings.Join(updatedLines, "\n")

	preview, err := unifiedDiff(display, content, updated)
	if err != nil {
		return "", err
	}
	change := PendingChange{Path: display, Op: OpEdit, Preview: preview}

	if err := e.applyChange(change, resolved, func() error {
		return os.WriteFile(resolved, []byte(updated), mode)
	}); err != nil {
		return "", err
	}
	e.logger.Info().Str("path", display).Int("line", at).Msg("insert applied")
	return fmt.Sprintf("Successfully inserted text at line %d in %s", at, display), nil
}

func (e *Editor) delete(resolved, display string) (string, error) {
	info, err := os.Lstat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", display)
		}
		return "", fmt.Errorf("failed to stat %s: %v", display, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot delete a directory: %s", display)
	}

	change := PendingChange{
		Path:    display,
		Op:      OpDelete,
		Preview: fmt.Sprintf("This will delete %s (%s).", display, humanSize(info.Size())),
	}
	if err := e.applyChange(change, resolved, func() error {
		return os.Remove(resolved)
	}); err != nil {
		return "", err
	}
	e.logger.Info().Str("path", display).Msg("file deleted")
	return fmt.Sprintf("Successfully deleted %s", display), nil
}

func (e *Editor) undoEdit(resolved, display string) (string, error) {
	rec, err := e.backups.Restore(resolved)
	if err != nil {
		return "", err
	}
	if !rec.Existed {
		return fmt.Sprintf("Undid creation of %s", display), nil
	}
	return fmt.Sprintf("Successfully restored %s from backup", display), nil
}

// applyChange runs the confirmation gate, snapshots the target and
// applies the mutation. Nothing touches the filesystem on rejection.
func (e *Editor) applyChange(change PendingChange, resolved string, apply func() error) error {
	if e.confirm != nil {
		ok, err := e.confirm(change)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUserRejected, change.Path)
		}
	}
	if err := e.backups.Snapshot(resolved); err != nil {
		return err
	}
	return apply()
}

// readMutable loads a file that is about to be edited, enforcing the
// text and size limits, and reports its current permission bits.
func (e *Editor) readMutable(resolved, display string) (string, fs.FileMode, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("path does not exist: %s", display)
		}
		return "", 0, fmt.Errorf("failed to stat %s: %v", display, err)
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("path is a directory: %s", display)
	}
	content, err := e.readTextFile(resolved, display, info.Size())
	if err != nil {
		return "", 0, err
	}
	return content, info.Mode().Perm(), nil
}

func (e *Editor) readTextFile(resolved, display string, size int64) (string, error) {
	limits := getLimits()
	if size > limits.MaxFileSizeBytes {
		return "", fmt.Errorf("file %s is too large (%s, limit %s)", display, humanSize(size), humanSize(limits.MaxFileSizeBytes))
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %v", display, err)
	}
	if !isTextContent(data) {
		return "", fmt.Errorf("file %s appears to be binary", display)
	}
	return string(data), nil
}

func (e *Editor) displayPath(resolved string) string {
	if rel, err := filepath.Rel(e.guard.Root(), resolved); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return resolved
}

func humanSize(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

// decodeArgs maps loosely-typed model arguments onto a request struct.
// JSON numbers arrive as float64; weak typing coerces them.
func decodeArgs(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}
