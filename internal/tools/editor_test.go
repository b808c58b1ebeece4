package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"agentcli/internal/paths"
)

type confirmRecorder struct {
	changes []PendingChange
	answer  bool
	err     error
}

func (c *confirmRecorder) confirm(change PendingChange) (bool, error) {
	c.changes = append(c.changes, change)
	return c.answer, c.err
}

func newTestEditor(t *testing.T, answer bool) (*Editor, string, *confirmRecorder) {
	t.Helper()
	root := t.TempDir()
	guard, err := paths.NewGuard(paths.Policy{Root: root})
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	rec := &confirmRecorder{answer: answer}
	editor := NewEditor(guard, rec.confirm)
	return editor, guard.Root(), rec
}

func TestEditorCreate(t *testing.T) {
	editor, root, rec := newTestEditor(t, true)

	out, err := editor.Execute(map[string]interface{}{
		"command":   "create",
		"path":      "notes/todo.txt",
		"file_text": "first line\n",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Successfully created") {
		t.Errorf("out = %q", out)
	}

	data, err := os.ReadFile(filepath.Join(root, "notes", "todo.txt"))
	if err != nil {
		t.Fatalf("created file missing: %v", err)
	}
	if string(data) != "first line\n" {
		t.Errorf("content = %q", data)
	}

	if len(rec.changes) != 1 || rec.changes[0].Op != OpCreate {
		t.Fatalf("changes = %+v", rec.changes)
	}
	if !strings.Contains(rec.changes[0].Preview, "first line") {
		t.Errorf("preview = %q", rec.changes[0].Preview)
	}
}

func TestEditorCreateRejected(t *testing.T) {
	editor, root, _ := newTestEditor(t, false)

	out, err := editor.Execute(map[string]interface{}{
		"command":   "create",
		"path":      "rejected.txt",
		"file_text": "never written",
	})
	if err != nil {
		t.Fatalf("rejection must not surface as an error: %v", err)
	}
	if out != "Changes were rejected by the user." {
		t.Errorf("out = %q", out)
	}
	if _, err := os.Stat(filepath.Join(root, "rejected.txt")); !os.IsNotExist(err) {
		t.Error("rejected create must not touch the filesystem")
	}
	if editor.Backups().Has(filepath.Join(root, "rejected.txt")) {
		t.Error("rejected create must not record a backup")
	}
}

func TestEditorCreatePreviewKeepsRunesWhole(t *testing.T) {
	editor, _, rec := newTestEditor(t, true)

	// 400 three-byte runes: 1200 bytes, and the preview cutoff lands
	// mid-rune unless it backs up to a boundary.
	content := strings.Repeat("€", 400)
	_, err := editor.Execute(map[string]interface{}{
		"command":   "create",
		"path":      "unicode.txt",
		"file_text": content,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	preview := rec.changes[0].Preview
	if !utf8.ValidString(preview) {
		t.Error("preview split a rune")
	}
	if !strings.HasSuffix(preview, "\n...") {
		t.Errorf("long preview should end with ellipsis: %q", preview)
	}
}

func TestEditorCreateExisting(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "exists.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command":   "create",
		"path":      "exists.txt",
		"file_text": "y",
	})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("err = %v", err)
	}
}

func TestEditorStrReplace(t *testing.T) {
	editor, root, rec := newTestEditor(t, true)
	path := filepath.Join(root, "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := editor.Execute(map[string]interface{}{
		"command": "str_replace",
		"path":    "main.go",
		"old_str": "func main() {}",
		"new_str": "func main() {\n\tprintln(\"hi\")\n}",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Successfully edited") {
		t.Errorf("out = %q", out)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "println") {
		t.Errorf("edit not applied: %q", data)
	}

	preview := rec.changes[0].Preview
	if !strings.Contains(preview, "a/main.go") || !strings.Contains(preview, "b/main.go") {
		t.Errorf("diff headers missing: %q", preview)
	}
	if !strings.Contains(preview, "-func main() {}") {
		t.Errorf("diff body missing: %q", preview)
	}
}

func TestEditorStrReplaceNotFound(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command": "str_replace",
		"path":    "a.txt",
		"old_str": "missing",
		"new_str": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestEditorStrReplaceAmbiguous(t *testing.T) {
	editor, root, rec := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("dup\ndup\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command": "str_replace",
		"path":    "a.txt",
		"old_str": "dup",
		"new_str": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "2 times") {
		t.Errorf("err = %v", err)
	}
	if len(rec.changes) != 0 {
		t.Error("ambiguous replace must not reach the confirmation gate")
	}
}

func TestEditorInsert(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	path := filepath.Join(root, "list.txt")
	if err := os.WriteFile(path, []byte("one\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command":     "insert",
		"path":        "list.txt",
		"insert_line": 1,
		"new_str":     "two",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\nthree\n" {
		t.Errorf("content = %q", data)
	}
}

func TestEditorInsertOutOfBounds(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command":     "insert",
		"path":        "a.txt",
		"insert_line": 99,
		"new_str":     "y",
	})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("err = %v, want ErrInvalidArguments", err)
	}
}

func TestEditorView(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	content := "alpha\nbeta\ngamma\ndelta\n"
	if err := os.WriteFile(filepath.Join(root, "v.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    "v.txt",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "1\talpha") || !strings.Contains(out, "4\tdelta") {
		t.Errorf("out = %q", out)
	}

	ranged, err := editor.Execute(map[string]interface{}{
		"command":    "view",
		"path":       "v.txt",
		"view_range": []interface{}{float64(2), float64(3)},
	})
	if err != nil {
		t.Fatalf("ranged view: %v", err)
	}
	if strings.Contains(ranged, "alpha") || !strings.Contains(ranged, "beta") || !strings.Contains(ranged, "gamma") {
		t.Errorf("ranged = %q", ranged)
	}
}

func TestEditorViewLineCount(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "two.txt"), []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    "two.txt",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// The trailing newline terminates line 2, it does not add a third.
	if strings.Contains(out, "3\t") {
		t.Errorf("phantom blank line rendered: %q", out)
	}

	_, err = editor.Execute(map[string]interface{}{
		"command":    "view",
		"path":       "two.txt",
		"view_range": []interface{}{float64(1), float64(3)},
	})
	if err == nil || !strings.Contains(err.Error(), "2 lines") {
		t.Errorf("range error should report 2 lines: %v", err)
	}
}

func TestEditorViewDirectory(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    ".",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "sub/") || !strings.Contains(out, "file.txt") {
		t.Errorf("out = %q", out)
	}
	// Directories come before files.
	if strings.Index(out, "sub/") > strings.Index(out, "file.txt") {
		t.Errorf("listing order wrong: %q", out)
	}
}

func TestEditorDelete(t *testing.T) {
	editor, root, rec := newTestEditor(t, true)
	path := filepath.Join(root, "gone.txt")
	if err := os.WriteFile(path, []byte("bye"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command": "delete",
		"path":    "gone.txt",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file not deleted")
	}
	if rec.changes[0].Op != OpDelete {
		t.Errorf("op = %v", rec.changes[0].Op)
	}
}

func TestEditorUndoEdit(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	path := filepath.Join(root, "u.txt")
	if err := os.WriteFile(path, []byte("before\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := editor.Execute(map[string]interface{}{
		"command": "str_replace",
		"path":    "u.txt",
		"old_str": "before",
		"new_str": "after",
	}); err != nil {
		t.Fatal(err)
	}

	out, err := editor.Execute(map[string]interface{}{
		"command": "undo_edit",
		"path":    "u.txt",
	})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !strings.Contains(out, "restored") {
		t.Errorf("out = %q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "before\n" {
		t.Errorf("content = %q", data)
	}
}

func TestEditorUndoCreateRemovesFile(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)

	if _, err := editor.Execute(map[string]interface{}{
		"command":   "create",
		"path":      "temp.txt",
		"file_text": "x",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := editor.Execute(map[string]interface{}{
		"command": "undo_edit",
		"path":    "temp.txt",
	}); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "temp.txt")); !os.IsNotExist(err) {
		t.Error("undoing a create should remove the file")
	}
}

func TestEditorUndoWithoutBackup(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "plain.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command": "undo_edit",
		"path":    "plain.txt",
	})
	if !errors.Is(err, ErrNoBackup) {
		t.Errorf("err = %v, want ErrNoBackup", err)
	}
}

func TestEditorRefusesIgnoredPath(t *testing.T) {
	root := t.TempDir()
	ignore := filepath.Join(root, ".toolignore")
	if err := os.WriteFile(ignore, []byte("*.pem\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "key.pem"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	guard, err := paths.NewGuard(paths.Policy{Root: root, IgnoreFile: ignore})
	if err != nil {
		t.Fatal(err)
	}
	editor := NewEditor(guard, nil)

	_, err = editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    "key.pem",
	})
	if !errors.Is(err, paths.ErrIgnoredPath) {
		t.Errorf("err = %v, want ErrIgnoredPath", err)
	}
}

func TestEditorRefusesTraversal(t *testing.T) {
	editor, _, _ := newTestEditor(t, true)

	_, err := editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    "../outside.txt",
	})
	if !errors.Is(err, paths.ErrPathViolation) {
		t.Errorf("err = %v, want ErrPathViolation", err)
	}
}

func TestEditorRefusesBinary(t *testing.T) {
	editor, root, _ := newTestEditor(t, true)
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0x00, 0x01, 0xff}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editor.Execute(map[string]interface{}{
		"command": "view",
		"path":    "blob.bin",
	})
	if err == nil || !strings.Contains(err.Error(), "binary") {
		t.Errorf("err = %v", err)
	}
}

func TestEditorUnknownCommand(t *testing.T) {
	editor, _, _ := newTestEditor(t, true)

	_, err := editor.Execute(map[string]interface{}{
		"command": "explode",
		"path":    "a.txt",
	})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("err = %v, want ErrInvalidArguments", err)
	}
}
