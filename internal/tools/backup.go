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
	"io/fs"
	"os"
	"time"
)

// BackupRecord captures the state of a file right before a mutation.
// Existed is false when the file was created by the mutation, so a
// restore removes it.
type BackupRecord struct {
	Path    string
	Content []byte
	Existed bool
	Mode    fs.FileMode
	Taken   time.Time
}

// BackupStore keeps one backup record per path, most recent wins.
type BackupStore struct {
	records map[string]BackupRecord
}

// NewBackupStore returns an empty store.
func NewBackupStore() *BackupStore {
	return &BackupStore{records: make(map[string]BackupRecord)}
}

// Snapshot records the current state of path, overwriting any previous
// record for the same path.
func (s *BackupStore) Snapshot(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		s.records[path] = BackupRecord{Path: path, Existed: false, Taken: time.Now()}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %v", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to back up %s: %v", path, err)
	}
	s.records[path] = BackupRecord{
		Path:    path,
		Content: content,
		Existed: true,
		Mode:    info.Mode().Perm(),
		Taken:   time.Now(),
	}
	return nil
}

// Restore puts the file back to its recorded state and drops the
// record. Restoring a path with no record returns ErrNoBackup.
func (s *BackupStore) Restore(path string) (BackupRecord, error) {
	rec, ok := s.records[path]
	if !ok {
		return BackupRecord{}, fmt.Errorf("%w for %s", ErrNoBackup, path)
	}
	if !rec.Existed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return BackupRecord{}, fmt.Errorf("failed to remove %s: %v", path, err)
		}
	} else {
		if err := os.WriteFile(path, rec.Content, rec.Mode); err != nil {
			return BackupRecord{}, fmt.Errorf("failed to restore %s: %v", path, err)
		}
	}
	delete(s.records, path)
	return rec, nil
}

// Has reports whether a record exists for path.
func (s *BackupStore) Has(path string) bool {
	_, ok := s.records[path]
	return ok
}
