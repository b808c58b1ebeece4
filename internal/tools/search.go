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
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"agentcli/internal/paths"
)

const (
	fuzzyThreshold        = 50
	defaultFuzzyResults   = 10
	defaultContentResults = 50
	maxMatchesPerFile     = 10
	searchContextLines    = 2
)

// Searcher implements the file_content_search tool: fuzzy filename
// lookup and literal content search across the allowed directories.
type Searcher struct {
	guard  *paths.Guard
	logger zerolog.Logger
}

// NewSearcher builds a searcher bound to a path guard.
func NewSearcher(guard *paths.Guard) *Searcher {
	return &Searcher{guard: guard, logger: zerolog.Nop()}
}

// SetLogger installs a logger for search diagnostics.
func (s *Searcher) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Spec declares the file_content_search surface for the registry.
func (s *Searcher) Spec() ToolSpec {
	return ToolSpec{
		Name: "file_content_search",
		Description: "Search the repository. search_type fuzzy_file finds files whose " +
			"name approximately matches the query; search_type content finds lines " +
			"containing the query literally, with surrounding context.",
		Params: map[string]ParamSpec{
			"search_type": {
				Type:        ParamString,
				Description: "Kind of search to run.",
				Enum:        []string{"fuzzy_file", "content"},
			},
			"query":          {Type: ParamString, Description: "Filename fragment or literal text to look for."},
			"directory":      {Type: ParamString, Description: "Directory to search under; defaults to the repository root."},
			"case_sensitive": {Type: ParamBoolean, Description: "Match content case-sensitively. Defaults to false."},
			"max_results":    {Type: ParamInteger, Description: "Cap on returned matches."},
		},
		Required: []string{"search_type", "query"},
	}
}

type searchRequest struct {
	SearchType    string `mapstructure:"search_type"`
	Query         string `mapstructure:"query"`
	Directory     string `mapstructure:"directory"`
	CaseSensitive bool   `mapstructure:"case_sensitive"`
	MaxResults    int    `mapstructure:"max_results"`
}

// Execute is the registry executor for file_content_search.
func (s *Searcher) Execute(args map[string]interface{}) (string, error) {
	var req searchRequest
	if err := decodeArgs(args, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidArguments)
	}

	var out string
	var err error
	switch req.SearchType {
	case "fuzzy_file":
		out, err = s.fuzzyFile(req)
	case "content":
		out, err = s.contentSearch(req)
	default:
		return "", fmt.Errorf("%w: unknown search_type %q", ErrInvalidArguments, req.SearchType)
	}
	if err != nil {
		return "", err
	}
	return TruncateText(out, getLimits().MaxOutputChars), nil
}

type fuzzyMatch struct {
	path  string
	score int
}

func (s *Searcher) fuzzyFile(req searchRequest) (string, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultFuzzyResults
	}

	roots, err := s.searchRoots(req.Directory)
	if err != nil {
		return "", err
	}

	var matches []fuzzyMatch
	for _, root := range roots {
		err := s.walk(root, func(path string, d fs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			if score := fuzzyScore(req.Query, d.Name()); score > fuzzyThreshold {
				matches = append(matches, fuzzyMatch{path: s.displayPath(path), score: score})
			}
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching '%s'.", req.Query), nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path < matches[j].path
	})

	shown := matches
	omitted := 0
	if len(shown) > maxResults {
		omitted = len(shown) - maxResults
		shown = shown[:maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s) matching '%s':\n", len(matches), req.Query)
	for _, m := range shown {
		fmt.Fprintf(&b, "  %s (score: %d)\n", m.path, m.score)
	}
	if omitted > 0 {
		b.WriteString(omittedNote(omitted))
		b.WriteString("\n")
	}
	return b.String(), nil
}

type contentMatch struct {
	path    string
	line    int
	context []string
}

func (s *Searcher) contentSearch(req searchRequest) (string, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultContentResults
	}

	roots, err := s.searchRoots(req.Directory)
	if err != nil {
		return "", err
	}

	needle := req.Query
	if !req.CaseSensitive {
		needle = strings.ToLower(needle)
	}

	var matches []contentMatch
	total := 0
	for _, root := range roots {
		err := s.walk(root, func(path string, d fs.DirEntry) error {
			if d.IsDir() || total >= maxResults {
				return nil
			}
			found, err := s.searchFile(path, needle, req.CaseSensitive, maxResults-total)
			if err != nil {
				// Unreadable files are skipped, not fatal.
				s.logger.Debug().Str("path", path).Err(err).Msg("skipping unreadable file")
				return nil
			}
			matches = append(matches, found...)
			total += len(found)
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for '%s'.", req.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es) for '%s':\n", len(matches), req.Query)
	for _, m := range matches {
		fmt.Fprintf(&b, "\n%s:%d:\n", m.path, m.line)
		for _, line := range m.context {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}
	if total >= maxResults {
		fmt.Fprintf(&b, "\n[Result limit of %d reached; narrow the query to see more]\n", maxResults)
	}
	return b.String(), nil
}

// searchFile scans one file for the needle and returns up to limit
// matches with context. Binary and oversized files are skipped by the
// caller via the error return.
func (s *Searcher) searchFile(path, needle string, caseSensitive bool, limit int) ([]contentMatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > getLimits().MaxSearchFileBytes {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	if looksBinary(sample) {
		return nil, nil
	}

	lines := strings.Split(string(data), "\n")
	display := s.displayPath(path)

	perFile := maxMatchesPerFile
	if limit < perFile {
		perFile = limit
	}

	var matches []contentMatch
	for i, line := range lines {
		haystack := line
		if !caseSensitive {
			haystack = strings.ToLower(line)
		}
		if !strings.Contains(haystack, needle) {
			continue
		}
		matches = append(matches, contentMatch{
			path:    display,
			line:    i + 1,
			context: contextWindow(lines, i),
		})
		if len(matches) >= perFile {
			break
		}
	}
	return matches, nil
}

// contextWindow renders the matched line with two lines either side,
// the match marked with ">".
func contextWindow(lines []string, idx int) []string {
	start := idx - searchContextLines
	if start < 0 {
		start = 0
	}
	end := idx + searchContextLines
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		marker := " "
		if i == idx {
			marker = ">"
		}
		out = append(out, fmt.Sprintf("%s %4d: %s", marker, i+1, lines[i]))
	}
	return out
}

// searchRoots resolves the starting directories: the validated
// directory argument when given, otherwise every allowed root.
func (s *Searcher) searchRoots(directory string) ([]string, error) {
	if directory == "" {
		return s.guard.AllowedRoots(), nil
	}
	resolved, err := s.guard.Validate(directory)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s", directory)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", directory)
	}
	return []string{resolved}, nil
}

// walk traverses root, skipping ignored entries and hidden VCS
// directories the same way the path guard would reject them.
func (s *Searcher) walk(root string, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Permission errors on subtrees are skipped.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != root && s.guard.Ignored(path, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		return fn(path, d)
	})
}

func (s *Searcher) displayPath(resolved string) string {
	if rel, err := filepath.Rel(s.guard.Root(), resolved); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return resolved
}
