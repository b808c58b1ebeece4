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
	"unicode/utf8"
)

// TruncateText caps text at maxChars. Oversized text is cut on a rune
// boundary and a note naming the truncation is appended; the returned
// string never exceeds maxChars, so truncating twice is a no-op.
func TruncateText(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultMaxOutputChars
	}
	if len(text) <= maxChars {
		return text
	}
	note := fmt.Sprintf("\n\n[Output truncated to %d characters. Original length: %d characters]", maxChars, len(text))
	keep := maxChars - len(note)
	if keep < 0 {
		keep = 0
	}
	for keep > 0 && !utf8.RuneStart(text[keep]) {
		keep--
	}
	return text[:keep] + note
}

// omittedNote marks results dropped by a result-count or output cap.
func omittedNote(count int) string {
	return fmt.Sprintf("[%d more matches not shown due to output size limit]", count)
}
