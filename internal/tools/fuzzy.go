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
	"strings"
	"unicode/utf8"
)

// fuzzyScore rates how well query matches candidate on a 0-100 scale.
// The shorter string slides over the longer one and the best window
// similarity wins, so a query that is a fragment of a long filename
// still scores high. Case-insensitive.
func fuzzyScore(query, candidate string) int {
	a := strings.ToLower(query)
	b := strings.ToLower(candidate)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 100
	}

	sr := []rune(shorter)
	lr := []rune(longer)
	best := 0.0
	for i := 0; i+len(sr) <= len(lr); i++ {
		window := string(lr[i : i+len(sr)])
		if score := similarityScore(shorter, window); score > best {
			best = score
		}
	}
	// Also compare whole strings so very short candidates count.
	if score := similarityScore(a, b); score > best {
		best = score
	}
	return int(best * 100)
}

func similarityScore(a, b string) float64 {
	maxLen := len([]rune(a))
	if len([]rune(b)) > maxLen {
		maxLen = len([]rune(b))
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshteinDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := 0; j <= len(br); j++ {
		prev[j] = j
	}
	for i := 0; i < len(ar); i++ {
		curr[0] = i + 1
		for j := 0; j < len(br); j++ {
			cost := 0
			if ar[i] != br[j] {
				cost = 1
			}
			insertCost := curr[j] + 1
			deleteCost := prev[j+1] + 1
			replaceCost := prev[j] + cost
			curr[j+1] = minInt(insertCost, deleteCost, replaceCost)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func minInt(vals ...int) int {
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
