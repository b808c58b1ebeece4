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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"agentcli/internal/tools"
)

// newChangeConfirmer returns the interactive confirmation gate for file
// mutations: it prints the preview, asks the confirmation question and
// treats anything but an explicit yes as a rejection.
func newChangeConfirmer() tools.ConfirmFunc {
	return func(change tools.PendingChange) (bool, error) {
		input := os.Stdin
		output := io.Writer(os.Stdout)
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
			if err != nil {
				return false, fmt.Errorf("no TTY available for change confirmation")
			}
			defer tty.Close()
			input = tty
			output = tty
		}

		printChange(output, change)
		fmt.Fprintf(output, "%s ", tools.ConfirmQuestion)

		reader := bufio.NewReader(input)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		return tools.ParseConfirmAnswer(line), nil
	}
}

func printChange(w io.Writer, change tools.PendingChange) {
	switch change.Op {
	case tools.OpCreate:
		fmt.Fprintf(w, "\nCreate %s:\n", change.Path)
	case tools.OpDelete:
		fmt.Fprintf(w, "\nDelete %s:\n", change.Path)
	default:
		fmt.Fprintf(w, "\nEdit %s:\n", change.Path)
	}
	fmt.Fprintln(w, change.Preview)
}
