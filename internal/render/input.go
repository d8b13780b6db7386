// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"strconv"
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
	esc   = 0x1b
)

// position is a zero based cursor position report.
type position struct {
	col, row int
}

type input struct {
	keys      []Key
	positions []position
}

// decodeInput splits raw terminal input into key presses and cursor position
// reports (ESC [ row ; col R). An incomplete escape sequence at the end is
// returned as rest.
func decodeInput(b []byte) (in input, rest []byte) {
	for i := 0; i < len(b); {
		switch b[i] {
		case ctrlC:
			in.keys = append(in.keys, KeyCtrlC)
			i++
		case ctrlD:
			in.keys = append(in.keys, KeyCtrlD)
			i++
		case esc:
			if i+1 >= len(b) {
				return in, b[i:]
			}
			if b[i+1] != '[' {
				in.keys = append(in.keys, KeyOther)
				i++
				continue
			}
			j := i + 2
			for j < len(b) && (b[j] < 0x40 || b[j] > 0x7e) {
				j++
			}
			if j >= len(b) {
				return in, b[i:]
			}
			if p, ok := parsePosition(b[i+2 : j]); ok && b[j] == 'R' {
				in.positions = append(in.positions, p)
			} else {
				in.keys = append(in.keys, KeyOther)
			}
			i = j + 1
		default:
			in.keys = append(in.keys, KeyOther)
			i++
		}
	}
	return in, nil
}

func parsePosition(params []byte) (position, bool) {
	rowText, colText, ok := bytes.Cut(params, []byte(";"))
	if !ok {
		return position{}, false
	}
	row, err := strconv.Atoi(string(rowText))
	if err != nil || row < 1 {
		return position{}, false
	}
	col, err := strconv.Atoi(string(colText))
	if err != nil || col < 1 {
		return position{}, false
	}
	return position{col: col - 1, row: row - 1}, true
}
