// Package lookup implements the Lookup Table and Lookup Cache: position-
// indexed per-file structures answering "what annotation/definition is at
// this cursor position" without re-running the Parser Service. Position
// math converts LSP positions to byte offsets and tree-sitter points —
// UTF-16 code units in, bytes out.
package lookup

import (
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	lsp "github.com/tliron/glsp/protocol_3_16"
)

// Position is an LSP-style line/character (UTF-16 code units) position.
type Position = lsp.Position

// byteOffset converts an LSP Position within text into a byte offset and
// the equivalent tree-sitter Point.
func byteOffset(text string, pos Position) (offset int, point sitter.Point) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		pos.Line = uint32(len(lines) - 1)
	}
	for i := uint32(0); i < pos.Line; i++ {
		offset += len(lines[i]) + 1
	}

	var charCount, byteCount int
	for _, r := range lines[pos.Line] {
		unitCount := 1
		if r > 0xFFFF {
			unitCount = 2
		}
		if uint32(charCount+unitCount) > pos.Character {
			break
		}
		charCount += unitCount
		byteCount += utf8.RuneLen(r)
	}
	offset += byteCount
	point = sitter.Point{Row: pos.Line, Column: uint32(byteCount)}
	return
}

// positionOfByte converts a line number and byte column within text back
// into an LSP Position, used to report a definition's location to a
// client.
func positionOfByte(text string, line, col int) Position {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return Position{}
	}
	lineBytes := []byte(lines[line])
	if col > len(lineBytes) {
		col = len(lineBytes)
	}
	var charCount uint32
	for _, r := range string(lineBytes[:col]) {
		if r > 0xFFFF {
			charCount += 2
		} else {
			charCount++
		}
	}
	return Position{Line: uint32(line), Character: charCount}
}
