package lookup

import (
	"sort"

	"strata/internal/heap"
	"strata/internal/parsersvc"
)

// Entry is one identifier occurrence: its byte span in the source, the
// annotation string to show on hover, and where it was defined.
type Entry struct {
	StartByte        int
	EndByte          int
	Annotation       string
	DefinitionHandle heap.FileHandle
	DefinitionLine   int
	DefinitionCol    int
	HasDefinition    bool
}

// Table is the Lookup Table for a single file: entries sorted by start
// byte, searched by the byte offset of a cursor position.
type Table struct {
	handle  heap.FileHandle
	text    string
	entries []Entry
}

// CreateOfSource builds a Table from a parsed source's symbol list (spec
// §2 item 5's create_of_source).
func CreateOfSource(src heap.Source) *Table {
	symbols := parsersvc.ASTOf(src)
	entries := make([]Entry, 0, len(symbols))
	for _, sym := range symbols {
		entries = append(entries, Entry{
			StartByte:        sym.StartByte,
			EndByte:          sym.EndByte,
			Annotation:       sym.AnnotationType,
			DefinitionHandle: sym.DefHandle,
			DefinitionLine:   sym.DefLine,
			DefinitionCol:    sym.DefCol,
			HasDefinition:    sym.HasDefinition,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartByte < entries[j].StartByte })
	return &Table{handle: src.Handle, text: src.Text, entries: entries}
}

func (t *Table) entryAt(offset int) (Entry, bool) {
	lo, hi := 0, len(t.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.entries[mid].EndByte <= offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(t.entries) {
		return Entry{}, false
	}
	e := t.entries[lo]
	if offset < e.StartByte || offset >= e.EndByte {
		return Entry{}, false
	}
	return e, true
}

// GetAnnotation returns the hover text for whatever identifier occupies
// pos, converting pos against text the same way an incremental edit's
// LSP position would be converted.
func (t *Table) GetAnnotation(pos Position, text string) (string, bool) {
	offset, _ := byteOffset(text, pos)
	e, ok := t.entryAt(offset)
	if !ok {
		return "", false
	}
	return e.Annotation, true
}

// GetDefinition returns the defining file and position for the identifier
// at pos, if one was recorded.
func (t *Table) GetDefinition(pos Position, text string) (heap.FileHandle, Position, bool) {
	offset, _ := byteOffset(text, pos)
	e, ok := t.entryAt(offset)
	if !ok || !e.HasDefinition {
		return "", Position{}, false
	}
	defPos := positionOfByte(t.text, e.DefinitionLine, e.DefinitionCol)
	return e.DefinitionHandle, defPos, true
}
