package dispatch

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"strata/internal/heap"
	"strata/internal/lookup"
)

// wrapLSP serializes any response payload into a LanguageServerProtocolResponse,
// the shape every LSP-nested reply takes on its way back out: outbound
// LSP responses are serialized JSON text.
func wrapLSP(payload any) LanguageServerProtocolResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return LanguageServerProtocolResponse{JSON: fmt.Sprintf(`{"error":%q}`, err.Error())}
	}
	return LanguageServerProtocolResponse{JSON: string(body)}
}

type lspAck struct {
	ID     any  `json:"id"`
	Result bool `json:"result"`
}

func lspShutdownAck(id any) lspAck {
	return lspAck{ID: id, Result: true}
}

type lspLocation struct {
	URI   string `json:"uri"`
	Line  uint32 `json:"line"`
	Col   uint32 `json:"character"`
	Found bool   `json:"found"`
}

func lspDefinitionResponse(id any, handle heap.FileHandle, pos lookup.Position, found bool) any {
	return struct {
		ID     any         `json:"id"`
		Result lspLocation `json:"result"`
	}{
		ID: id,
		Result: lspLocation{
			URI:   string(handle),
			Line:  pos.Line,
			Col:   pos.Character,
			Found: found,
		},
	}
}

type lspHover struct {
	Contents string `json:"contents"`
	Found    bool   `json:"found"`
}

func lspHoverResponse(id any, contents string, found bool) any {
	return struct {
		ID     any      `json:"id"`
		Result lspHover `json:"result"`
	}{ID: id, Result: lspHover{Contents: contents, Found: found}}
}

func lspRageResponse(id any, bundle string) any {
	return struct {
		ID     any    `json:"id"`
		Result string `json:"result"`
	}{ID: id, Result: bundle}
}

// collectRage assembles a snapshot of live server state plus, when a
// Recheck history is configured, the most recent recorded Recheck
// outcomes — the log-excerpt collector's minimal real stand-in, since the
// log store itself lives outside this package.
func collectRage(s *ServerState) string {
	bundle := fmt.Sprintf(
		"handles=%d errors=%d deferred=%d heap_use_ratio=%.3f",
		len(s.Handles), len(s.Errors), len(s.Deferred), s.Heap.HeapUseRatio(),
	)
	if s.History == nil {
		return bundle
	}
	events, err := s.History.Recent(5)
	if err != nil {
		log.Printf("dispatch: rage collector failed to read history: %v", err)
		return bundle
	}
	for _, e := range events {
		bundle += fmt.Sprintf(
			"\n%s checked=%d errors=%d heap_bytes=%d",
			e.OccurredAt.Format(time.RFC3339), e.CheckedCount, e.ErrorCount, e.HeapBytes,
		)
	}
	return bundle
}

// lookupDefinition and lookupAnnotation implement the Lookup Cache's
// composed find_definition/find_annotation: resolve file,
// fetch its parsed source, and query the cached Table.
func (s *ServerState) lookupDefinition(file string, pos lookup.Position) (heap.FileHandle, lookup.Position, bool) {
	handle, ok := resolveOne(s.Config.SourceRoot, file)
	if !ok {
		return "", lookup.Position{}, false
	}
	src, err := s.Heap.GetSource(handle)
	if err != nil {
		return "", lookup.Position{}, false
	}
	return s.Lookups.FindDefinition(handle, src, pos, src.Text)
}

func (s *ServerState) lookupAnnotation(file string, pos lookup.Position) (string, bool) {
	handle, ok := resolveOne(s.Config.SourceRoot, file)
	if !ok {
		return "", false
	}
	src, err := s.Heap.GetSource(handle)
	if err != nil {
		return "", false
	}
	return s.Lookups.FindAnnotation(handle, src, pos, src.Text)
}
