package dispatch

import "strata/internal/diag"

// Response mirrors requests where applicable.
type Response interface {
	responseKind() string
}

// TypeCheckResponse carries the per-file error map for the files a
// TypeCheckRequest or DisplayTypeErrors asked about.
type TypeCheckResponse struct {
	Errors map[string][]diag.Error
}

func (TypeCheckResponse) responseKind() string { return "TypeCheckResponse" }

// TypeQueryResponse carries the rendered text of a type query, including
// the literal error strings §4.3 specifies on failure.
type TypeQueryResponse struct {
	Text string
}

func (TypeQueryResponse) responseKind() string { return "TypeQueryResponse" }

// ClientExitResponse acknowledges a client's exit.
type ClientExitResponse struct {
	Client string
}

func (ClientExitResponse) responseKind() string { return "ClientExitResponse" }

// StopResponse is written to the caller's connection once StopRequest has
// closed the listening socket.
type StopResponse struct{}

func (StopResponse) responseKind() string { return "StopResponse" }

// LanguageServerProtocolResponse carries a serialized LSP response.
type LanguageServerProtocolResponse struct {
	JSON string
}

func (LanguageServerProtocolResponse) responseKind() string {
	return "LanguageServerProtocolResponse"
}
