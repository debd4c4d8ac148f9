// Package dispatch implements the Request Dispatcher: the state machine
// that ingests one request, mutates ServerState, and emits zero or one
// response. It is the only entry point to every other component.
package dispatch

import "strata/internal/lookup"

// Request is a tagged variant, exhaustive at the dispatch boundary.
// Concrete request types implement it as a marker.
type Request interface {
	requestKind() string
}

// TypeCheckRequest asks the Recheck Engine to reconcile the Environment
// (for UpdateEnvironmentWith) and analyze Check.
type TypeCheckRequest struct {
	UpdateEnvironmentWith []string
	Check                 []string
}

func (TypeCheckRequest) requestKind() string { return "TypeCheckRequest" }

// TypeQueryRequest wraps a synchronous type-query sub-variant.
type TypeQueryRequest struct {
	Query TypeQuery
}

func (TypeQueryRequest) requestKind() string { return "TypeQueryRequest" }

// DisplayTypeErrors reads cached errors; an empty Files means "all".
type DisplayTypeErrors struct {
	Files []string
}

func (DisplayTypeErrors) requestKind() string { return "DisplayTypeErrors" }

// FlushTypeErrorsRequest drains the deferred queue.
type FlushTypeErrorsRequest struct{}

func (FlushTypeErrorsRequest) requestKind() string { return "FlushTypeErrorsRequest" }

// StopRequest is the only graceful termination signal.
type StopRequest struct{}

func (StopRequest) requestKind() string { return "StopRequest" }

// LanguageServerProtocolRequest carries a raw inbound LSP JSON payload.
type LanguageServerProtocolRequest struct {
	RawJSON []byte
	Inner   Request // decoded inner request, set by the LSP bridge
}

func (LanguageServerProtocolRequest) requestKind() string { return "LanguageServerProtocolRequest" }

// ClientShutdownRequest acknowledges an LSP shutdown handshake.
type ClientShutdownRequest struct {
	ID any
}

func (ClientShutdownRequest) requestKind() string { return "ClientShutdownRequest" }

// ClientExitRequest terminates one client connection.
type ClientExitRequest struct {
	Client string
}

func (ClientExitRequest) requestKind() string { return "ClientExitRequest" }

// RageRequest asks for a log-excerpt diagnostic bundle.
type RageRequest struct {
	ID any
}

func (RageRequest) requestKind() string { return "RageRequest" }

// GetDefinitionRequest is only valid nested inside a
// LanguageServerProtocolRequest.
type GetDefinitionRequest struct {
	ID   any
	File string
	Pos  lookup.Position
}

func (GetDefinitionRequest) requestKind() string { return "GetDefinitionRequest" }

// HoverRequest is only valid nested inside a LanguageServerProtocolRequest.
type HoverRequest struct {
	ID   any
	File string
	Pos  lookup.Position
}

func (HoverRequest) requestKind() string { return "HoverRequest" }

// OpenDocument is only valid nested inside a LanguageServerProtocolRequest.
type OpenDocument struct {
	File string
}

func (OpenDocument) requestKind() string { return "OpenDocument" }

// CloseDocument is only valid nested inside a LanguageServerProtocolRequest.
type CloseDocument struct {
	File string
}

func (CloseDocument) requestKind() string { return "CloseDocument" }

// SaveDocument is only valid nested inside a LanguageServerProtocolRequest.
type SaveDocument struct {
	File string
}

func (SaveDocument) requestKind() string { return "SaveDocument" }

// ClientConnectionRequest never legally reaches the Dispatcher; receiving
// one here is a programming error.
type ClientConnectionRequest struct{}

func (ClientConnectionRequest) requestKind() string { return "ClientConnectionRequest" }

// TypeQuery is the sub-variant carried by TypeQueryRequest.
type TypeQuery interface {
	queryKind() string
}

type Attributes struct{ Type string }

func (Attributes) queryKind() string { return "Attributes" }

type Methods struct{ Type string }

func (Methods) queryKind() string { return "Methods" }

type Superclasses struct{ Type string }

func (Superclasses) queryKind() string { return "Superclasses" }

type Join struct{ A, B string }

func (Join) queryKind() string { return "Join" }

type Meet struct{ A, B string }

func (Meet) queryKind() string { return "Meet" }

type LessOrEqual struct{ A, B string }

func (LessOrEqual) queryKind() string { return "LessOrEqual" }

type NormalizeType struct{ Expr string }

func (NormalizeType) queryKind() string { return "NormalizeType" }

type TypeAtLocation struct {
	Path string
	Line int
	Col  int
}

func (TypeAtLocation) queryKind() string { return "TypeAtLocation" }
