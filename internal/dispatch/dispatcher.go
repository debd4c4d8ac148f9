package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"

	"strata/internal/diag"
	"strata/internal/heap"
)

// Dispatch is the Request Dispatcher's single entry point: process one
// request against state, mutate it, and return zero or one response.
// Every call emits a server_request metrics event regardless of outcome.
func Dispatch(ctx context.Context, req Request, s *ServerState) (Response, error) {
	start := time.Now()
	resp, err := dispatchOuter(ctx, req, s)
	s.Metrics.RecordServerRequest(req.requestKind(), time.Since(start))
	return resp, err
}

func dispatchOuter(ctx context.Context, req Request, s *ServerState) (Response, error) {
	switch v := req.(type) {
	case TypeCheckRequest:
		compactHeapIfNeeded(s)
		return runRecheck(ctx, s, v.UpdateEnvironmentWith, v.Check)

	case TypeQueryRequest:
		return runQuery(s, v.Query), nil

	case DisplayTypeErrors:
		return displayTypeErrors(s, v.Files), nil

	case FlushTypeErrorsRequest:
		return flushDeferred(ctx, s)

	case StopRequest:
		resp := StopResponse{}
		s.Lock.Lock()
		defer s.Lock.Unlock()
		if s.Shutdown != nil {
			s.Shutdown()
		}
		s.Scheduler.Stop()
		if s.History != nil {
			if err := s.History.Close(); err != nil {
				log.Printf("dispatch: failed to close recheck history: %v", err)
			}
		}
		return resp, nil

	case LanguageServerProtocolRequest:
		if v.Inner == nil {
			return nil, nil
		}
		return dispatchInner(ctx, v.Inner, s)

	case ClientShutdownRequest:
		return wrapLSP(lspShutdownAck(v.ID)), nil

	case ClientExitRequest:
		log.Printf("dispatch: client exit %s", v.Client)
		return ClientExitResponse{Client: v.Client}, nil

	case RageRequest:
		return wrapLSP(lspRageResponse(v.ID, collectRage(s))), nil

	case GetDefinitionRequest, HoverRequest, OpenDocument, CloseDocument, SaveDocument:
		log.Printf("dispatch: %s received outside LanguageServerProtocolRequest", req.requestKind())
		return nil, nil

	case ClientConnectionRequest:
		return nil, errors.Wrap(ErrInvalidRequest, "ClientConnectionRequest reached the Dispatcher")

	default:
		return nil, errors.Wrapf(ErrInvalidRequest, "unrecognized request kind %q", req.requestKind())
	}
}

// dispatchInner is the LSP Inner Dispatcher: the subset of
// request kinds legal once unwrapped from a LanguageServerProtocolRequest.
func dispatchInner(ctx context.Context, req Request, s *ServerState) (Response, error) {
	switch v := req.(type) {
	case TypeCheckRequest:
		compactHeapIfNeeded(s)
		resp, err := runRecheck(ctx, s, v.UpdateEnvironmentWith, v.Check)
		if err != nil {
			return nil, err
		}
		return wrapLSP(resp), nil

	case ClientShutdownRequest:
		return wrapLSP(lspShutdownAck(v.ID)), nil

	case ClientExitRequest:
		log.Printf("dispatch: client exit %s", v.Client)
		return wrapLSP(ClientExitResponse{Client: v.Client}), nil

	case GetDefinitionRequest:
		handle, pos, ok := s.lookupDefinition(v.File, v.Pos)
		return wrapLSP(lspDefinitionResponse(v.ID, handle, pos, ok)), nil

	case HoverRequest:
		text, ok := s.lookupAnnotation(v.File, v.Pos)
		return wrapLSP(lspHoverResponse(v.ID, text, ok)), nil

	case RageRequest:
		return wrapLSP(lspRageResponse(v.ID, collectRage(s))), nil

	case OpenDocument:
		s.Lookups.Evict(mustResolve(s, v.File))
		return nil, nil

	case CloseDocument:
		s.Lookups.Evict(mustResolve(s, v.File))
		return nil, nil

	case SaveDocument:
		s.Lookups.Evict(mustResolve(s, v.File))
		s.Lock.Lock()
		checkOnSave := len(s.Connections.FileNotifiers) == 0
		s.Lock.Unlock()
		if !checkOnSave {
			return nil, nil
		}
		resp, err := runRecheck(ctx, s, []string{v.File}, []string{v.File})
		if err != nil {
			return nil, err
		}
		return wrapLSP(resp), nil

	default:
		log.Printf("dispatch: dropping unrecognized inner LSP request %s", req.requestKind())
		return nil, nil
	}
}

func mustResolve(s *ServerState, file string) heap.FileHandle {
	h, _ := resolveOne(s.Config.SourceRoot, file)
	return h
}

func resolveOne(sourceRoot, file string) (heap.FileHandle, bool) {
	handles := resolveAll(sourceRoot, []string{file})
	if len(handles) == 0 {
		return "", false
	}
	return handles[0], true
}

func displayTypeErrors(s *ServerState, files []string) TypeCheckResponse {
	if len(files) == 0 {
		return TypeCheckResponse{Errors: allErrors(s)}
	}
	handles := resolveAll(s.Config.SourceRoot, files)
	return TypeCheckResponse{Errors: errorMapFor(s, handles)}
}

func allErrors(s *ServerState) map[string][]diag.Error {
	out := make(map[string][]diag.Error, len(s.Errors))
	for h, errs := range s.Errors {
		out[string(h)] = errs
	}
	return out
}

func flushDeferred(ctx context.Context, s *ServerState) (Response, error) {
	for len(s.Deferred) > 0 {
		next := s.Deferred[0]
		s.Deferred = s.Deferred[1:]
		if _, err := Dispatch(ctx, next, s); err != nil {
			return nil, err
		}
	}
	return TypeCheckResponse{Errors: allErrors(s)}, nil
}

func compactHeapIfNeeded(s *ServerState) {
	before := s.Heap.HeapUseRatio()
	if before <= s.Config.HeapCollectRatio {
		return
	}
	s.Heap.Collect(heap.CollectAggressive)
	after := s.Heap.HeapUseRatio()
	log.Printf("Server: compacted heap, use ratio %.3f -> %.3f", before, after)
}
