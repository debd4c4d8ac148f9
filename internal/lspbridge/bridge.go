// Package lspbridge wires the glsp protocol handler to the Request
// Dispatcher: inbound LSP methods become dispatch.Request variants wrapped
// in a LanguageServerProtocolRequest, and outbound LanguageServerProtocolResponse
// JSON is decoded back into the shapes glsp expects clients to receive.
package lspbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"strata/internal/dispatch"
	"strata/internal/lookup"
)

// Bridge owns the glsp handler and the dispatcher-facing root URI
// translation.
type Bridge struct {
	root    string
	handler *protocol.Handler
	state   *dispatch.ServerState
}

// NewServer creates the glsp server.Server wired to state.
func NewServer(state *dispatch.ServerState) *glspserver.Server {
	b := &Bridge{state: state}
	b.handler = &protocol.Handler{
		Initialize:              b.initialize,
		Initialized:             b.initialized,
		TextDocumentDidOpen:     b.textDocumentDidOpen,
		TextDocumentDidSave:     b.textDocumentDidSave,
		TextDocumentDidClose:    b.textDocumentDidClose,
		TextDocumentDefinition:  b.textDocumentDefinition,
		TextDocumentHover:       b.textDocumentHover,
		WorkspaceExecuteCommand: b.workspaceExecuteCommand,
		Shutdown:                b.shutdown,
	}
	return glspserver.NewServer(b.handler, "strata", false)
}

func (b *Bridge) uriToPath(uri protocol.URI) (string, error) {
	parsed, err := url.Parse(string(uri))
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}
	if b.root == "" {
		return strings.TrimPrefix(parsed.Path, "/"), nil
	}
	root, err := url.Parse(b.root)
	if err != nil {
		return "", fmt.Errorf("failed to parse root uri: %w", err)
	}
	rel := strings.TrimPrefix(parsed.Path, root.Path)
	return strings.TrimLeft(rel, "/"), nil
}

func (b *Bridge) pathToURI(relpath string) (string, error) {
	if b.root == "" {
		return relpath, nil
	}
	root, err := url.Parse(b.root)
	if err != nil {
		return "", fmt.Errorf("failed to parse root uri: %w", err)
	}
	root.Path = path.Join(root.Path, relpath)
	return root.String(), nil
}

func (b *Bridge) dispatchInner(inner dispatch.Request) (string, error) {
	resp, err := dispatch.Dispatch(context.Background(), dispatch.LanguageServerProtocolRequest{Inner: inner}, b.state)
	if err != nil {
		return "", err
	}
	lspResp, ok := resp.(dispatch.LanguageServerProtocolResponse)
	if !ok {
		return "", nil
	}
	return lspResp.JSON, nil
}

func (b *Bridge) initialize(context *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if params.RootURI != nil {
		b.root = string(*params.RootURI)
	}
	if params.InitializationOptions != nil {
		if raw, err := json.Marshal(params.InitializationOptions); err == nil {
			log.Printf("lspbridge: initialization options %s", raw)
		}
	}

	capabilities := b.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      true,
	}
	capabilities.DefinitionProvider = true
	capabilities.HoverProvider = true

	return protocol.InitializeResult{Capabilities: capabilities}, nil
}

func (b *Bridge) initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("lspbridge: client initialized")
	return nil
}

func (b *Bridge) textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	rel, err := b.uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	_, err = b.dispatchInner(dispatch.OpenDocument{File: rel})
	return err
}

func (b *Bridge) textDocumentDidSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	rel, err := b.uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	_, err = b.dispatchInner(dispatch.SaveDocument{File: rel})
	return err
}

func (b *Bridge) textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	rel, err := b.uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	_, err = b.dispatchInner(dispatch.CloseDocument{File: rel})
	return err
}

func (b *Bridge) textDocumentDefinition(context *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	rel, err := b.uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	pos := lookup.Position{Line: params.Position.Line, Character: params.Position.Character}
	raw, err := b.dispatchInner(dispatch.GetDefinitionRequest{File: rel, Pos: pos})
	if err != nil || raw == "" {
		return nil, err
	}

	var payload struct {
		Result struct {
			URI   string `json:"uri"`
			Line  uint32 `json:"line"`
			Col   uint32 `json:"character"`
			Found bool   `json:"found"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || !payload.Result.Found {
		return nil, nil
	}
	uri, err := b.pathToURI(payload.Result.URI)
	if err != nil {
		return nil, err
	}
	return protocol.Location{
		URI: protocol.DocumentUri(uri),
		Range: protocol.Range{
			Start: protocol.Position{Line: payload.Result.Line, Character: payload.Result.Col},
			End:   protocol.Position{Line: payload.Result.Line, Character: payload.Result.Col},
		},
	}, nil
}

func (b *Bridge) textDocumentHover(context *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	rel, err := b.uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	pos := lookup.Position{Line: params.Position.Line, Character: params.Position.Character}
	raw, err := b.dispatchInner(dispatch.HoverRequest{File: rel, Pos: pos})
	if err != nil || raw == "" {
		return nil, err
	}

	var payload struct {
		Result struct {
			Contents string `json:"contents"`
			Found    bool   `json:"found"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || !payload.Result.Found {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: payload.Result.Contents},
	}, nil
}

func (b *Bridge) workspaceExecuteCommand(context *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	switch params.Command {
	case "strata.typeCheck":
		var files []string
		if len(params.Arguments) > 0 {
			if raw, err := json.Marshal(params.Arguments[0]); err == nil {
				json.Unmarshal(raw, &files)
			}
		}
		raw, err := b.dispatchInner(dispatch.TypeCheckRequest{UpdateEnvironmentWith: files, Check: files})
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil

	case "strata.rage":
		raw, err := b.dispatchInner(dispatch.RageRequest{})
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil

	default:
		log.Printf("lspbridge: unrecognized command %q", params.Command)
		return nil, nil
	}
}

func (b *Bridge) shutdown(context *glsp.Context) error {
	_, err := b.dispatchInner(dispatch.ClientShutdownRequest{})
	return err
}
