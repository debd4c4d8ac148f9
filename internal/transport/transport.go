// Package transport implements the plain request/response socket
// protocol: length-framed JSON-RPC messages over a
// listening socket, independent of the LSP envelope the bridge owns. Each
// inbound call's method name names a Request variant; params carry its
// fields; the single reply is that variant's Response.
package transport

import (
	"context"
	"encoding/json"
	"log"
	"net"

	"github.com/sourcegraph/jsonrpc2"

	"strata/internal/dispatch"
)

// Server listens for framed connections and dispatches each decoded
// message against a shared ServerState.
type Server struct {
	state    *dispatch.ServerState
	listener net.Listener
}

// Listen binds addr and returns a Server ready to Serve. It stores the
// listener's Close on state.Shutdown, so a StopRequest tears the listener
// down; the StopResponse still goes out on the caller's open connection.
func Listen(addr string, state *dispatch.ServerState) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{state: state, listener: ln}
	state.Shutdown = func() { ln.Close() }
	return s, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	handler := jsonrpc2.HandlerWithError(s.handle)
	rpc := jsonrpc2.NewConn(ctx, stream, handler)
	<-rpc.DisconnectNotify()
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	wireReq, err := decodeRequest(req.Method, req.Params)
	if err != nil {
		log.Printf("transport: %v", err)
		return nil, err
	}
	resp, err := dispatch.Dispatch(ctx, wireReq, s.state)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// typeCheckParams/displayParams/queryEnvelope mirror the JSON shape of
// each Request variant's fields over the wire.
type typeCheckParams struct {
	UpdateEnvironmentWith []string `json:"update_environment_with"`
	Check                 []string `json:"check"`
}

type displayParams struct {
	Files []string `json:"files"`
}

func decodeRequest(method string, raw *json.RawMessage) (dispatch.Request, error) {
	var body []byte
	if raw != nil {
		body = *raw
	}

	switch method {
	case "typeCheck":
		var p typeCheckParams
		if len(body) > 0 {
			if err := json.Unmarshal(body, &p); err != nil {
				return nil, err
			}
		}
		return dispatch.TypeCheckRequest{UpdateEnvironmentWith: p.UpdateEnvironmentWith, Check: p.Check}, nil

	case "displayTypeErrors":
		var p displayParams
		if len(body) > 0 {
			if err := json.Unmarshal(body, &p); err != nil {
				return nil, err
			}
		}
		return dispatch.DisplayTypeErrors{Files: p.Files}, nil

	case "flushTypeErrors":
		return dispatch.FlushTypeErrorsRequest{}, nil

	case "stop":
		return dispatch.StopRequest{}, nil

	case "query":
		return decodeQueryRequest(body)

	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "transport: unrecognized method " + method}
	}
}

type queryEnvelope struct {
	Kind string `json:"kind"`
	A    string `json:"a"`
	B    string `json:"b"`
	Path string `json:"path"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

func decodeQueryRequest(body []byte) (dispatch.Request, error) {
	var q queryEnvelope
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, err
	}

	var query dispatch.TypeQuery
	switch q.Kind {
	case "Attributes":
		query = dispatch.Attributes{Type: q.A}
	case "Methods":
		query = dispatch.Methods{Type: q.A}
	case "Superclasses":
		query = dispatch.Superclasses{Type: q.A}
	case "Join":
		query = dispatch.Join{A: q.A, B: q.B}
	case "Meet":
		query = dispatch.Meet{A: q.A, B: q.B}
	case "LessOrEqual":
		query = dispatch.LessOrEqual{A: q.A, B: q.B}
	case "NormalizeType":
		query = dispatch.NormalizeType{Expr: q.A}
	case "TypeAtLocation":
		query = dispatch.TypeAtLocation{Path: q.Path, Line: q.Line, Col: q.Col}
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "transport: unrecognized query kind " + q.Kind}
	}
	return dispatch.TypeQueryRequest{Query: query}, nil
}
