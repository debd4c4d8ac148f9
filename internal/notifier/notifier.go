// Package notifier runs the file-notifier side channel: a WebSocket
// endpoint external file watchers connect to. A connected notifier takes
// over change detection from the editor's save events, so the Dispatcher
// stops triggering a Recheck on every SaveDocument (see
// ServerState.Connections.FileNotifiers).
package notifier

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"strata/internal/dispatch"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// FileChangeMessage is broadcast to every connected notifier whenever a
// Recheck commits new errors for a file.
type FileChangeMessage struct {
	Op   string `json:"op"`
	File string `json:"file"`
}

// Server holds the set of connected file-notifier clients and the
// ServerState whose Connections.FileNotifiers it keeps in sync.
type Server struct {
	state *dispatch.ServerState

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]string
}

// New returns a Server that registers and deregisters connections against
// state.Connections.FileNotifiers under state.Lock.
func New(state *dispatch.ServerState) *Server {
	return &Server{
		state:   state,
		clients: make(map[*websocket.Conn]string),
	}
}

// Listen starts the HTTP/WebSocket listener on addr (":0" picks a free
// port) and serves in the background. It returns the bound address.
func (srv *Server) Listen(addr string) (string, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notify", srv.handleWS)

	go func() {
		if err := http.Serve(l, mux); err != nil {
			log.Printf("notifier: server error: %v", err)
		}
	}()

	return l.Addr().String(), nil
}

// Broadcast sends a file-change notification to every connected client.
func (srv *Server) Broadcast(file string) {
	msg := FileChangeMessage{Op: "changed", File: file}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notifier: marshal error: %v", err)
		return
	}

	srv.clientsMu.Lock()
	defer srv.clientsMu.Unlock()
	for conn := range srv.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("notifier: broadcast error: %v", err)
			conn.Close()
			srv.deregisterLocked(conn)
		}
	}
}

func (srv *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notifier: upgrade error: %v", err)
		return
	}

	id := r.RemoteAddr
	srv.register(conn, id)
	defer func() {
		srv.clientsMu.Lock()
		srv.deregisterLocked(conn)
		srv.clientsMu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}

// register records the connection and appends its id to
// state.Connections.FileNotifiers, gating SaveDocument's check_on_save.
func (srv *Server) register(conn *websocket.Conn, id string) {
	srv.clientsMu.Lock()
	srv.clients[conn] = id
	srv.clientsMu.Unlock()

	srv.state.Lock.Lock()
	srv.state.Connections.FileNotifiers = append(srv.state.Connections.FileNotifiers, id)
	srv.state.Lock.Unlock()
}

// deregisterLocked must be called with clientsMu held. It removes the
// connection from clients and its id from state.Connections.FileNotifiers.
func (srv *Server) deregisterLocked(conn *websocket.Conn) {
	id, ok := srv.clients[conn]
	if !ok {
		return
	}
	delete(srv.clients, conn)

	srv.state.Lock.Lock()
	defer srv.state.Lock.Unlock()
	notifiers := srv.state.Connections.FileNotifiers
	for i, n := range notifiers {
		if n == id {
			srv.state.Connections.FileNotifiers = append(notifiers[:i], notifiers[i+1:]...)
			break
		}
	}
}
