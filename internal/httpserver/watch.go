// internal/httpserver/watch.go
//
// Spectator websocket for game sessions. Watchers connect with
// GET /game/watch?gameId=... and receive a rendering snapshot after
// every submission against that session. Watchers are read-only: the
// engine is driven exclusively through /game/word.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// watcher wraps one spectator connection. The write mutex keeps
// WriteJSON calls serialized per connection, which lets broadcasts
// run without holding the hub lock.
type watcher struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *watcher) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// watchHub tracks connected spectators per session.
type watchHub struct {
	mu       sync.Mutex
	watchers map[string][]*watcher // keyed by gameID
}

func newWatchHub() *watchHub {
	return &watchHub{watchers: make(map[string][]*watcher)}
}

var upgrader = websocket.Upgrader{
	// Origin is already policed by the CORS layer for the REST surface;
	// the watch stream carries no credentials and is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch upgrades the connection and registers the watcher. The
// read loop exists only to detect disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("gameId")
	if id == "" {
		http.Error(w, `{"error":"gameId_required"}`, http.StatusBadRequest)
		return
	}
	if _, err := s.store.Get(r.Context(), id); err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("watch upgrade failed")
		return
	}

	wt := s.hub.add(id, conn)
	defer func() {
		s.hub.remove(id, wt)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // watcher disconnected
		}
	}
}

// add registers a watcher connection for a session.
func (h *watchHub) add(gameID string, conn *websocket.Conn) *watcher {
	wt := &watcher{conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchers[gameID] = append(h.watchers[gameID], wt)
	return wt
}

// remove deregisters a watcher; the last watcher removes the map entry
// to prevent a leak.
func (h *watchHub) remove(gameID string, wt *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.watchers[gameID]
	for i, c := range conns {
		if c == wt {
			h.watchers[gameID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.watchers[gameID]) == 0 {
		delete(h.watchers, gameID)
	}
}

// broadcast sends a snapshot to every watcher of a session. The hub
// lock covers only the slice copy, so one slow spectator cannot stall
// broadcasts for other sessions. Dead connections are dropped on
// write failure.
func (h *watchHub) broadcast(gameID string, snap stateRes) {
	h.mu.Lock()
	conns := append([]*watcher(nil), h.watchers[gameID]...)
	h.mu.Unlock()

	for _, wt := range conns {
		if err := wt.send(snap); err != nil {
			wt.conn.Close()
			h.remove(gameID, wt)
		}
	}
}

// closeSession drops every watcher of a session; used when a reset
// replaces the session wholesale.
func (h *watchHub) closeSession(gameID string) {
	h.mu.Lock()
	conns := h.watchers[gameID]
	delete(h.watchers, gameID)
	h.mu.Unlock()

	for _, wt := range conns {
		wt.conn.Close()
	}
}
