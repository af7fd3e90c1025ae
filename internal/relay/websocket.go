package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocketHandler upgrades to a websocket for the session named by ?session=.
// Browser frames are client events; server frames are patches, starting
// with a replay of the current page state.
func WebSocketHandler(resolve Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		ch, ok := resolve(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "session", sessionID, "error", err)
			return
		}
		c := &wsConn{conn: conn, ch: ch, session: sessionID}
		c.serve()
	}
}

type wsConn struct {
	session string
	ch      Channel

	mu   sync.Mutex
	conn net.Conn
}

func (c *wsConn) serve() {
	defer c.conn.Close()

	broker := c.ch.Broker()
	id, events := broker.Subscribe()
	defer broker.Unsubscribe(id)

	replay := c.ch.Replay()
	if err := c.write(replay); err != nil {
		slog.Debug("websocket replay write failed", "session", c.session, "error", err)
		return
	}
	c.ch.Touch()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop()
	}()

	slog.Debug("websocket connected", "session", c.session)
	defer slog.Debug("websocket disconnected", "session", c.session)

	for {
		select {
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Seq <= replay.Seq {
				continue
			}
			if err := c.write(evt); err != nil {
				slog.Debug("websocket write failed", "session", c.session, "error", err)
				return
			}
		}
	}
}

// readLoop decodes client events until the connection closes.
func (c *wsConn) readLoop() {
	for {
		data, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			var closed wsutil.ClosedError
			if !errors.As(err, &closed) {
				slog.Debug("websocket read loop exit", "session", c.session, "error", err)
			}
			return
		}
		if op != ws.OpText {
			continue
		}
		c.ch.Touch()

		var evt ClientEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Debug("websocket bad frame", "session", c.session, "error", err)
			continue
		}
		if err := c.ch.Dispatch(evt); err != nil {
			slog.Debug("websocket event rejected", "session", c.session, "type", evt.Type, "error", err)
		}
	}
}

func (c *wsConn) write(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerText(c.conn, []byte(evt.Payload))
}
