package relay

import (
	"fmt"
	"net/http"
	"time"
)

const sseKeepAlive = 25 * time.Second

// SSEHandler streams the patches of the session named by ?session= as SSE.
// The first event is a replay of the current page state.
func SSEHandler(resolve Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := resolve(r.URL.Query().Get("session"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		broker := ch.Broker()
		id, events := broker.Subscribe()
		defer broker.Unsubscribe(id)

		replay := ch.Replay()
		writeSSE(w, replay)
		flusher.Flush()
		ch.Touch()

		keepAlive := time.NewTicker(sseKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
				ch.Touch()
			case evt, ok := <-events:
				if !ok {
					return
				}
				if evt.Seq <= replay.Seq {
					continue
				}
				writeSSE(w, evt)
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, evt Event) {
	fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", evt.Feed, evt.Seq, evt.Payload)
}
