// Package feed streams the result list to websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// The available frame kinds.
const (
	KindReset  = "reset"
	KindRecord = "record"
)

// Frame is a single message sent to clients.
type Frame struct {
	Kind   string `json:"kind"`
	Record string `json:"record,omitempty"`
}

// Queue is used to receive frames from a hub.
type Queue chan Frame

// Hub keeps the current result list and broadcasts changes to subscribers.
// Subscribers that do not keep up are dropped.
type Hub struct {
	records []string
	subs    map[Queue]struct{}
	mutex   sync.Mutex
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		subs: map[Queue]struct{}{},
	}
}

// Update replaces the result list. Appended records are broadcast as record
// frames, any other change as a reset followed by all records.
func (h *Hub) Update(records []string) {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// check for append
	appended := len(records) >= len(h.records)
	for i := range h.records {
		if !appended || records[i] != h.records[i] {
			appended = false
			break
		}
	}

	// prepare frames
	var frames []Frame
	if appended {
		frames = recordFrames(records[len(h.records):])
	} else {
		frames = append([]Frame{{Kind: KindReset}}, recordFrames(records)...)
	}

	// store records
	h.records = append([]string(nil), records...)

	// broadcast frames
	for q := range h.subs {
		for _, f := range frames {
			select {
			case q <- f:
			default:
				delete(h.subs, q)
				close(q)
			}
			if _, ok := h.subs[q]; !ok {
				break
			}
		}
	}
}

// Subscribe registers a queue and returns the frames that replay the
// current result list.
func (h *Hub) Subscribe(q Queue) []Frame {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// add subscription
	h.subs[q] = struct{}{}

	return append([]Frame{{Kind: KindReset}}, recordFrames(h.records)...)
}

// Unsubscribe removes a queue. Removing an unknown queue is a no-op.
func (h *Hub) Unsubscribe(q Queue) {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// remove subscription
	if _, ok := h.subs[q]; ok {
		delete(h.subs, q)
		close(q)
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// accept connection
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"scout"},
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	// ignore incoming messages
	ctx := conn.CloseRead(r.Context())

	// subscribe
	q := make(Queue, 64)
	replay := h.Subscribe(q)
	defer h.Unsubscribe(q)

	// write replay
	for _, f := range replay {
		err = write(ctx, conn, f)
		if err != nil {
			return
		}
	}

	// write frames
	for {
		select {
		case f, ok := <-q:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			err = write(ctx, conn, f)
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, f Frame) error {
	// encode frame
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	// write with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, data)
}

func recordFrames(records []string) []Frame {
	frames := make([]Frame, 0, len(records))
	for _, r := range records {
		frames = append(frames, Frame{Kind: KindRecord, Record: r})
	}
	return frames
}
