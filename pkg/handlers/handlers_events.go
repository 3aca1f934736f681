package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChangeEvent tells clients that a collection changed and should be re-read.
type ChangeEvent struct {
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}

// EventHub turns store pushes into events for connected clients. Credential
// changes are never broadcast.
type EventHub struct {
	docs   docstore.Store
	logger *zap.Logger

	mu      sync.Mutex
	clients map[chan ChangeEvent]struct{}
	unsubs  []docstore.Unsubscribe
	started bool
}

// NewEventHub creates a hub; call Start to subscribe.
func NewEventHub(docs docstore.Store, logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{docs: docs, logger: logger, clients: make(map[chan ChangeEvent]struct{})}
}

// Start subscribes to the grid collections. The initial snapshots are not broadcast.
func (e *EventHub) Start() {
	for _, coll := range []string{docstore.CollectionAvailability, docstore.CollectionAssignments, docstore.CollectionSettings} {
		coll := coll
		unsub := e.docs.Subscribe(docstore.Collection(coll),
			func(s docstore.Snapshot) { e.publish(ChangeEvent{Collection: coll, Documents: len(s)}) },
			func(err error) {
				e.publish(ChangeEvent{Collection: coll, Error: apperr.From(err).Code})
			})
		e.mu.Lock()
		e.unsubs = append(e.unsubs, unsub)
		e.mu.Unlock()
	}
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
}

// Close ends every subscription and disconnects clients.
func (e *EventHub) Close() {
	e.mu.Lock()
	unsubs := e.unsubs
	e.unsubs = nil
	e.started = false
	for ch := range e.clients {
		close(ch)
		delete(e.clients, ch)
	}
	e.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (e *EventHub) publish(ev ChangeEvent) {
	ev.At = time.Now().UTC()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	for ch := range e.clients {
		select {
		case ch <- ev:
		default:
			e.logger.Warn("dropping event for slow client", zap.String("collection", ev.Collection))
		}
	}
}

// Add registers a client. The returned func removes it.
func (e *EventHub) Add() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 16)
	e.mu.Lock()
	e.clients[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			if _, ok := e.clients[ch]; ok {
				delete(e.clients, ch)
				close(ch)
			}
			e.mu.Unlock()
		})
	}
}

// heartbeatInterval keeps idle connections open through proxies.
var heartbeatInterval = 15 * time.Second

// StreamEvents streams change notifications as server-sent events.
func (h *Handler) StreamEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	events, remove := h.Events.Add()
	defer remove()

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c.Writer, "change", ev)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
