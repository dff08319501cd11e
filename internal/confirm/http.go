package confirm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Summary is the JSON shape of one pending confirmation.
type Summary struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	CreatedAt time.Time      `json:"created_at"`
}

type pending struct {
	Summary
	decisionCh chan decisionMsg
}

type decisionMsg struct {
	decision Decision
	message  string
}

type resolveReq struct {
	id      string
	msg     decisionMsg
	replyCh chan bool // false when the id is unknown
}

// HTTP is a Confirmer that publishes pending requests over an HTTP API and
// an SSE stream, and suspends the caller until an operator decides or the
// timeout elapses (timeout = Deny).
//
// Concurrency model: a single internal loop owns all mutable state
// (pending requests + SSE clients); public methods talk to it through
// channels, so no mutexes are required.
type HTTP struct {
	timeout time.Duration
	seq     atomic.Uint64

	addCh         chan *pending
	removeCh      chan string
	resolveCh     chan resolveReq
	listCh        chan chan []Summary
	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewHTTP creates the HTTP confirmer and starts its event loop.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	h := &HTTP{
		timeout:       timeout,
		addCh:         make(chan *pending),
		removeCh:      make(chan string),
		resolveCh:     make(chan resolveReq),
		listCh:        make(chan chan []Summary),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *HTTP) run() {
	defer close(h.stopped)

	reqs := make(map[string]*pending)
	clients := make(map[chan []byte]struct{})

	broadcast := func(eventType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-h.stopCh:
			for ch := range clients {
				close(ch)
			}
			// Unblock every waiting Confirm call with a denial.
			for _, p := range reqs {
				p.decisionCh <- decisionMsg{Deny, "confirmer shut down"}
			}
			return

		case p := <-h.addCh:
			reqs[p.ID] = p
			broadcast("confirmation.pending", p.Summary)

		case id := <-h.removeCh:
			delete(reqs, id)

		case req := <-h.resolveCh:
			p, ok := reqs[req.id]
			if ok {
				delete(reqs, req.id)
				p.decisionCh <- req.msg
				broadcast("confirmation.resolved", map[string]string{
					"id":       req.id,
					"decision": req.msg.decision.String(),
				})
			}
			req.replyCh <- ok

		case ch := <-h.listCh:
			out := make([]Summary, 0, len(reqs))
			for _, p := range reqs {
				out = append(out, p.Summary)
			}
			ch <- out

		case ch := <-h.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-h.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
		}
	}
}

// Close stops the loop, denying anything still pending.
func (h *HTTP) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

// Confirm implements Confirmer: it parks the caller until an operator
// decision arrives, the timeout elapses, or ctx is cancelled. Timeout and
// cancellation are denials, never silent approvals.
func (h *HTTP) Confirm(ctx context.Context, tool string, args map[string]any) (Decision, string, error) {
	p := &pending{
		Summary: Summary{
			ID:        fmt.Sprintf("c%06d", h.seq.Add(1)),
			Tool:      tool,
			Args:      args,
			CreatedAt: time.Now().UTC(),
		},
		decisionCh: make(chan decisionMsg, 1),
	}

	select {
	case h.addCh <- p:
	case <-h.stopped:
		return Deny, "confirmer shut down", nil
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case msg := <-p.decisionCh:
		return msg.decision, msg.message, nil
	case <-timer.C:
		h.drop(p.ID)
		return Deny, "confirmation timed out", nil
	case <-ctx.Done():
		h.drop(p.ID)
		return Deny, "", ctx.Err()
	}
}

func (h *HTTP) drop(id string) {
	select {
	case h.removeCh <- id:
	case <-h.stopped:
	}
}

// Router returns the confirmation API: list pending, resolve by id, and an
// SSE stream of pending/resolved events.
func (h *HTTP) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/confirmations", h.handleList)
	r.Post("/confirmations/{id}", h.handleResolve)
	r.Get("/events", h.handleEvents)
	return r
}

func (h *HTTP) handleList(w http.ResponseWriter, _ *http.Request) {
	ch := make(chan []Summary, 1)
	select {
	case h.listCh <- ch:
	case <-h.stopped:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, <-ch)
}

func (h *HTTP) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var d Decision
	switch body.Decision {
	case "approve":
		d = Approve
	case "always":
		d = AlwaysAllow
	case "deny":
		d = Deny
	default:
		http.Error(w, fmt.Sprintf("unknown decision %q", body.Decision), http.StatusBadRequest)
		return
	}

	req := resolveReq{
		id:      chi.URLParam(r, "id"),
		msg:     decisionMsg{d, body.Message},
		replyCh: make(chan bool, 1),
	}
	select {
	case h.resolveCh <- req:
	case <-h.stopped:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if !<-req.replyCh {
		http.Error(w, "no such confirmation", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *HTTP) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan []byte, 64)
	select {
	case h.subscribeCh <- ch:
	case <-h.stopped:
		return
	}
	defer func() {
		select {
		case h.unsubscribeCh <- ch:
		case <-h.stopped:
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
