// Packetmux fans received tally packets out to any number of subscribers and
// keeps a short history for the debug pages.
package packetmux

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/httputil"
	"github.com/banshee-data/tslumd/internal/timeutil"
)

// DefaultHistory is the number of events kept for the packets page.
const DefaultHistory = 100

// subscriberBuffer is the per-subscriber queue depth. Events for a
// subscriber whose queue is full are dropped.
const subscriberBuffer = 64

//go:embed templates/*
var adminTemplateFS embed.FS

var packetsTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/packets.html.tmpl"))

// PacketMux distributes events to subscribers without ever blocking the
// publisher.
type PacketMux struct {
	version      tslumd.Version
	subscribers  map[string]chan Event
	subscriberMu sync.Mutex
	closing      bool

	historyMu sync.Mutex
	history   []Event
	next      int
	full      bool

	clock timeutil.Clock
}

// NewPacketMux creates a mux for packets of the given version that remembers
// the last history events. A non-positive history uses DefaultHistory.
func NewPacketMux(version tslumd.Version, history int) *PacketMux {
	if history <= 0 {
		history = DefaultHistory
	}
	return &PacketMux{
		version:     version,
		subscribers: make(map[string]chan Event),
		history:     make([]Event, history),
		clock:       timeutil.RealClock{},
	}
}

// Subscribe registers a new subscriber. The id is used to unsubscribe. The
// channel is closed by Unsubscribe or Close.
func (m *PacketMux) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *PacketMux) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers returns the number of active subscribers.
func (m *PacketMux) Subscribers() int {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	return len(m.subscribers)
}

// Publish records e and offers it to every subscriber.
func (m *PacketMux) Publish(e Event) {
	m.historyMu.Lock()
	m.history[m.next] = e
	m.next = (m.next + 1) % len(m.history)
	if m.next == 0 {
		m.full = true
	}
	m.historyMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		return
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- e:
		default:
			// slow subscriber; skip rather than stall the receive loop
		}
	}
}

// SetClock replaces the clock used to timestamp events.
func (m *PacketMux) SetClock(c timeutil.Clock) {
	m.clock = c
}

// HandleFrame publishes a received frame. It satisfies network.Handler.
func (m *PacketMux) HandleFrame(frame tslumd.Frame, src *net.UDPAddr) {
	var addr net.Addr
	if src != nil {
		addr = src
	}
	m.Publish(NewEvent(frame, m.version, addr, m.clock.Now()))
}

// Recent returns the remembered events, oldest first.
func (m *PacketMux) Recent() []Event {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	if !m.full {
		return append([]Event(nil), m.history[:m.next]...)
	}
	out := make([]Event, 0, len(m.history))
	out = append(out, m.history[m.next:]...)
	return append(out, m.history[:m.next]...)
}

// recentSummaries returns up to limit summaries, newest first. A negative
// address matches every display.
func (m *PacketMux) recentSummaries(address, limit int) []Summary {
	recent := m.Recent()
	out := make([]Summary, 0, min(limit, len(recent)))
	for i := len(recent) - 1; i >= 0 && len(out) < limit; i-- {
		s := recent[i].Summary()
		if address >= 0 && int(s.Address) != address {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Close closes every subscriber channel. Later publishes only update the
// history.
func (m *PacketMux) Close() error {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return nil
}

// AttachAdminRoutes mounts the packet tail under /debug/.
func (m *PacketMux) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("packets", "recently received tally packets", func(w http.ResponseWriter, r *http.Request) {
		recent := m.Recent()
		rows := make([]Summary, len(recent))
		for i, e := range recent {
			// newest first
			rows[len(recent)-1-i] = e.Summary()
		}
		buf := bytes.NewBuffer(nil)
		if err := packetsTemplate.Execute(buf, map[string]any{
			"Version": m.version.String(),
			"Rows":    rows,
		}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, buf)
	})

	// ?address=N keeps one display, ?limit=N caps the result. Newest first.
	debug.HandleSilentFunc("recent.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		address, err := httputil.QueryInt(r, "address", -1, 0, 126)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		limit, err := httputil.QueryInt(r, "limit", len(m.history), 1, len(m.history))
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, m.recentSummaries(address, limit))
	})

	// Server-Sent Events stream of packet summaries as JSON.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case e, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(e.Summary())
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")

		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
