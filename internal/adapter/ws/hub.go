// Package ws is the concrete presentation collaborator: a WebSocket hub that
// broadcasts render commands to connected viewers. It implements both the
// reconciler's presentation sink and the wave driver's map surface; the core
// packages only ever see those interfaces.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/observability"
	"github.com/quakewatch/eew-alert-service/internal/reconcile"
	"github.com/quakewatch/eew-alert-service/internal/wave"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Hub fans render commands out to every connected viewer. Commands arrive
// from the reconciler goroutine, timer callbacks, and wave simulation
// goroutines; all hub state is mutex-guarded.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *observability.Metrics
	fade     time.Duration // removal transition allowance sent to viewers

	mu         sync.Mutex
	clients    map[*client]struct{}
	nextHandle uint64
	banners    map[reconcile.BannerHandle]bannerState
	lastList   []domain.HistoryEntry
}

type bannerState struct {
	eventID string
	fields  domain.AlertFields
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub. fade is the visual removal allowance passed
// along with banner_remove commands.
func NewHub(fade time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		fade:    fade,
		clients: make(map[*client]struct{}),
		banners: make(map[reconcile.BannerHandle]bannerState),
	}
}

// HandleWS upgrades the connection, replays current state to the new viewer,
// and registers it for subsequent broadcasts.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	// Late joiners get the active banners and the current quake list before
	// any live command.
	for handle, b := range h.banners {
		fields := b.fields
		c.enqueue(marshal(Command{Op: OpBannerRender, EventID: b.eventID, Banner: string(handle), Fields: &fields}))
	}
	if len(h.lastList) > 0 {
		c.enqueue(marshal(Command{Op: OpQuakeList, Entries: h.lastList}))
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ViewersActive.Set(float64(count))
	}
	h.logger.Info("viewer connected", "viewers", count)

	go c.writePump()
	go h.readPump(c)
}

// readPump drains inbound frames (viewers send nothing meaningful) and
// unregisters the client when the connection dies.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
}

// enqueue never blocks; the caller evicts the client when the buffer is full.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ViewersActive.Set(float64(count))
	}
}

// broadcast marshals once and pushes to every client, evicting any whose
// send buffer is full (a stalled viewer must not stall the render loop).
func (h *Hub) broadcast(cmd Command) {
	msg := marshal(cmd)

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if len(slow) > 0 {
		h.logger.Warn("evicted slow viewers", "count", len(slow))
	}
	if h.metrics != nil {
		h.metrics.CommandsPushed.Inc()
		h.metrics.ViewersActive.Set(float64(count))
	}
}

func marshal(cmd Command) []byte {
	msg, err := json.Marshal(cmd)
	if err != nil {
		// Commands are plain value structs; this cannot fail at runtime.
		panic(fmt.Sprintf("marshal render command: %v", err))
	}
	return msg
}

// --- reconcile.PresentationSink ---

// RenderAlertBanner broadcasts a new banner and remembers it for late joiners.
func (h *Hub) RenderAlertBanner(eventID string, fields domain.AlertFields) reconcile.BannerHandle {
	handle := reconcile.BannerHandle("banner-" + eventID)

	h.mu.Lock()
	h.banners[handle] = bannerState{eventID: eventID, fields: fields}
	h.mu.Unlock()

	h.broadcast(Command{Op: OpBannerRender, EventID: eventID, Banner: string(handle), Fields: &fields})
	return handle
}

// UpdateBannerContent replaces a banner's fields in place.
func (h *Hub) UpdateBannerContent(handle reconcile.BannerHandle, fields domain.AlertFields) {
	h.mu.Lock()
	b, ok := h.banners[handle]
	if ok {
		b.fields = fields
		h.banners[handle] = b
	}
	h.mu.Unlock()

	h.broadcast(Command{Op: OpBannerUpdate, Banner: string(handle), Fields: &fields})
}

// HideAndRemoveBanner fades the banner out on the viewer side; the hub
// forgets it immediately.
func (h *Hub) HideAndRemoveBanner(handle reconcile.BannerHandle) {
	h.mu.Lock()
	delete(h.banners, handle)
	h.mu.Unlock()

	h.broadcast(Command{Op: OpBannerRemove, Banner: string(handle), FadeMs: int(h.fade.Milliseconds())})
}

// RenderEarthquakeList replaces the recent-quake panel.
func (h *Hub) RenderEarthquakeList(entries []domain.HistoryEntry) {
	h.mu.Lock()
	h.lastList = entries
	h.mu.Unlock()

	h.broadcast(Command{Op: OpQuakeList, Entries: entries})
}

// --- wave.Surface ---

func (h *Hub) newHandle(prefix string) wave.Handle {
	h.mu.Lock()
	h.nextHandle++
	n := h.nextHandle
	h.mu.Unlock()
	return wave.Handle(fmt.Sprintf("%s-%d", prefix, n))
}

// PlaceEpicenter drops the epicenter marker.
func (h *Hub) PlaceEpicenter(lat, lon float64) wave.Handle {
	handle := h.newHandle("epicenter")
	h.broadcast(Command{Op: OpPlaceEpicenter, Handle: string(handle), Lat: lat, Lon: lon})
	return handle
}

// AddWave creates a wavefront circle at radius zero.
func (h *Hub) AddWave(lat, lon float64) wave.Handle {
	handle := h.newHandle("wave")
	h.broadcast(Command{Op: OpAddWave, Handle: string(handle), Lat: lat, Lon: lon})
	return handle
}

// SetWaveRadius resizes a wavefront circle.
func (h *Hub) SetWaveRadius(handle wave.Handle, meters float64) {
	h.broadcast(Command{Op: OpSetWaveRadius, Handle: string(handle), Radius: meters})
}

// SetWaveOpacity restyles a wavefront circle.
func (h *Hub) SetWaveOpacity(handle wave.Handle, stroke, fill float64) {
	h.broadcast(Command{Op: OpSetWaveOpacity, Handle: string(handle), Stroke: stroke, Fill: fill})
}

// RemoveMapObjects deletes rendered map objects.
func (h *Hub) RemoveMapObjects(handles ...wave.Handle) {
	hs := make([]string, len(handles))
	for i, handle := range handles {
		hs[i] = string(handle)
	}
	h.broadcast(Command{Op: OpRemoveObjects, Handles: hs})
}

// FitViewTo pans/zooms viewers to keep the given objects in frame.
func (h *Hub) FitViewTo(handles []wave.Handle, padding int) {
	hs := make([]string, len(handles))
	for i, handle := range handles {
		hs[i] = string(handle)
	}
	h.broadcast(Command{Op: OpFitView, Handles: hs, Padding: padding})
}

// ResetView restores the baseline center and zoom.
func (h *Hub) ResetView(lat, lon float64, zoom int) {
	h.broadcast(Command{Op: OpResetView, Lat: lat, Lon: lon, Zoom: zoom})
}
