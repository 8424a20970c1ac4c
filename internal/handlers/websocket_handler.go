package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/services"
)

// WebSocketHandler handles the live guestbook and timeline connections
type WebSocketHandler struct {
	hub       *services.WebSocketHub
	guestbook *services.GuestbookService
	store     *services.TimelineStore
	opts      services.SessionOptions
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. An empty
// allowedOrigins accepts every origin.
func NewWebSocketHandler(hub *services.WebSocketHub, guestbook *services.GuestbookService, store *services.TimelineStore, opts services.SessionOptions, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		guestbook: guestbook,
		store:     store,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

// Guestbook streams new guestbook entries. The full list is sent first.
// A client may pause the stream with "unsubscribe"; "subscribe" resumes it
// with a fresh snapshot.
func (h *WebSocketHandler) Guestbook(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithContext(r.Context()).WithField("error", err.Error()).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	h.hub.Subscribe(client, services.TopicGuestbook)

	go client.WritePump()

	h.sendGuestbookSnapshot(r.Context(), client)

	client.ReadPump(func(c *services.WSClient, msg services.WSMessage) {
		switch msg.Type {
		case services.WSTypePing:
			c.Enqueue(services.WSTypePong, nil)
		case services.WSTypeSubscribe:
			h.hub.Subscribe(c, services.TopicGuestbook)
			h.sendGuestbookSnapshot(r.Context(), c)
		case services.WSTypeUnsubscribe:
			h.hub.Unsubscribe(c, services.TopicGuestbook)
		default:
			c.Enqueue(services.WSTypeError, services.ErrorPayload{Error: errUnknownMessage.Error()})
		}
	})
}

func (h *WebSocketHandler) sendGuestbookSnapshot(ctx context.Context, client *services.WSClient) {
	entries, err := h.guestbook.List(ctx)
	if err != nil {
		client.Enqueue(services.WSTypeError, services.ErrorPayload{Error: models.ErrSourceFetch.Error()})
		return
	}
	client.Enqueue(services.WSTypeGuestbookSnapshot, models.GuestbookListResponse{
		Entries:    entries,
		TotalCount: len(entries),
	})
}

type selectPayload struct {
	Index int `json:"index"`
}

type keyPayload struct {
	Key string `json:"key"`
}

type swipePayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type scrollPayload struct {
	ScrollLeft  float64 `json:"scrollLeft"`
	Viewport    float64 `json:"viewport"`
	ScrollWidth float64 `json:"scrollWidth"`
}

type jumpDatePayload struct {
	Date string `json:"date"`
}

type imagePayload struct {
	ID string `json:"id"`
}

// Timeline opens a viewer session for the connection. Every state change
// is pushed as a timeline_state message; commands from the client drive
// navigation.
func (h *WebSocketHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithContext(r.Context()).WithField("error", err.Error()).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	go client.WritePump()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Only the newest state matters; older ones are dropped
	states := make(chan models.TimelineState, 1)
	session := services.NewTimelineSession(h.store, h.opts, func(state models.TimelineState) {
		select {
		case <-states:
		default:
		}
		select {
		case states <- state:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-states:
				client.Enqueue(services.WSTypeTimelineState, state)
			}
		}
	}()

	if err := session.Open(ctx); err != nil {
		client.Enqueue(services.WSTypeError, services.ErrorPayload{Error: err.Error()})
		client.Close()
		return
	}
	defer session.Close()

	client.ReadPump(func(c *services.WSClient, msg services.WSMessage) {
		if msg.Type == services.WSTypePing {
			c.Enqueue(services.WSTypePong, nil)
			return
		}
		if err := h.dispatch(session, msg); err != nil {
			c.Enqueue(services.WSTypeError, services.ErrorPayload{Error: err.Error()})
		}
		if session.Closed() {
			c.Close()
		}
	})
}

func (h *WebSocketHandler) dispatch(session *services.TimelineSession, msg services.WSMessage) error {
	switch msg.Type {
	case services.WSTypeSelect:
		var p selectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		_, err := session.JumpToIndex(p.Index)
		return err

	case services.WSTypeNext:
		session.Next()

	case services.WSTypePrevious:
		session.Previous()

	case services.WSTypeKey:
		var p keyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		if session.HandleKey(p.Key) == services.KeyActionClose {
			session.Close()
		}

	case services.WSTypeSwipe:
		var p swipePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		session.HandleSwipe(p.DX, p.DY)

	case services.WSTypeScroll:
		var p scrollPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		session.Scroll(p.ScrollLeft, p.Viewport, p.ScrollWidth)

	case services.WSTypeJumpToDate:
		var p jumpDatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		loc := h.opts.Location
		if loc == nil {
			loc = time.Local
		}
		date, err := time.ParseInLocation("2006-01-02", p.Date, loc)
		if err != nil {
			return errInvalidPayload
		}
		_, err = session.JumpToDate(date)
		return err

	case services.WSTypeImageFailed, services.WSTypeImageLoaded:
		var p imagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			return errInvalidPayload
		}
		if msg.Type == services.WSTypeImageFailed {
			session.ReportImageFailed(p.ID)
		} else {
			session.ReportImageLoaded(p.ID)
		}

	case services.WSTypeClose:
		session.Close()

	default:
		return errUnknownMessage
	}
	return nil
}

var (
	errInvalidPayload = models.TimelineError{Message: "invalid message payload"}
	errUnknownMessage = models.TimelineError{Message: "unknown message type"}
)
