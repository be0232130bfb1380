package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/service"
	ws "github.com/stemsi/libris-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ActivitySubscriber streams live attendance events.
type ActivitySubscriber interface {
	Subscribe(ctx context.Context) (<-chan model.ActivityEvent, error)
}

// WSHandler pushes the live attendance feed to dashboard clients.
type WSHandler struct {
	feed       ActivitySubscriber
	attendance *service.AttendanceService
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(feed ActivitySubscriber, attendance *service.AttendanceService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:       feed,
		attendance: attendance,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// AttendanceStream godoc
// WS /ws/v1/attendance/stream
// Sends today's recent activity, then every check-in and check-out as it
// happens. Clients may send {"action":"ping"} to keep the connection alive.
func (h *WSHandler) AttendanceStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Attendance feed subscribe failed")
		ws.WriteError(conn, "live feed unavailable")
		return
	}

	if h.attendance != nil {
		recent, err := h.attendance.RecentActivity(ctx, service.DefaultActivityLimit, time.Now())
		if err != nil {
			h.log.Warn().Err(err).Msg("Recent activity snapshot failed")
			recent = []model.ActivityEvent{}
		}
		if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Events: recent}); err != nil {
			return
		}
	}

	h.log.Info().Str("remote", c.ClientIP()).Msg("Attendance stream connected")

	pings := make(chan struct{}, 1)
	go h.readLoop(conn, cancel, pings)

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Attendance stream closed")
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				ws.WriteError(conn, "live feed ended")
				return
			}
			if err := ws.WriteTyped(conn, ws.ActivityResponse{Event: ws.EventActivity, Activity: event}); err != nil {
				h.log.Debug().Err(err).Msg("Attendance stream write failed")
				return
			}
		}
	}
}

// readLoop consumes client messages until the connection drops. Only the
// stream loop writes to conn.
func (h *WSHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		if msg.Action == ws.ActionPing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}
