package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"collabdeck/internal/metrics"
	"collabdeck/internal/services"
)

// PresentHandler serves the presenter-follow channel: an ownership-gated
// broadcast of a single slide-index pointer, decoupled from slide content.
// It runs on its own websocket endpoint and a distinct channel namespace
// so editing traffic and presenter traffic never cross.
type PresentHandler struct {
	hub     *services.Hub
	users   *services.UserService
	limiter *limiterPool
}

// NewPresentHandler creates a new presenter-follow handler
func NewPresentHandler(hub *services.Hub, users *services.UserService) *PresentHandler {
	return &PresentHandler{
		hub:     hub,
		users:   users,
		limiter: newLimiterPool(50, 100),
	}
}

// HandleWS upgrades the connection and runs the follow-channel read loop
// GET /presentModeHub
func (h *PresentHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	connID := ulid.Make().String()
	client := h.hub.Register(connID, conn)

	log.Printf("Follow session %s connected from %s", connID, r.RemoteAddr)
	h.readLoop(conn, client)
}

func (h *PresentHandler) readLoop(conn *websocket.Conn, client *services.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
		h.limiter.Forget(client.ID)
		log.Printf("Follow session %s disconnected", client.ID)
	}()

	conn.SetReadLimit(services.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(services.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(services.PongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Follow session %s read error: %v", client.ID, err)
			}
			return
		}
		if !h.limiter.Allow(client.ID) {
			log.Printf("Follow session %s rate limited", client.ID)
			continue
		}
		h.dispatch(client, raw)
	}
}

func (h *PresentHandler) dispatch(client *services.Client, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Follow session %s: panic in command dispatch: %v", client.ID, rec)
			metrics.CommandErrors.WithLabelValues("panic").Inc()
			h.hub.PublishToCaller(client, EventError, ErrorPayload{
				Code:    CodeError,
				Message: "internal error",
			})
		}
	}()

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("Follow session %s: malformed command frame: %v", client.ID, err)
		return
	}

	metrics.CommandsProcessed.WithLabelValues(cmd.Command).Inc()

	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok {
		log.Printf("Follow session %s: invalid presentation id %q", client.ID, cmd.PresentationID)
		return
	}

	switch cmd.Command {
	case CmdJoinPresentation:
		h.hub.Subscribe(client, services.PresentChannelName(presID))
	case CmdLeavePresentation:
		h.hub.Unsubscribe(client, services.PresentChannelName(presID))
	case CmdSetSlide:
		if cmd.Index < 0 {
			log.Printf("Follow session %s: invalid slide index %d", client.ID, cmd.Index)
			return
		}
		// Pure broadcast of the pointer; slide content and versions are
		// untouched
		h.hub.Publish(services.PresentChannelName(presID), EventOnSlideChanged, IndexPayload{Index: cmd.Index})
	case CmdEnterPresentMode:
		h.handleEnterPresentMode(client, presID, cmd.Username)
	case CmdCheckPresentAccess:
		h.handleCheckPresentAccess(client, presID, cmd.Username)
	default:
		log.Printf("Follow session %s: unknown command %q", client.ID, cmd.Command)
	}
}

func (h *PresentHandler) handleEnterPresentMode(client *services.Client, presID int, username string) {
	if username == "" {
		log.Printf("Follow session %s: missing username for present mode entry", client.ID)
		return
	}

	if err := h.users.SetPresentingMode(presID, username, true); err != nil {
		h.replyError(client, err)
		return
	}
	h.hub.PublishToCaller(client, EventPresentModeChanged, PresentModePayload{
		PresentationID: presID,
		Enabled:        true,
	})
}

// handleCheckPresentAccess re-verifies ownership and the presenting-mode
// flag at the moment of the call; both can change between mode entry and a
// later join
func (h *PresentHandler) handleCheckPresentAccess(client *services.Client, presID int, username string) {
	err := h.users.CheckPresentAccess(presID, username)
	granted := err == nil
	if err != nil && !errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrUnauthorized) {
		h.replyError(client, err)
		return
	}
	h.hub.PublishToCaller(client, EventPresentAccess, PresentAccessPayload{
		PresentationID: presID,
		Granted:        granted,
	})
}

func (h *PresentHandler) replyError(client *services.Client, err error) {
	payload := ErrorPayload{Code: CodeError, Message: "internal error"}
	switch {
	case errors.Is(err, services.ErrNotFound):
		payload = ErrorPayload{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, services.ErrUnauthorized):
		payload = ErrorPayload{Code: CodeUnauthorized, Message: err.Error()}
	default:
		log.Printf("Follow session %s: command failed: %v", client.ID, err)
	}
	metrics.CommandErrors.WithLabelValues(payload.Code).Inc()
	h.hub.PublishToCaller(client, EventError, payload)
}
