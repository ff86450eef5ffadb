package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"collabdeck/internal/metrics"
	"collabdeck/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// session is the per-connection state of the coordinator: which
// presentation and username this connection has joined, if any
type session struct {
	client   *services.Client
	presID   int
	username string
	joined   bool
	// true when this connection owns the authoritative presence entry for
	// (presID, username); a duplicate join on a second connection does not
	subscribed bool
}

// WSHandler is the protocol entry point for editing sessions. It receives
// client commands over a persistent websocket, invokes the registry,
// permission and slide services in order and triggers broadcasts.
type WSHandler struct {
	hub         *services.Hub
	presence    *services.PresenceRegistry
	users       *services.UserService
	permissions *services.PermissionService
	slides      *services.SlideService
	limiter     *limiterPool
}

// NewWSHandler creates a new websocket session coordinator
func NewWSHandler(
	hub *services.Hub,
	presence *services.PresenceRegistry,
	users *services.UserService,
	permissions *services.PermissionService,
	slides *services.SlideService,
) *WSHandler {
	return &WSHandler{
		hub:         hub,
		presence:    presence,
		users:       users,
		permissions: permissions,
		slides:      slides,
		limiter:     newLimiterPool(50, 100),
	}
}

// HandleWS upgrades the connection and runs the session read loop
// GET /presentationHub
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	connID := ulid.Make().String()
	client := h.hub.Register(connID, conn)
	sess := &session{client: client}

	log.Printf("Session %s connected from %s", connID, r.RemoteAddr)
	h.readLoop(conn, sess)
}

func (h *WSHandler) readLoop(conn *websocket.Conn, sess *session) {
	defer func() {
		h.teardown(sess)
		conn.Close()
		h.limiter.Forget(sess.client.ID)
		log.Printf("Session %s disconnected", sess.client.ID)
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
				log.Printf("Session %s read error: %v", sess.client.ID, err)
			}
			return
		}
		if !h.limiter.Allow(sess.client.ID) {
			log.Printf("Session %s rate limited", sess.client.ID)
			continue
		}
		h.dispatch(sess, raw)
	}
}

// dispatch decodes one command frame and routes it. Malformed input is
// logged and dropped; an unexpected fault is caught here and converted to
// a directed failure reply so one bad command cannot evict the session.
func (h *WSHandler) dispatch(sess *session, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Session %s: panic in command dispatch: %v", sess.client.ID, rec)
			metrics.CommandErrors.WithLabelValues("panic").Inc()
			h.hub.PublishToCaller(sess.client, EventError, ErrorPayload{
				Code:    CodeError,
				Message: "internal error",
			})
		}
	}()

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("Session %s: malformed command frame: %v", sess.client.ID, err)
		return
	}

	metrics.CommandsProcessed.WithLabelValues(cmd.Command).Inc()

	switch cmd.Command {
	case CmdJoinPresentation:
		h.handleJoin(sess, cmd)
	case CmdUserDisconnect:
		h.handleLeave(sess)
	case CmdSetUserEditPermission:
		h.handleSetEditPermission(sess, cmd)
	case CmdUpdateSlide:
		h.handleUpdateSlide(sess, cmd)
	case CmdGetSlide:
		h.handleGetSlide(sess, cmd)
	case CmdAddSlide:
		h.handleAddSlide(sess, cmd)
	default:
		log.Printf("Session %s: unknown command %q", sess.client.ID, cmd.Command)
	}
}

// parsePresentationID validates the client-supplied id. Zero and negative
// ids are rejected along with non-integers.
func parsePresentationID(raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *WSHandler) handleJoin(sess *session, cmd Command) {
	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok || cmd.Username == "" {
		log.Printf("Session %s: invalid join parameters", sess.client.ID)
		return
	}

	exists, err := h.users.PresentationExists(presID)
	if err != nil {
		h.replyError(sess, err)
		return
	}
	if !exists {
		h.hub.PublishToCaller(sess.client, EventError, ErrorPayload{
			Code:    CodeNotFound,
			Message: "presentation was not created",
		})
		return
	}

	if err := h.permissions.EnsureMembership(presID, cmd.Username); err != nil {
		h.replyError(sess, err)
		return
	}

	// A connection holds at most one active presence entry; joining a
	// different presentation first leaves the current one
	if sess.joined && (sess.presID != presID || sess.username != cmd.Username) {
		h.handleLeave(sess)
	}

	addedNew := h.presence.Join(presID, cmd.Username, sess.client.ID)
	sess.presID = presID
	sess.username = cmd.Username
	sess.joined = true
	if addedNew {
		h.hub.Subscribe(sess.client, services.EditChannelName(presID))
		sess.subscribed = true
	}

	h.broadcastPermissions(presID)
	h.broadcastSlideCount(presID)

	// Push the first slide to the caller so the new session can render
	slide, err := h.slides.GetSlide(presID, 0)
	if err != nil {
		h.replyError(sess, err)
		return
	}
	h.hub.PublishToCaller(sess.client, EventSlideReceived, SlidePayload{
		SlideID: slide.Position,
		Content: slide.Content,
		Version: slide.Version,
	})
}

// handleLeave serves both the explicit UserDisconnect command and the
// transport-teardown path; both converge here
func (h *WSHandler) handleLeave(sess *session) {
	if !sess.joined {
		return
	}

	if sess.subscribed {
		h.presence.Leave(sess.presID, sess.username)
		h.hub.Unsubscribe(sess.client, services.EditChannelName(sess.presID))
	}
	presID := sess.presID
	sess.joined = false
	sess.subscribed = false

	h.broadcastPermissions(presID)
}

func (h *WSHandler) teardown(sess *session) {
	h.handleLeave(sess)
	h.hub.Unregister(sess.client)
}

func (h *WSHandler) handleSetEditPermission(sess *session, cmd Command) {
	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok || cmd.Username == "" || !sess.joined {
		log.Printf("Session %s: invalid permission change parameters", sess.client.ID)
		return
	}

	// The acting user is the session's joined identity, never a
	// client-supplied claim; ownership is re-verified inside the service
	changed, err := h.permissions.SetEditPermission(presID, sess.username, cmd.Username, cmd.CanEdit)
	if err != nil {
		h.replyError(sess, err)
		return
	}
	if !changed {
		// Unauthorized or unknown target: no state change, no broadcast.
		// The absence of a snapshot broadcast is the failure signal.
		metrics.CommandErrors.WithLabelValues("permission_denied").Inc()
		return
	}

	h.broadcastPermissions(presID)
}

func (h *WSHandler) handleUpdateSlide(sess *session, cmd Command) {
	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok || cmd.SlideID < 0 || !sess.joined {
		log.Printf("Session %s: invalid slide update parameters", sess.client.ID)
		return
	}

	result, err := h.slides.UpdateSlide(presID, cmd.SlideID, cmd.Content, cmd.Version, sess.username)
	if err != nil {
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			// Stale observed version: hand the authoritative state back to
			// the caller only, never to the group
			metrics.CommandErrors.WithLabelValues("conflict").Inc()
			h.hub.PublishToCaller(sess.client, EventUpdateRejected, SlidePayload{
				SlideID: conflict.SlideID,
				Content: conflict.Content,
				Version: conflict.Version,
			})
			return
		}
		h.replyError(sess, err)
		return
	}

	if !result.Applied {
		// Redundant save: acknowledge to the caller, skip the broadcast
		h.hub.PublishToCaller(sess.client, EventSlideReceived, SlidePayload{
			SlideID: result.Position,
			Content: result.Content,
			Version: result.Version,
		})
		return
	}

	h.hub.Publish(services.EditChannelName(presID), EventSlideUpdated, SlidePayload{
		SlideID: result.Position,
		Content: result.Content,
		Version: result.Version,
	})
}

func (h *WSHandler) handleGetSlide(sess *session, cmd Command) {
	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok || cmd.SlideID < 0 {
		log.Printf("Session %s: invalid get slide parameters", sess.client.ID)
		return
	}

	slide, err := h.slides.GetSlide(presID, cmd.SlideID)
	if err != nil {
		h.replyError(sess, err)
		return
	}
	h.hub.PublishToCaller(sess.client, EventSlideReceived, SlidePayload{
		SlideID: slide.Position,
		Content: slide.Content,
		Version: slide.Version,
	})
}

func (h *WSHandler) handleAddSlide(sess *session, cmd Command) {
	presID, ok := parsePresentationID(cmd.PresentationID)
	if !ok || !sess.joined {
		log.Printf("Session %s: invalid add slide parameters", sess.client.ID)
		return
	}

	// Appending requires membership but not ownership
	member, err := h.permissions.HasMembership(presID, sess.username)
	if err != nil {
		h.replyError(sess, err)
		return
	}
	if !member {
		h.hub.PublishToCaller(sess.client, EventError, ErrorPayload{
			Code:    CodeUnauthorized,
			Message: "not a member of this presentation",
		})
		return
	}

	if _, err := h.slides.AddSlide(presID); err != nil {
		h.replyError(sess, err)
		return
	}

	h.broadcastSlideCount(presID)
}

func (h *WSHandler) broadcastPermissions(presID int) {
	permissions, err := h.permissions.GetPermissions(presID)
	if err != nil {
		log.Printf("Failed to compute permission snapshot for presentation %d: %v", presID, err)
		return
	}
	h.hub.Publish(services.EditChannelName(presID), EventUserListUpdated, snapshotPayload{Users: permissions})
}

func (h *WSHandler) broadcastSlideCount(presID int) {
	count, err := h.slides.CountSlides(presID)
	if err != nil {
		log.Printf("Failed to count slides for presentation %d: %v", presID, err)
		return
	}
	h.hub.Publish(services.EditChannelName(presID), EventSlidesCountReceived, CountPayload{Count: count})
}

// replyError maps a service error onto the wire taxonomy and sends it to
// the caller only
func (h *WSHandler) replyError(sess *session, err error) {
	payload := ErrorPayload{Code: CodeError, Message: "internal error"}
	switch {
	case errors.Is(err, services.ErrNotFound):
		payload = ErrorPayload{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, services.ErrUnauthorized):
		payload = ErrorPayload{Code: CodeUnauthorized, Message: err.Error()}
	default:
		log.Printf("Session %s: command failed: %v", sess.client.ID, err)
	}
	metrics.CommandErrors.WithLabelValues(payload.Code).Inc()
	h.hub.PublishToCaller(sess.client, EventError, payload)
}
