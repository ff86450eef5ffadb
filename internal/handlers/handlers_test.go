package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"collabdeck/internal/db"
	"collabdeck/internal/services"
)

// testServer bundles the full wired application for protocol tests
type testServer struct {
	srv         *httptest.Server
	users       *services.UserService
	permissions *services.PermissionService
	slides      *services.SlideService
	presence    *services.PresenceRegistry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=1")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateTables(conn); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	hub := services.NewHub()
	presence := services.NewPresenceRegistry()
	users := services.NewUserService(conn)
	permissions := services.NewPermissionService(conn, presence, users)
	slides := services.NewSlideService(conn, permissions)

	ws := NewWSHandler(hub, presence, users, permissions, slides)
	present := NewPresentHandler(hub, users)
	presentations := NewPresentationHandler(users, slides)

	srv := httptest.NewServer(SetupRoutes(ws, present, presentations))
	t.Cleanup(srv.Close)

	return &testServer{
		srv:         srv,
		users:       users,
		permissions: permissions,
		slides:      slides,
		presence:    presence,
	}
}

// dialWS opens a websocket connection to one of the hub endpoints
func (ts *testServer) dialWS(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()

	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("send %s: %v", cmd.Command, err)
	}
}

// wireEnvelope mirrors services.Envelope with a raw payload for decoding
type wireEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// waitForEvent reads frames until the named event arrives, skipping
// unrelated ones
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var env wireEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Event == event {
			return env.Payload
		}
	}
}

// expectNoEvent asserts that the named event does not arrive within the
// grace window
func expectNoEvent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return // timed out without seeing the event
		}
		var env wireEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Event == event {
			t.Fatalf("unexpected %s event: %s", event, raw)
		}
	}
}

func decodePayload(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
