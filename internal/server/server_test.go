package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/config"
	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	srv, err := New(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until pred matches or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(serverMessage) bool) serverMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if pred(msg) {
			return msg
		}
	}
	t.Fatal("expected message never arrived")
	return serverMessage{}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "Tester")

	welcome := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "welcome" })
	if welcome.Session == "" {
		t.Fatal("welcome carries no session id")
	}
	if _, ok := srv.lookup(welcome.Session); !ok {
		t.Fatal("session not registered")
	}

	// Frames start flowing with the starter scene's draw list.
	frame := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "frame" })
	if len(frame.Frame.Draws) != len(scene.StarterScene()) {
		t.Errorf("draws = %d, want %d", len(frame.Frame.Draws), len(scene.StarterScene()))
	}

	// A chat line is echoed back with the player's name.
	if err := conn.WriteJSON(clientMessage{Type: "chat", Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	echo := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "chat" })
	if echo.Chat.Speaker != "Tester" || echo.Chat.Text != "hello" {
		t.Errorf("echo = %+v", echo.Chat)
	}
}

func TestBanClosesConnection(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "")

	welcome := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "welcome" })
	if err := conn.WriteJSON(clientMessage{Type: "chat", Text: ":ban"}); err != nil {
		t.Fatal(err)
	}

	sawClose := false
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			sawClose = true
			break
		}
	}
	if !sawClose {
		t.Fatal("connection survived :ban")
	}

	// The registry drops the session once its loop stops.
	drained := false
	for i := 0; i < 50; i++ {
		if _, ok := srv.lookup(welcome.Session); !ok {
			drained = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !drained {
		t.Error("banned session still registered")
	}
}

func TestSessionLimit(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.DefaultConfig()
	cfg.MaxSessions = 1
	cfg.DataDir = t.TempDir()

	srv, err := New(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	first := dial(t, ts, "a")
	readUntil(t, first, func(m serverMessage) bool { return m.Type == "welcome" })

	second := dial(t, ts, "b")
	msg := readUntil(t, second, func(m serverMessage) bool { return m.Type == "error" })
	if msg.Error != "server full" {
		t.Errorf("refusal = %q", msg.Error)
	}
}

func TestExportImport(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, "")
	welcome := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "welcome" })

	resp, err := http.Get(ts.URL + "/project/export?session=" + welcome.Session + "&name=Island")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := scene.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.ProjectName != "Island" || len(doc.Instances) != len(scene.StarterScene()) {
		t.Fatalf("export = %q with %d instances", doc.ProjectName, len(doc.Instances))
	}

	// Import a one-entity project; it replaces the scene wholesale.
	doc.Instances = doc.Instances[:1]
	var buf bytes.Buffer
	if err := scene.Encode(&buf, doc); err != nil {
		t.Fatal(err)
	}
	resp, err = http.Post(ts.URL+"/project/import?session="+welcome.Session, "application/json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("import status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/project/export?session=" + welcome.Session)
	if err != nil {
		t.Fatal(err)
	}
	doc, err = scene.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Instances) != 1 {
		t.Errorf("instances after import = %d, want 1", len(doc.Instances))
	}

	// Malformed upload: rejected, scene untouched.
	resp, err = http.Post(ts.URL+"/project/import?session="+welcome.Session,
		"application/json", strings.NewReader(`{"projectName":"broken"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed import status = %d", resp.StatusCode)
	}

	if resp, err = http.Get(ts.URL + "/project/export?session=nope"); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session export status = %d", resp.StatusCode)
	}
}

func TestSaveLoadList(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, "")
	welcome := readUntil(t, conn, func(m serverMessage) bool { return m.Type == "welcome" })

	resp, err := http.Post(ts.URL+"/project/save?session="+welcome.Session+"&name=Island+One", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/project/list")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(names) != 1 || names[0] != "island-one" {
		t.Fatalf("projects = %v", names)
	}

	resp, err = http.Post(ts.URL+"/project/load?session="+welcome.Session+"&name=island-one", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("load status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/project/load?session="+welcome.Session+"&name=ghost", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing project load status = %d", resp.StatusCode)
	}
}
