package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"visit-tracker/internal/auth"
	ws "visit-tracker/internal/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func setup(t *testing.T) (*ws.Hub, *auth.TokenManager, *httptest.Server, func()) {
	t.Helper()
	tokens := auth.NewTokenManager("secret", time.Hour, time.Hour)
	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ws.ServeWs(hub, tokens, c, "admin") })
	srv := httptest.NewServer(r)

	return hub, tokens, srv, func() {
		cancel()
		<-stopped
		srv.Close()
	}
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func TestBroadcastReachesStaff(t *testing.T) {
	hub, tokens, srv, cleanup := setup(t)
	defer cleanup()

	token, _ := tokens.IssueAccess(auth.Principal{UserID: "u", Role: "admin"})
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Publish(context.Background(), []byte(`{"event":"request.created"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"event":"request.created"}` {
		t.Fatalf("unexpected message %s", msg)
	}
}

func TestServeWsRejects(t *testing.T) {
	_, tokens, srv, cleanup := setup(t)
	defer cleanup()

	customer, _ := tokens.IssueAccess(auth.Principal{UserID: "u", Role: "customer"})
	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"bad token", "nope", http.StatusUnauthorized},
		{"customer role", customer, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv, tc.token), nil)
			if err == nil {
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.want {
				t.Fatalf("expected status %d, got %+v", tc.want, resp)
			}
		})
	}
}

func TestPublishAfterStop(t *testing.T) {
	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Fill the buffer so a further publish has to observe the stopped hub.
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = hub.Publish(context.Background(), []byte("x"))
	}
	if err == nil {
		t.Fatal("expected publish to fail once the hub stopped")
	}
}
