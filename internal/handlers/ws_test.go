package handlers_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aistudio-dev/aistudio/internal/handlers"
	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestBroadcastGenerationReachesOnlyOwner(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	server := httptest.NewServer(r)
	defer server.Close()

	tokenA, userA := signupUser(t, r, "a@b.com", "secret1")
	tokenB, _ := signupUser(t, r, "b@c.com", "secret1")

	connA := dialWS(t, server, tokenA)
	defer connA.Close()
	connB := dialWS(t, server, tokenB)
	defer connB.Close()

	// The handler registers the connection just after the upgrade, so repeat
	// the broadcast until it lands.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			handlers.BroadcastGeneration(userA, handlers.GenerationResponse{
				ID:     "gen-1",
				Status: "success",
			})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	var event struct {
		Type       string                      `json:"type"`
		Generation handlers.GenerationResponse `json:"generation"`
	}

	if err := connA.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if err := connA.ReadJSON(&event); err != nil {
		t.Fatalf("owner connection never received the broadcast: %v", err)
	}
	if event.Type != "generation" || event.Generation.ID != "gen-1" {
		t.Fatalf("unexpected event %+v", event)
	}

	// The other user's connection must stay silent.
	if err := connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, _, err := connB.ReadMessage()
	if err == nil {
		t.Fatal("broadcast leaked to another user's connection")
	}
	if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
		t.Fatalf("expected a read timeout, got %v", err)
	}
}

func TestWebSocketGoroutinesExitAfterClose(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	server := httptest.NewServer(r)
	defer server.Close()

	token, _ := signupUser(t, r, "a@b.com", "secret1")

	before := runtime.NumGoroutine()

	for i := 0; i < 10; i++ {
		conn := dialWS(t, server, token)
		conn.Close()
	}

	// Give the handler goroutines a moment to observe the close and exit.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runtime.NumGoroutine() > before+2 {
		time.Sleep(20 * time.Millisecond)
	}

	if after := runtime.NumGoroutine(); after > before+2 {
		t.Fatalf("goroutines leaked after closing websocket connections: before=%d after=%d", before, after)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected unauthenticated websocket dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
