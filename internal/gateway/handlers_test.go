package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkora-dex/backend/internal/registry"
)

func dialURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
}

func TestHandler_ServeWS_RejectsInvalidTimeframeWithPolicyViolation(t *testing.T) {
	h := NewHandler(NewHub(registry.New()), 60*time.Second)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, "symbol=BTCUSDT&timeframe=7&type=candles"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
}

func TestHandler_ServeWS_RejectsAllSymbolWithNonOneTimeframe(t *testing.T) {
	h := NewHandler(NewHub(registry.New()), 60*time.Second)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, "symbol=all&timeframe=5&type=candles"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy-violation close, got %v", err)
	}
}

func TestHandler_ServeWS_ValidSubscriptionReceivesBroadcast(t *testing.T) {
	h := NewHandler(NewHub(registry.New()), 60*time.Second)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, "symbol=BTCUSDT&timeframe=1&type=candles"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	key := registry.Key("BTCUSDT", 1, registry.KindCandles)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Hub.Registry.Count() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.Hub.Registry.Count() == 0 {
		t.Fatal("expected the subscription to be registered")
	}

	h.Hub.Broadcast(key, []byte(`{"symbol":"BTCUSDT"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != `{"symbol":"BTCUSDT"}` {
		t.Fatalf("unexpected payload: %s", data)
	}
}
