package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newServerSideConn upgrades a real connection and hands the server-side
// *websocket.Conn to fn, so Client can be exercised against the concrete
// gorilla type rather than an interface fake.
func newServerSideConn(t *testing.T, fn func(conn *websocket.Conn)) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			close(done)
			return
		}
		fn(conn)
		close(done)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })
	<-done
	return srv, clientConn
}

func TestClient_SendFillsBufferThenErrors(t *testing.T) {
	var serverClient *Client
	captured := make(chan struct{})
	_, clientConn := newServerSideConn(t, func(conn *websocket.Conn) {
		serverClient = NewClient(conn, time.Second)
		close(captured)
	})
	defer clientConn.Close()
	<-captured

	for i := 0; i < sendBuffer; i++ {
		if err := serverClient.Send([]byte("msg")); err != nil {
			t.Fatalf("unexpected error filling buffer at index %d: %v", i, err)
		}
	}
	if err := serverClient.Send([]byte("overflow")); err != errSendBufferFull {
		t.Fatalf("expected errSendBufferFull once full, got %v", err)
	}
}

func TestClient_WritePumpCoalescesQueuedMessages(t *testing.T) {
	var serverClient *Client
	captured := make(chan struct{})
	_, clientConn := newServerSideConn(t, func(conn *websocket.Conn) {
		serverClient = NewClient(conn, time.Second)
		serverClient.Send([]byte("one"))
		serverClient.Send([]byte("two"))
		go serverClient.WritePump()
		serverClient.Close()
		close(captured)
	})
	defer clientConn.Close()
	<-captured

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != "one\ntwo" {
		t.Fatalf("expected coalesced frame %q, got %q", "one\ntwo", data)
	}
}
