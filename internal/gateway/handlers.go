package gateway

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkora-dex/backend/internal/registry"
	"github.com/linkora-dex/backend/internal/timeframe"
)

// allowedOrigins holds the configured allowed origins, parsed from
// ALLOWED_ORIGINS. Default "*" allows all origins (development).
var allowedOrigins = parseAllowedOrigins(os.Getenv("ALLOWED_ORIGINS"))

func parseAllowedOrigins(s string) []string {
	if s == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func checkOrigin(r *http.Request) bool {
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser requests
	}
	for _, o := range allowedOrigins {
		if o == origin {
			return true
		}
	}
	log.Printf("[gateway] rejected WS origin: %s", origin)
	return false
}

var upgrader = websocket.Upgrader{CheckOrigin: checkOrigin, EnableCompression: true}

// Handler wires a Hub into the /ws endpoint described in SPEC_FULL.md §6.
type Handler struct {
	Hub         *Hub
	PongTimeout time.Duration
}

// NewHandler builds a Handler. pongTimeout is WEBSOCKET_PONG_TIMEOUT.
func NewHandler(hub *Hub, pongTimeout time.Duration) *Handler {
	return &Handler{Hub: hub, PongTimeout: pongTimeout}
}

// RegisterRoutes mounts /ws on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.ServeWS)
}

// ServeWS upgrades the request and, for a valid
// ?symbol=&timeframe=&type=candles|orderbook, registers a Subscription and
// blocks for the connection's lifetime. symbol="all" is legal only with
// timeframe="1"; an invalid timeframe or kind closes the (already upgraded)
// socket with code 1008, matching SPEC_FULL.md §6.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	kindStr := r.URL.Query().Get("type")

	var kind registry.Kind
	switch kindStr {
	case string(registry.KindCandles):
		kind = registry.KindCandles
	case string(registry.KindOrderbook):
		kind = registry.KindOrderbook
	default:
		closeInvalid(conn, "invalid type")
		return
	}

	tfMinutes, tfErr := strconv.Atoi(r.URL.Query().Get("timeframe"))
	if tfErr != nil || !timeframe.Valid(tfMinutes) {
		closeInvalid(conn, "invalid timeframe")
		return
	}

	if symbol == "" || (symbol == "all" && tfMinutes != 1) {
		closeInvalid(conn, `symbol="all" is only legal with timeframe="1"`)
		return
	}

	client := NewClient(conn, h.PongTimeout)
	sub := &registry.Subscription{Symbol: symbol, TimeframeMin: tfMinutes, Kind: kind, Conn: client}
	h.Hub.Registry.Add(sub)
	sub.MarkPong(time.Now().UnixMilli())

	go client.WritePump()

	if sinceStr := r.URL.Query().Get("since_seq"); sinceStr != "" {
		if since, err := strconv.ParseInt(sinceStr, 10, 64); err == nil {
			for _, msg := range h.Hub.Backfill(sub.Key(), since) {
				client.Send(msg)
			}
		}
	}

	client.ReadPump(func() { sub.MarkPong(time.Now().UnixMilli()) })

	h.Hub.Registry.Remove(sub)
	client.Close()
}

func closeInvalid(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}

// SetCORS sets CORS headers for REST endpoints, shared with the Query API.
func SetCORS(w http.ResponseWriter) {
	origin := "*"
	for _, o := range allowedOrigins {
		if o != "*" {
			origin = strings.Join(allowedOrigins, ", ")
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
