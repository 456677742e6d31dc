package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qt2/oxwalk/internal/observability"
	"github.com/qt2/oxwalk/internal/scenario"
	"github.com/qt2/oxwalk/internal/telemetry"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
	// Stats reports the driver's population counters for /diagnostics.
	Stats func() scenario.Stats
	// Telemetry returns additional diagnostics such as router and metric
	// snapshots.
	Telemetry func() any
}

func NewHTTPHandler(hub *Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Status      string         `json:"status"`
			ServerTime  int64          `json:"serverTime"`
			Simulation  scenario.Stats `json:"simulation"`
			Subscribers []string       `json:"subscribers"`
			Telemetry   any            `json:"telemetry,omitempty"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Subscribers: hub.Subscribers(),
		}
		if cfg.Stats != nil {
			payload.Simulation = cfg.Stats()
		}
		if cfg.Telemetry != nil {
			payload.Telemetry = cfg.Telemetry()
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed: %v", err)
			return
		}
		serveViewer(hub, conn, logger)
	})

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

// serveViewer sends the cached snapshot, then answers heartbeats until the
// connection fails.
func serveViewer(hub *Hub, conn *websocket.Conn, logger telemetry.Logger) {
	sub, latest := hub.Subscribe(conn)
	defer hub.Disconnect(sub.ID)

	if latest != nil {
		if err := sub.WriteMessage(websocket.TextMessage, latest); err != nil {
			return
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Printf("discarding malformed message from %s: %v", sub.ID, err)
			continue
		}

		switch msg.Type {
		case TypeHeartbeat:
			ack := heartbeatMessage{
				Type:       TypeHeartbeat,
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
			}
			data, err := json.Marshal(ack)
			if err != nil {
				logger.Printf("failed to marshal heartbeat ack for %s: %v", sub.ID, err)
				continue
			}
			if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			logger.Printf("unknown message type %q from %s", msg.Type, sub.ID)
		}
	}
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
