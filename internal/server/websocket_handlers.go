package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/matrixscan/internal/overlay"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin; CORS is configured per deployment
		return true
	},
}

// Message types pushed to the client.
const (
	msgSessionStart = "session_start"
	msgOverlay      = "overlay"
	msgBarcode      = "barcode"
	msgSessionEnd   = "session_end"
	msgError        = "error"
)

// Control message types sent by the client.
const (
	ctlFrameMeta = "frame_meta"
	ctlDisplay   = "display"
	ctlEnd       = "end"
)

// WebSocketMessage is every server-to-client message.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Session   string      `json:"session,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
}

// ControlMessage is a text message from the client.
type ControlMessage struct {
	Type     string `json:"type"`
	Rotation *int   `json:"rotation,omitempty"`
	Mirrored *bool  `json:"mirrored,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// SessionEndPayload carries the hand-off list.
type SessionEndPayload struct {
	Barcodes []results.Barcode `json:"barcodes"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// frameMeta applies to every following frame until changed.
type frameMeta struct {
	rotation int
	mirrored bool
}

// scanWebSocketHandler runs one scanning session per connection. Binary
// messages are encoded frames; text messages are ControlMessages.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	client := getClientIP(r)

	analyzer, err := scanner.NewAnalyzer(s.decoder, s.preprocess, s.candidates, s.log)
	if err != nil {
		s.sendWebSocketError(conn, "", "internal_error", err.Error())
		return
	}

	// From Start until Close returns, every write happens on the session loop.
	var sess *scanner.Session
	sess = scanner.NewSession(analyzer, scanner.Options{
		LabelMode: s.labelMode,
		Logger:    s.log,
		Callbacks: scanner.Callbacks{
			OnOverlay: func(f overlay.Frame) {
				s.sendWebSocketMessage(conn, WebSocketMessage{Type: msgOverlay, Session: sess.ID(), Payload: f})
			},
			OnBarcode: func(b results.Barcode) {
				s.sendWebSocketMessage(conn, WebSocketMessage{Type: msgBarcode, Session: sess.ID(), Payload: b})
			},
		},
	})
	s.sessions.add(sess)
	sess.Start(s.ctx)
	sess.Post(func() {
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: msgSessionStart, Session: sess.ID()})
	})
	attrs := []any{"remote_addr", r.RemoteAddr, "session", sess.ID()}
	if s.rateLimiter != nil {
		u := s.rateLimiter.Usage(client)
		attrs = append(attrs, "sessions_today", u.sessionsToday, "frame_bytes_today", u.bytesToday)
	}
	slog.Info("WebSocket session established", attrs...)

	s.handleWebSocketConnection(conn, sess, client)

	final := sess.Close()
	s.sessions.end(sess.ID(), final)
	if final == nil {
		final = []results.Barcode{}
	}
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:    msgSessionEnd,
		Session: sess.ID(),
		Payload: SessionEndPayload{Barcodes: final},
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		time.Now().Add(time.Second))
}

// handleWebSocketConnection reads client messages until the client ends
// the session, the connection drops or the session is closed.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, sess *scanner.Session, client string) {
	_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.idleTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	meta := frameMeta{}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "session", sess.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			if err := s.handleFrame(sess, client, meta, data); err != nil {
				if errors.Is(err, scanner.ErrSessionClosed) {
					return
				}
				s.postError(conn, sess, "invalid_frame", err.Error())
			}
		case websocket.TextMessage:
			var msg ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.postError(conn, sess, "invalid_request", fmt.Sprintf("Failed to parse message: %v", err))
				continue
			}
			if msg.Type == ctlEnd {
				return
			}
			if err := s.handleControl(sess, &meta, msg); err != nil {
				s.postError(conn, sess, "invalid_request", err.Error())
			}
		}
	}
}

// handleFrame decodes one encoded frame and submits it to the session.
func (s *Server) handleFrame(sess *scanner.Session, client string, meta frameMeta, data []byte) error {
	frameSizeBytes.Observe(float64(len(data)))
	if int64(len(data)) > s.maxFrameBytes {
		return fmt.Errorf("frame of %d bytes exceeds the %d byte limit", len(data), s.maxFrameBytes)
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.AddFrameBytes(client, int64(len(data))); err != nil {
			recordRateLimitHit(err)
			return err
		}
	}
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return err
	}
	_, err = sess.Submit(scanner.Frame{
		Image:    img,
		Rotation: meta.rotation,
		Mirrored: meta.mirrored,
		Captured: time.Now(),
		Source:   client,
	})
	return err
}

func (s *Server) handleControl(sess *scanner.Session, meta *frameMeta, msg ControlMessage) error {
	switch msg.Type {
	case ctlFrameMeta:
		if msg.Rotation != nil {
			if *msg.Rotation%90 != 0 {
				return fmt.Errorf("rotation %d is not a multiple of 90", *msg.Rotation)
			}
			meta.rotation = overlay.NormalizeRotation(*msg.Rotation)
		}
		if msg.Mirrored != nil {
			meta.mirrored = *msg.Mirrored
		}
	case ctlDisplay:
		if msg.Width <= 0 || msg.Height <= 0 {
			return fmt.Errorf("display size %dx%d must be positive", msg.Width, msg.Height)
		}
		sess.Mapper().SetDisplay(msg.Width, msg.Height, meta.mirrored)
	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
	return nil
}

// postError reports a problem to the client through the session loop so it
// never races an overlay write.
func (s *Server) postError(conn WebSocketConnWriter, sess *scanner.Session, errorType, message string) {
	sess.Post(func() {
		s.sendWebSocketError(conn, sess.ID(), errorType, message)
	})
}

// sendWebSocketMessage marshals and writes msg.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "type", msg.Type, "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, session, errorType, message string) {
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      msgError,
		Session:   session,
		Error:     message,
		ErrorType: errorType,
	})
}
