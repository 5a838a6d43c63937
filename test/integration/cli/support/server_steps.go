package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/config"
	"github.com/MeKo-Tech/matrixscan/internal/overlay"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/server"
	"github.com/MeKo-Tech/matrixscan/internal/testutil"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	*httptest.Server
	Scan *server.Server
}

// Close stops the HTTP server and ends every live session.
func (w *HTTPTestServerWrapper) Close() {
	_ = w.Scan.Close()
	w.Server.Close()
}

// WSMessage is a server message as seen by the client.
type WSMessage struct {
	Type      string          `json:"type"`
	Session   string          `json:"session"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	ErrorType string          `json:"error_type"`
}

// RegisterServerSteps registers the live scanning steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running scan server$`, testCtx.aRunningScanServer)
	sc.Step(`^a scanning client with a (\d+)x(\d+) display$`, testCtx.aScanningClient)
	sc.Step(`^the client sends a frame with a ([A-Z_0-9]+) barcode "([^"]*)"$`, testCtx.theClientSendsBarcodeFrame)
	sc.Step(`^the client sends a blank frame$`, testCtx.theClientSendsBlankFrame)
	sc.Step(`^the client sends the bytes "([^"]*)" as a frame$`, testCtx.theClientSendsBytes)
	sc.Step(`^the client ends the session$`, testCtx.theClientEndsTheSession)
	sc.Step(`^the client should receive a barcode "([^"]*)" with value "([^"]*)"$`, testCtx.shouldReceiveBarcode)
	sc.Step(`^the client should receive an overlay with (\d+) shapes?$`, testCtx.shouldReceiveOverlay)
	sc.Step(`^the client should receive an? "([^"]*)" error$`, testCtx.shouldReceiveError)
	sc.Step(`^the session should end with the list:$`, testCtx.theSessionShouldEndWith)
	sc.Step(`^the session's barcodes should be available at the API$`, testCtx.theSessionIsAvailable)
}

func (testCtx *TestContext) aRunningScanServer() error {
	cfg := config.DefaultConfig()
	pre, err := cfg.PreprocessOptions()
	if err != nil {
		return err
	}
	dec, err := barcode.NewDecoder(barcode.Options{TryHarder: true})
	if err != nil {
		return err
	}
	srv, err := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxFrameMB:  1,
		IdleTimeout: 10 * time.Second,
		Decoder:     dec,
		Preprocess:  pre,
		Candidates:  cfg.CandidateOptions(),
		LabelMode:   results.LabelCompat,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return err
	}
	testCtx.Server = srv
	testCtx.HTTPServer = &HTTPTestServerWrapper{Server: httptest.NewServer(srv.Router()), Scan: srv}
	return nil
}

func (testCtx *TestContext) aScanningClient(width, height int) error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	_ = resp.Body.Close()
	testCtx.Conn = conn

	start, err := testCtx.next()
	if err != nil {
		return err
	}
	if start.Type != "session_start" {
		return fmt.Errorf("first message is %q, want session_start", start.Type)
	}
	testCtx.SessionID = start.Session
	return testCtx.sendJSON(map[string]any{"type": "display", "width": width, "height": height})
}

func (testCtx *TestContext) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return testCtx.Conn.WriteMessage(websocket.TextMessage, data)
}

func (testCtx *TestContext) sendFrame(data []byte) error {
	if testCtx.Conn == nil {
		return errors.New("no client connected")
	}
	return testCtx.Conn.WriteMessage(websocket.BinaryMessage, data)
}

func (testCtx *TestContext) theClientSendsBarcodeFrame(symbology, payload string) error {
	sym, err := barcode.ParseSymbology(symbology)
	if err != nil {
		return err
	}
	img, err := testutil.GenerateBarcodeFrame(testutil.DefaultSymbolConfig(sym, payload))
	if err != nil {
		return err
	}
	data, err := testutil.EncodePNG(img)
	if err != nil {
		return err
	}
	return testCtx.sendFrame(data)
}

func (testCtx *TestContext) theClientSendsBlankFrame() error {
	data, err := testutil.EncodePNG(testutil.BlankFrame(testutil.SmallFrame))
	if err != nil {
		return err
	}
	return testCtx.sendFrame(data)
}

func (testCtx *TestContext) theClientSendsBytes(s string) error {
	return testCtx.sendFrame([]byte(s))
}

func (testCtx *TestContext) theClientEndsTheSession() error {
	return testCtx.sendJSON(map[string]string{"type": "end"})
}

// next reads one message from the server.
func (testCtx *TestContext) next() (WSMessage, error) {
	var msg WSMessage
	if err := testCtx.Conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return msg, err
	}
	_, data, err := testCtx.Conn.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("read message: %w", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	testCtx.Received = append(testCtx.Received, msg)
	return msg, nil
}

// expect reads the next message and checks its type.
func (testCtx *TestContext) expect(typ string) (WSMessage, error) {
	msg, err := testCtx.next()
	if err != nil {
		return msg, err
	}
	if msg.Type != typ {
		return msg, fmt.Errorf("received %q message (%s), want %q", msg.Type, msg.Payload, typ)
	}
	return msg, nil
}

func (testCtx *TestContext) shouldReceiveBarcode(typ, value string) error {
	msg, err := testCtx.expect("barcode")
	if err != nil {
		return err
	}
	var b results.Barcode
	if err := json.Unmarshal(msg.Payload, &b); err != nil {
		return err
	}
	if want := (results.Barcode{Type: typ, Value: value}); b != want {
		return fmt.Errorf("barcode is %+v, want %+v", b, want)
	}
	return nil
}

func (testCtx *TestContext) shouldReceiveOverlay(n int) error {
	msg, err := testCtx.expect("overlay")
	if err != nil {
		return err
	}
	var f overlay.Frame
	if err := json.Unmarshal(msg.Payload, &f); err != nil {
		return err
	}
	if len(f.Shapes) != n {
		return fmt.Errorf("overlay has %d shapes, want %d", len(f.Shapes), n)
	}
	return nil
}

func (testCtx *TestContext) shouldReceiveError(errorType string) error {
	msg, err := testCtx.expect("error")
	if err != nil {
		return err
	}
	if msg.ErrorType != errorType {
		return fmt.Errorf("error type is %q (%s), want %q", msg.ErrorType, msg.Error, errorType)
	}
	return nil
}

func (testCtx *TestContext) theSessionShouldEndWith(table *godog.Table) error {
	want, err := tableBarcodes(table)
	if err != nil {
		return err
	}
	msg, err := testCtx.expect("session_end")
	if err != nil {
		return err
	}
	var payload server.SessionEndPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}
	return compareLists("final list", payload.Barcodes, want)
}

func (testCtx *TestContext) theSessionIsAvailable() error {
	resp, err := http.Get(testCtx.HTTPServer.URL + "/api/sessions/" + testCtx.SessionID + "/barcodes")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var s server.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return err
	}
	if s.Active {
		return errors.New("session is still active")
	}
	var last []results.Barcode
	for i := len(testCtx.Received) - 1; i >= 0; i-- {
		if m := testCtx.Received[i]; m.Type == "session_end" {
			var p server.SessionEndPayload
			if err := json.Unmarshal(m.Payload, &p); err != nil {
				return err
			}
			last = p.Barcodes
			break
		}
	}
	return compareLists("API list", s.Barcodes, last)
}
