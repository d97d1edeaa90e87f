package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/output"
	"github.com/bryanchriswhite/questcap/internal/preview"
)

type fakeStats struct{ stats capture.Stats }

func (f fakeStats) Stats() capture.Stats { return f.stats }

type fakeDevice struct {
	info *device.Info
	err  error
}

func (f fakeDevice) QueryInfo(ctx context.Context) (*device.Info, error) {
	return f.info, f.err
}

func newTestServer(t *testing.T, dev DeviceSource) (*Server, *capture.Control, *httptest.Server) {
	t.Helper()
	ctrl := capture.NewControl(10, 0.5)
	stream := output.NewMJPEGOutput(output.Config{})
	if err := stream.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stream.Stop() })

	s := NewServer(Options{
		Control: ctrl,
		Stats:   fakeStats{capture.Stats{Published: 42, MeasuredFPS: 9.5}},
		Device:  dev,
		Stream:  stream,
		Target:  "192.168.1.20:5555",
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ctrl, ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Status(t *testing.T) {
	s, _, ts := newTestServer(t, nil)

	s.PublishStatus(preview.Status{Text: "Frame 3 - 10:00:00 - 1832x960", Ready: true, Active: true, Seq: 3})

	resp := do(t, http.MethodGet, ts.URL+"/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var got StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Preview.Seq != 3 || got.Stats.Published != 42 || got.Target != "192.168.1.20:5555" {
		t.Errorf("status = %+v", got)
	}
}

func TestServer_Control(t *testing.T) {
	_, ctrl, ts := newTestServer(t, nil)

	resp := do(t, http.MethodPut, ts.URL+"/api/control", `{"fps": 15}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var got ControlResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.FPS != 15 || got.Scale != 0.5 || !got.Active {
		t.Errorf("response = %+v", got)
	}
	if ctrl.FPS() != 15 || ctrl.Scale() != 0.5 {
		t.Errorf("control = %v, %v", ctrl.FPS(), ctrl.Scale())
	}

	for _, body := range []string{
		`{"fps": 0}`, `{"scale": -1}`, `not json`,
		`{"scale": 1e9}`, `{"fps": 100000}`, `{"scale": 2.5}`,
	} {
		if resp := do(t, http.MethodPut, ts.URL+"/api/control", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status code = %d, want 400", body, resp.StatusCode)
		}
	}
	if ctrl.FPS() != 15 || ctrl.Scale() != 0.5 {
		t.Errorf("rejected request changed the settings to %v, %v", ctrl.FPS(), ctrl.Scale())
	}

	resp = do(t, http.MethodPut, ts.URL+"/api/control",
		fmt.Sprintf(`{"fps": %v, "scale": %v}`, capture.MaxFPS, capture.MaxScale))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings at the upper bounds: status code = %d", resp.StatusCode)
	}
}

func TestServer_Stop(t *testing.T) {
	_, ctrl, ts := newTestServer(t, nil)

	if resp := do(t, http.MethodGet, ts.URL+"/api/stop", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/stop = %d, want 405", resp.StatusCode)
	}
	if !ctrl.Active() {
		t.Fatal("GET must not stop capture")
	}

	if resp := do(t, http.MethodPost, ts.URL+"/api/stop", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	if ctrl.Active() {
		t.Error("capture still active after stop")
	}
}

func TestServer_Device(t *testing.T) {
	_, _, ts := newTestServer(t, fakeDevice{info: &device.Info{Model: "Quest 3", OSVersion: "12"}})
	resp := do(t, http.MethodGet, ts.URL+"/api/device", "")
	var info device.Info
	json.NewDecoder(resp.Body).Decode(&info)
	if resp.StatusCode != http.StatusOK || info.Model != "Quest 3" {
		t.Errorf("device = %d %+v", resp.StatusCode, info)
	}

	_, _, ts = newTestServer(t, fakeDevice{err: errors.New("offline")})
	if resp := do(t, http.MethodGet, ts.URL+"/api/device", ""); resp.StatusCode != http.StatusBadGateway {
		t.Errorf("failing device = %d, want 502", resp.StatusCode)
	}

	_, _, ts = newTestServer(t, nil)
	if resp := do(t, http.MethodGet, ts.URL+"/api/device", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no device = %d, want 503", resp.StatusCode)
	}
}

func TestServer_HealthAndIndex(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp := do(t, http.MethodGet, ts.URL+"/api/health", "")
	var health map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&health)
	if health["status"] != "healthy" || health["capturing"] != true {
		t.Errorf("health = %v", health)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	resp = do(t, http.MethodGet, ts.URL+"/", "")
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("index Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestServer_StatusWebSocket(t *testing.T) {
	s, _, ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first StatusResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Preview.Text != preview.InitializingText {
		t.Errorf("initial status = %q", first.Preview.Text)
	}

	s.PublishStatus(preview.Status{Text: "Frame 1 - 10:00:00 - 8x8", Seq: 1, Ready: true, Active: true})

	var next StatusResponse
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.Preview.Seq != 1 {
		t.Errorf("update = %+v", next.Preview)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after shutdown, got %v", err)
	}
}
