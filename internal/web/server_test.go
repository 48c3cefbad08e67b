package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/gpio-shutdown/internal/logic"
	"github.com/sweeney/gpio-shutdown/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		ConfigPath:      "/etc/gpio-shutdown.conf",
		Chip:            "gpiochip0",
		Line:            3,
		Gesture:         logic.GestureHoldRelease,
		HoldTime:        3 * time.Second,
		ShutdownCommand: "shutdown -h now",
		PollMs:          1000,
		Broker:          "tcp://192.168.1.200:1883",
		HTTPAddr:        ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordEdge(logic.EdgePressed, time.Now())
	tr.RecordEdge(logic.EdgeHeld, time.Now())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Button != "PRESSED" {
		t.Errorf("Button: got %q, want PRESSED", sj.Status.Button)
	}
	if sj.Status.LastEdge != "HELD" {
		t.Errorf("LastEdge: got %q, want HELD", sj.Status.LastEdge)
	}
	if sj.Status.Counts.Pressed != 1 || sj.Status.Counts.Held != 1 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Gesture != "holdrelease" {
		t.Errorf("Config.Gesture: got %q", sj.Status.Config.Gesture)
	}
	if sj.Status.Config.HoldSeconds != 3 {
		t.Errorf("Config.HoldSeconds: got %v, want 3", sj.Status.Config.HoldSeconds)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordEdge(logic.EdgePressed, time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"PRESSED", "holdrelease (hold 3s)", "gpiochip0 line 3", "2026-01-01T00:05:00Z", "armed"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLShowsShutdownRequested(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetShutdownRequested()

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "requested") {
		t.Error("page should show the shutdown request")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestRejectsWrites(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.json"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, resp.StatusCode)
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getStatus(t, ts.URL)
	if sj1.Status.ShutdownRequested {
		t.Error("expected shutdown_requested=false initially")
	}
	if sj1.Status.Button != "RELEASED" {
		t.Errorf("Button: got %q, want RELEASED", sj1.Status.Button)
	}

	tr.RecordEdge(logic.EdgePressed, time.Now())
	tr.RecordEdge(logic.EdgeReleased, time.Now())
	tr.SetShutdownRequested()

	sj2 := getStatus(t, ts.URL)
	if !sj2.Status.ShutdownRequested {
		t.Error("expected shutdown_requested=true after update")
	}
	if sj2.Status.Counts.Released != 1 {
		t.Errorf("Counts.Released: got %d, want 1", sj2.Status.Counts.Released)
	}
}

func TestServeAndShutdown(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New("127.0.0.1:0", tr)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("Serve returned %v, want ErrServerClosed", err)
	}
}
