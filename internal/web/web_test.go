package web

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"piedial/internal/config"
	"piedial/internal/model"
	"piedial/internal/raster"
)

type staticEvents []model.Event

func (s staticEvents) Snapshot() []model.Event { return s }

func at(h, m int) time.Time { return time.Date(2025, 11, 24, h, m, 0, 0, time.UTC) }

func testEvents() staticEvents {
	return staticEvents{
		model.NewEvent("e3", "Review", at(15, 30), at(16, 30), "", false, model.DefaultColor),
		model.NewEvent("e1", "Lunch", at(12, 0), at(13, 30), "Cafe", false, model.DefaultColor),
		model.NewEvent("e2", "Standup", at(14, 0), at(15, 0), "", false, model.DefaultColor),
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()

	fonts, err := raster.NewFonts()
	if err != nil {
		t.Fatalf("NewFonts: %v", err)
	}
	s := NewServer(cfg, testEvents(), fonts)
	s.SetClock(func() time.Time { return at(14, 30) })
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, nil).Handler(), "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	}).Handler()

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("/health should bypass auth, got %d", rec.Code)
	}
	rec := get(t, h, "/api/events")
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Header().Get("WWW-Authenticate"), "Basic") {
		t.Errorf("unauthenticated = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("u", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("u", "p")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated = %d", rec.Code)
	}
}

func TestBasicAuthDisabledWithEmptyCredentials(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "u"}
	}).Handler()
	if rec := get(t, h, "/api/events"); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	rec := get(t, newTestServer(t, nil).Handler(), "/api/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 3 || resp.Events[0].ID != "e1" || resp.Events[2].ID != "e3" {
		t.Fatalf("events not sorted: %+v", resp.Events)
	}
	if resp.NextEventID != "e3" {
		t.Errorf("next = %q, want e3 (e2 is in progress)", resp.NextEventID)
	}
	if resp.DisplayTimeZone != "UTC" {
		t.Errorf("timezone = %q", resp.DisplayTimeZone)
	}

	lunch := resp.Events[0]
	if lunch.StartAngle != 270 || lunch.EndAngle != 315 || lunch.DurationDegrees != 45 || lunch.Color != "#cd3737" || lunch.Location != "Cafe" {
		t.Errorf("lunch = %+v", lunch)
	}
	if !resp.Events[1].InProgress || resp.Events[0].InProgress {
		t.Error("in-progress flags wrong")
	}
	if resp.Events[2].Countdown != "in 60m" {
		t.Errorf("countdown = %q", resp.Events[2].Countdown)
	}
}

func TestEventsRejectsBadTime(t *testing.T) {
	rec := get(t, newTestServer(t, nil).Handler(), "/api/events?at=yesterday")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid at") {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestFrame(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/frame")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp frameResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report.Wedges != 3 || resp.Report.NextEventID != "e3" || resp.Width != 400 {
		t.Errorf("report = %+v", resp.Report)
	}
	if len(resp.Ops) == 0 || resp.Ops[0].Kind != "rect" {
		t.Errorf("ops should start with the background rect: %+v", resp.Ops)
	}

	rec = get(t, h, "/api/frame?ambient=1&at=2025-11-24T14:30:00Z")
	resp = frameResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ambient || resp.Report.Wedges != 0 {
		t.Errorf("ambient frame = %+v", resp.Report)
	}
	for _, op := range resp.Ops {
		if op.Kind == "arc" || op.Kind == "text" {
			t.Errorf("ambient frame drew %s", op.Kind)
		}
	}

	if rec := get(t, h, "/api/frame?ambient=maybe"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad ambient = %d", rec.Code)
	}
}

func TestDialSVG(t *testing.T) {
	rec := get(t, newTestServer(t, nil).Handler(), "/dial.svg")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-ready="true"`) || !strings.Contains(body, "Go, sans-serif") {
		t.Errorf("svg = %s", body)
	}
}

func TestPreviewPNG(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Dial.LowBitAmbient = true })
	h := s.Handler()

	rec := get(t, h, "/preview.png")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d", rec.Code)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 400, 400) {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if _, ok := img.(*image.Paletted); ok {
		t.Error("interactive preview should be full color")
	}

	again := get(t, h, "/preview.png")
	if !bytes.Equal(again.Body.Bytes(), rec.Body.Bytes()) {
		t.Error("cached preview differs")
	}

	rec = get(t, h, "/preview.png?ambient=true")
	img, err = png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	p, ok := img.(*image.Paletted)
	if !ok || len(p.Palette) != 2 {
		t.Errorf("low-bit ambient preview = %T", img)
	}
}
