package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"piedial/internal/config"
	"piedial/internal/convert"
	"piedial/internal/dial"
	"piedial/internal/draw"
	appLog "piedial/internal/log"
	"piedial/internal/model"
	"piedial/internal/order"
	"piedial/internal/raster"
	"piedial/internal/svg"
)

// lowBitThreshold is the luma above which ambient pixels stay lit.
const lowBitThreshold = 128

// EventSource supplies the current event snapshot.
type EventSource interface {
	Snapshot() []model.Event
}

// Server provides the HTTP API and rendered previews of the dial.
type Server struct {
	cfg    *config.Config
	events EventSource
	fonts  *raster.Fonts
	mux    *http.ServeMux
	now    func() time.Time

	renderer *dial.Renderer

	// In-memory cache for /preview.png. A face only changes once a
	// minute, so repeated polling reuses the last encoding.
	previewMu    sync.Mutex
	previewCache *previewCache
}

// previewCache holds one encoded PNG and the frame it was rendered for.
type previewCache struct {
	key  string
	body []byte
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, events EventSource, fonts *raster.Fonts) *Server {
	s := &Server{
		cfg:      cfg,
		events:   events,
		fonts:    fonts,
		mux:      http.NewServeMux(),
		now:      time.Now,
		renderer: dial.New(cfg.Dial.RendererOptions(), fonts),
	}
	s.registerRoutes()
	return s
}

// SetClock replaces the time source used when a request has no "at".
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="piedial", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/frame", s.handleFrame)
	s.mux.HandleFunc("GET /dial.svg", s.handleSVG)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// frameParams are the query parameters shared by the render endpoints.
//
//   - at:      RFC3339 instant to render (default: now)
//   - ambient: 1/true for the ambient face
type frameParams struct {
	at      time.Time
	ambient bool
}

func (s *Server) parseFrameParams(r *http.Request) (frameParams, error) {
	q := r.URL.Query()
	p := frameParams{at: s.now().In(s.cfg.Location())}

	if v := q.Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, fmt.Errorf("invalid at %q: %w", v, err)
		}
		p.at = t.In(s.cfg.Location())
	}
	if v := q.Get("ambient"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid ambient %q: %w", v, err)
		}
		p.ambient = b
	}
	return p, nil
}

func (s *Server) frame(p frameParams) dial.Frame {
	events := s.events.Snapshot()
	if events == nil {
		events = []model.Event{}
	}
	return s.cfg.Dial.Frame(p.at, p.ambient, events)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Now             time.Time  `json:"now"`
	DisplayTimeZone string     `json:"display_timezone"`
	NextEventID     string     `json:"next_event_id,omitempty"`
	Events          []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of an event and its derived angles.
type eventDTO struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Location            string    `json:"location,omitempty"`
	AllDay              bool      `json:"all_day"`
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	Color               string    `json:"color"`
	StartAngle          float64   `json:"start_angle"`
	EndAngle            float64   `json:"end_angle"`
	DurationDegrees     float64   `json:"duration_degrees"`
	TitleOnStartingEdge bool      `json:"title_on_starting_edge"`
	CrossesFold         bool      `json:"crosses_fold,omitempty"`
	InProgress          bool      `json:"in_progress,omitempty"`
	Countdown           string    `json:"countdown,omitempty"`
}

// handleEvents returns the current snapshot, sorted by start.
//
// GET /api/events?at=2025-11-24T14:30:00Z
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseFrameParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sorted := order.SortByStart(s.events.Snapshot())
	resp := eventsResponse{
		Now:             p.at,
		DisplayTimeZone: s.cfg.Location().String(),
		Events:          make([]eventDTO, 0, len(sorted)),
	}

	next, hasNext := order.NextUpcoming(sorted, p.at)
	if hasNext {
		resp.NextEventID = sorted[next].ID()
	}

	for i, ev := range sorted {
		dto := eventDTO{
			ID:                  ev.ID(),
			Title:               ev.Title(),
			Location:            ev.Location(),
			AllDay:              ev.AllDay(),
			Start:               ev.Start(),
			End:                 ev.End(),
			Color:               model.HexColor(ev.Color()),
			StartAngle:          ev.StartAngle(),
			EndAngle:            ev.EndAngle(),
			DurationDegrees:     ev.DurationDegrees(),
			TitleOnStartingEdge: ev.TitleOnStartingEdge(),
			CrossesFold:         ev.CrossesFold(),
			InProgress:          ev.InProgress(p.at),
		}
		if hasNext && i == next {
			dto.Countdown = ev.InTimeString(p.at)
		}
		resp.Events = append(resp.Events, dto)
	}

	writeJSON(w, http.StatusOK, resp)
}

// frameResponse is the JSON response shape for /api/frame.
type frameResponse struct {
	Now     time.Time   `json:"now"`
	Ambient bool        `json:"ambient"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Report  dial.Report `json:"report"`
	Ops     []draw.Op   `json:"ops"`
}

// handleFrame renders one frame into a recorder and returns the draw calls.
//
// GET /api/frame?ambient=1&at=2025-11-24T14:30:00Z
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseFrameParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := s.frame(p)
	var rec draw.Recorder
	rep, err := s.renderer.Render(&rec, f)
	if err != nil {
		appLog.Error("api frame: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render frame")
		return
	}

	writeJSON(w, http.StatusOK, frameResponse{
		Now:     p.at,
		Ambient: p.ambient,
		Width:   f.Bounds.Dx(),
		Height:  f.Bounds.Dy(),
		Report:  rep,
		Ops:     rec.Ops,
	})
}

// handleSVG renders the face as an SVG document. The root element carries
// data-ready="true" for headless capture.
func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseFrameParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := s.frame(p)
	c := svg.New(f.Bounds)
	c.SetFontFamily("Go, sans-serif")
	if _, err := s.renderer.Render(c, f); err != nil {
		appLog.Error("dial svg: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render dial")
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := c.WriteTo(w); err != nil {
		appLog.Error("dial svg: write failed", err)
	}
}

// handlePreview renders the face as a PNG. Ambient frames are reduced to
// black and white when dial.low_bit_ambient is set.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseFrameParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := s.frame(p)
	key := previewKey(f)

	s.previewMu.Lock()
	pc := s.previewCache
	s.previewMu.Unlock()
	if pc != nil && pc.key == key {
		writePNG(w, pc.body)
		return
	}

	body, err := RenderPNG(s.renderer, s.fonts, f, s.cfg.Dial.LowBitAmbient)
	if err != nil {
		appLog.Error("preview: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}

	s.previewMu.Lock()
	s.previewCache = &previewCache{key: key, body: body}
	s.previewMu.Unlock()

	writePNG(w, body)
}

// previewKey identifies a frame down to the minute, the resolution of the
// face. The first event's ID and the count stand in for the snapshot.
func previewKey(f dial.Frame) string {
	first := ""
	if len(f.Events) > 0 {
		first = f.Events[0].ID()
	}
	return fmt.Sprintf("%s|%t|%d|%s", f.Now.Truncate(time.Minute).Format(time.RFC3339), f.Ambient, len(f.Events), first)
}

// RenderImage draws f onto a raster canvas. With lowBit set, ambient
// frames are reduced to a two-color palette.
func RenderImage(r *dial.Renderer, fonts *raster.Fonts, f dial.Frame, lowBit bool) (image.Image, dial.Report, error) {
	c := raster.New(f.Bounds, fonts)
	rep, err := r.Render(c, f)
	if err != nil {
		return nil, rep, err
	}
	if lowBit && f.Ambient {
		return convert.LowBit(c.Image(), lowBitThreshold), rep, nil
	}
	return c.Image(), rep, nil
}

// RenderPNG is RenderImage followed by PNG encoding.
func RenderPNG(r *dial.Renderer, fonts *raster.Fonts, f dial.Frame, lowBit bool) ([]byte, error) {
	img, _, err := RenderImage(r, fonts, f, lowBit)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePNG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
