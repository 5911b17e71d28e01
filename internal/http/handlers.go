package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"elevtiles/internal/config"
	"elevtiles/internal/image_renderer"
	"elevtiles/internal/loader"
	"elevtiles/internal/tile"
)

type Renderer interface {
	RenderTile(coord tile.Coord, level int, b *tile.Bitmap) (*image_renderer.TileResult, error)
}

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	loader   *loader.Loader
	renderer Renderer
}

func New(config *config.Config, logger *zap.Logger, loader *loader.Loader, renderer Renderer) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		loader:   loader,
		renderer: renderer,
	}
}

type levelMeta struct {
	Level  int     `json:"level"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Min    float32 `json:"min"`
	Max    float32 `json:"max"`
}

type tileMeta struct {
	Z      int         `json:"z"`
	X      int         `json:"x"`
	Y      int         `json:"y"`
	Users  int         `json:"users"`
	Levels []levelMeta `json:"levels"`
}

type sampleResponse struct {
	Z         int     `json:"z"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Level     int     `json:"level"`
	PX        int     `json:"px"`
	PY        int     `json:"py"`
	Elevation float32 `json:"elevation"`
}

// Routes returns the full handler chain.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tiles/", h.HandleTileRoutes)
	mux.HandleFunc("/api/stats", h.HandleStats)
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return h.CORSMiddleware(h.RequestLoggingMiddleware(mux))
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := h.config.HTTP.AllowedOrigin
		if allowedOrigin == "" {
			allowedOrigin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, h.loader.Stats())
}

// HandleTileRoutes serves /api/tiles/{z}/{x}/{y} and its /elevation and
// /preview.png subresources.
func (h *Handlers) HandleTileRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tiles/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}

	coord, err := tile.ParseCoord(strings.Join(parts[:3], "/"))
	if err != nil {
		http.Error(w, "Invalid tile coordinate", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 3:
		h.handleTileMeta(w, r, coord)
	case len(parts) == 4 && parts[3] == "elevation":
		h.handleElevation(w, r, coord)
	case len(parts) == 4 && parts[3] == "preview.png":
		h.handlePreview(w, r, coord)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) handleTileMeta(w http.ResponseWriter, r *http.Request, coord tile.Coord) {
	h.withTile(w, r, coord, func(t *tile.Tile) {
		meta := tileMeta{
			Z:     coord.Z,
			X:     coord.X,
			Y:     coord.Y,
			Users: t.Tracker().Count(),
		}
		for _, level := range t.Levels() {
			b, ok := t.Level(level)
			if !ok {
				continue
			}
			lo, hi := b.Range()
			meta.Levels = append(meta.Levels, levelMeta{
				Level:  level,
				Width:  b.Width,
				Height: b.Height,
				Min:    lo,
				Max:    hi,
			})
		}

		w.Header().Set("Cache-Control", "no-store")
		h.writeJSON(w, meta)
	})
}

func (h *Handlers) handleElevation(w http.ResponseWriter, r *http.Request, coord tile.Coord) {
	q := r.URL.Query()

	px, err := strconv.Atoi(q.Get("px"))
	if err != nil {
		http.Error(w, "Invalid px", http.StatusBadRequest)
		return
	}
	py, err := strconv.Atoi(q.Get("py"))
	if err != nil {
		http.Error(w, "Invalid py", http.StatusBadRequest)
		return
	}
	level, err := parseLevel(r)
	if err != nil {
		http.Error(w, "Invalid level", http.StatusBadRequest)
		return
	}

	h.withTile(w, r, coord, func(t *tile.Tile) {
		if _, ok := t.Level(level); !ok {
			http.Error(w, fmt.Sprintf("Level %d not available", level), http.StatusNotFound)
			return
		}
		v, ok := t.Sample(level, px, py)
		if !ok {
			http.Error(w, "Pixel out of range", http.StatusBadRequest)
			return
		}

		h.writeJSON(w, sampleResponse{
			Z:         coord.Z,
			X:         coord.X,
			Y:         coord.Y,
			Level:     level,
			PX:        px,
			PY:        py,
			Elevation: v,
		})
	})
}

func (h *Handlers) handlePreview(w http.ResponseWriter, r *http.Request, coord tile.Coord) {
	level, err := parseLevel(r)
	if err != nil {
		http.Error(w, "Invalid level", http.StatusBadRequest)
		return
	}

	h.withTile(w, r, coord, func(t *tile.Tile) {
		b, ok := t.Level(level)
		if !ok {
			http.Error(w, fmt.Sprintf("Level %d not available", level), http.StatusNotFound)
			return
		}

		result, err := h.renderer.RenderTile(coord, level, b)
		if err != nil {
			h.logger.Error("Failed to render preview", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		etag := `"` + result.ETag + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", result.Size))
		w.Header().Set("Content-Type", "image/png")
		w.Write(result.Data)
	})
}

func parseLevel(r *http.Request) (int, error) {
	v := r.URL.Query().Get("level")
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// withTile loads coord on behalf of this request and releases it once fn returns.
func (h *Handlers) withTile(w http.ResponseWriter, r *http.Request, coord tile.Coord, fn func(*tile.Tile)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.HTTP.LoadTimeout)
	defer cancel()

	owner := tile.NewOwner()
	t, err := h.loader.GetOrLoadTile(ctx, coord, owner)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, loader.ErrTileUnavailable):
			status = http.StatusNotFound
		case errors.Is(err, loader.ErrQueueFull):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		h.logger.Warn("Failed to load tile",
			zap.Int("z", coord.Z), zap.Int("x", coord.X), zap.Int("y", coord.Y),
			zap.Int("status", status),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer t.Tracker().Release(owner)

	fn(t)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
