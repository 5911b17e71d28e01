package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"elevtiles/internal/metrics"
	"elevtiles/internal/telemetry"
	"elevtiles/internal/tile"
)

var ErrUnexpectedStatus = errors.New("upstream returned unexpected status")

// Fetcher downloads raw elevation tiles from an HTTP endpoint. The URL template
// may reference {x}, {y} and {z}.
type Fetcher struct {
	urlTemplate string
	userAgent   string
	httpClient  *http.Client
	logger      *zap.Logger
}

func New(urlTemplate, userAgent string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// URL substitutes coord into the configured template.
func (f *Fetcher) URL(coord tile.Coord) string {
	return strings.NewReplacer(
		"{x}", strconv.Itoa(coord.X),
		"{y}", strconv.Itoa(coord.Y),
		"{z}", strconv.Itoa(coord.Z),
	).Replace(f.urlTemplate)
}

// Fetch returns the body of a 200 response. Any other status yields an error
// wrapping ErrUnexpectedStatus.
func (f *Fetcher) Fetch(ctx context.Context, coord tile.Coord) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "elevation.fetch", coord)
	defer span.End()

	url := f.URL(coord)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.FetchLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	metrics.FetchLatency.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	f.logger.Debug("Fetched elevation tile",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)

	return data, nil
}
