package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"elevtiles/internal/cache"
	"elevtiles/internal/image_decoder"
	"elevtiles/internal/metrics"
	"elevtiles/internal/queue"
	"elevtiles/internal/telemetry"
	"elevtiles/internal/tile"
)

var (
	// ErrTileUnavailable is returned when a load finished without producing the tile.
	ErrTileUnavailable = errors.New("tile unavailable")
	// ErrQueueFull is returned when MaxQueued requests are already waiting.
	ErrQueueFull = errors.New("load queue is full")
)

type Fetcher interface {
	Fetch(ctx context.Context, coord tile.Coord) ([]byte, error)
}

type Config struct {
	// MaxInFlight caps concurrent fetches.
	MaxInFlight int
	// DownscaleTimes is the number of half-resolution levels derived per fetch.
	DownscaleTimes int
	// MaxQueued bounds waiting requests. Zero means unbounded.
	MaxQueued int
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight:    2,
		DownscaleTimes: 1,
	}
}

// Result is the outcome delivered to every caller coalesced onto one load.
// Exactly one of Tile and Err is set.
type Result struct {
	Tile *tile.Tile
	Err  error
}

type Stats struct {
	Tiles    int `json:"tiles"`
	Waiting  int `json:"waiting"`
	InFlight int `json:"in_flight"`
	Waiters  int `json:"waiters"`
}

// Loader owns the tile cache and schedules fetches for missing tiles. Cache,
// queue and in-flight set are only touched under mu.
type Loader struct {
	cfg     Config
	fetcher Fetcher
	decoder image_decoder.Decoder
	logger  *zap.Logger

	mu      sync.Mutex
	cache   cache.Cache
	queue   *queue.RequestQueue[Result]
	waiters int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, tileCache cache.Cache, fetcher Fetcher, decoder image_decoder.Decoder, logger *zap.Logger) *Loader {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.DownscaleTimes < 0 {
		cfg.DownscaleTimes = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		cfg:     cfg,
		fetcher: fetcher,
		decoder: decoder,
		logger:  logger,
		cache:   tileCache,
		queue:   queue.New[Result](),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// GetOrLoadTile returns the tile at coord with owner registered as a user. On a
// cache miss it blocks until the load completes, which only happens once Update
// admits the request. If ctx ends first the owner is not registered; the load
// itself keeps running.
func (l *Loader) GetOrLoadTile(ctx context.Context, coord tile.Coord, owner tile.Owner) (*tile.Tile, error) {
	metrics.TileRequests.Inc()

	l.mu.Lock()
	if t, ok := l.cache.Get(coord); ok {
		t.Tracker().Use(owner)
		l.mu.Unlock()
		metrics.CacheHits.Inc()
		return t, nil
	}

	req := l.queue.Find(coord)
	if req == nil {
		if l.cfg.MaxQueued > 0 && l.queue.Size() >= l.cfg.MaxQueued {
			l.mu.Unlock()
			metrics.RejectedRequests.Inc()
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, coord)
		}
		req = queue.NewRequest[Result](coord)
		l.queue.Add(req)
		metrics.WaitingRequests.Set(float64(l.queue.Size()))
	} else {
		metrics.CoalescedRequests.Inc()
	}

	w := queue.NewWaiter[Result](owner)
	req.AddWaiter(w)
	l.waiters++
	l.mu.Unlock()

	select {
	case res := <-w.Done:
		return res.Tile, res.Err
	case <-ctx.Done():
	}

	l.mu.Lock()
	detached := w.Detach()
	if detached {
		l.waiters--
	}
	l.mu.Unlock()

	if !detached {
		// Completion won the race and already registered owner.
		if res := <-w.Done; res.Tile != nil {
			res.Tile.Tracker().Release(owner)
		}
	}
	return nil, ctx.Err()
}

// Update evicts unused tiles, then admits waiting requests up to MaxInFlight.
func (l *Loader) Update() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if evicted := l.cache.Sweep(); len(evicted) > 0 {
		metrics.Evictions.Add(float64(len(evicted)))
		l.logger.Debug("Evicted unused tiles", zap.Int("count", len(evicted)))
	}

	for l.queue.Size() > 0 && l.queue.InFlight() < l.cfg.MaxInFlight {
		req := l.queue.Get()
		l.wg.Add(1)
		go l.run(req)
	}

	metrics.CachedTiles.Set(float64(l.cache.Len()))
	metrics.WaitingRequests.Set(float64(l.queue.Size()))
	metrics.InFlightRequests.Set(float64(l.queue.InFlight()))
}

func (l *Loader) GetTile(coord tile.Coord) (*tile.Tile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Get(coord)
}

// GetBitmap returns one pyramid level of a cached tile.
func (l *Loader) GetBitmap(coord tile.Coord, level int) (*tile.Bitmap, bool) {
	t, ok := l.GetTile(coord)
	if !ok {
		return nil, false
	}
	return t.Level(level)
}

func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Tiles:    l.cache.Len(),
		Waiting:  l.queue.Size(),
		InFlight: l.queue.InFlight(),
		Waiters:  l.waiters,
	}
}

// Close aborts running loads and waits for them to finish. Waiting requests
// are left in place.
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
}

type producedLevel struct {
	coord  tile.Coord
	level  int
	bitmap *tile.Bitmap
}

func (l *Loader) run(req *queue.Request[Result]) {
	defer l.wg.Done()

	start := time.Now()
	produced, err := l.load(req.Coord)
	l.complete(req, produced, err)

	if err != nil {
		metrics.Loads.WithLabelValues(metrics.OutcomeFailed).Inc()
		l.logger.Warn("Tile load failed",
			zap.Int("z", req.Coord.Z), zap.Int("x", req.Coord.X), zap.Int("y", req.Coord.Y),
			zap.Error(err),
		)
		return
	}

	metrics.Loads.WithLabelValues(metrics.OutcomeLoaded).Inc()
	l.logger.Debug("Tile loaded",
		zap.Int("z", req.Coord.Z), zap.Int("x", req.Coord.X), zap.Int("y", req.Coord.Y),
		zap.Int("levels", len(produced)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// load fetches and decodes coord and derives DownscaleTimes coarser levels.
// Nothing is stored here; complete commits the levels under the lock.
func (l *Loader) load(coord tile.Coord) (produced []producedLevel, err error) {
	defer func() {
		if r := recover(); r != nil {
			produced, err = nil, fmt.Errorf("load panicked: %v", r)
		}
	}()

	ctx, span := telemetry.StartSpan(l.ctx, "elevation.load", coord)
	defer span.End()

	data, err := l.fetcher.Fetch(ctx, coord)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raster, err := l.decoder.Decode(ctx, data)
	if err != nil {
		err = fmt.Errorf("failed to decode tile: %w", err)
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	bitmap := tile.FromRaster(raster)
	produced = append(produced, producedLevel{coord: coord, level: 0, bitmap: bitmap})

	for i := 0; i < l.cfg.DownscaleTimes; i++ {
		bitmap = bitmap.Downsample()
		produced = append(produced, producedLevel{coord: coord.Ancestor(i), level: i + 1, bitmap: bitmap})
	}
	metrics.DecodeLatency.Observe(time.Since(start).Seconds())

	return produced, nil
}

// complete stores produced levels, retires req and resolves every waiter. Each
// waiter re-reads the cache and gets the tile registered to its owner.
func (l *Loader) complete(req *queue.Request[Result], produced []producedLevel, loadErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range produced {
		l.cache.PutLevel(p.coord, p.level, p.bitmap)
	}
	l.queue.Remove(req)

	failed := Result{Err: fmt.Errorf("%w: %s", ErrTileUnavailable, req.Coord)}
	if loadErr != nil {
		failed.Err = fmt.Errorf("%w: %s: %w", ErrTileUnavailable, req.Coord, loadErr)
	}

	for _, w := range req.Waiters {
		if !w.Pending() {
			continue
		}
		res := failed
		if t, ok := l.cache.Get(req.Coord); ok {
			t.Tracker().Use(w.Owner)
			res = Result{Tile: t}
		}
		w.Resolve(res)
		l.waiters--
	}

	metrics.CachedTiles.Set(float64(l.cache.Len()))
	metrics.InFlightRequests.Set(float64(l.queue.InFlight()))
}
