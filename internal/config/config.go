package config

import (
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"elevtiles/internal/loader"
	"elevtiles/internal/telemetry"
	"elevtiles/internal/tile"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Loader    Loader    `envPrefix:"LOADER_"`
		Elevation Elevation `envPrefix:"ELEVATION_"`
		Vips      Vips      `envPrefix:"VIPS_"`
		Preview   Preview   `envPrefix:"PREVIEW_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Warmup    Warmup    `envPrefix:"WARMUP_"`
	}

	HTTP struct {
		Port          int           `env:"PORT" envDefault:"8080"`
		ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout  time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		AllowedOrigin string        `env:"ALLOWED_ORIGIN"`
		// LoadTimeout bounds how long a request waits for a tile load.
		LoadTimeout time.Duration `env:"LOAD_TIMEOUT" envDefault:"30s"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	Loader struct {
		MaxInFlight    int           `env:"MAX_IN_FLIGHT" envDefault:"2"`
		DownscaleTimes int           `env:"DOWNSCALE_TIMES" envDefault:"1"`
		MaxQueued      int           `env:"MAX_QUEUED" envDefault:"0"`
		UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"100ms"`
	}

	Elevation struct {
		URLTemplate string        `env:"URL_TEMPLATE" envDefault:"https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png"`
		UserAgent   string        `env:"USER_AGENT" envDefault:"elevtiles/1.0"`
		Timeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
		// Decoder is "vips" or "std".
		Decoder string `env:"DECODER" envDefault:"vips"`
	}

	Vips struct {
		MaxCacheMB  int `env:"MAX_CACHE_MB" envDefault:"64"`
		Concurrency int `env:"CONCURRENCY" envDefault:"1"`
	}

	Preview struct {
		TileSize int `env:"TILE_SIZE" envDefault:"256"`
	}

	Telemetry struct {
		Enabled        bool    `env:"ENABLED" envDefault:"false"`
		ServiceName    string  `env:"SERVICE_NAME" envDefault:"elevtiles"`
		ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`
		Endpoint       string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
		Insecure       bool    `env:"INSECURE" envDefault:"true"`
		SampleRate     float64 `env:"SAMPLE_RATE" envDefault:"1.0"`
	}

	Warmup struct {
		// Tiles is a comma separated list of z/x/y coordinates kept resident.
		Tiles []string `env:"TILES" envSeparator:","`
	}
)

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		MaxInFlight:    c.Loader.MaxInFlight,
		DownscaleTimes: c.Loader.DownscaleTimes,
		MaxQueued:      c.Loader.MaxQueued,
	}
}

func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: c.Telemetry.ServiceVersion,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// WarmupCoords parses Warmup.Tiles. Malformed entries are returned separately.
func (c *Config) WarmupCoords() ([]tile.Coord, []string) {
	var coords []tile.Coord
	var invalid []string
	for _, s := range c.Warmup.Tiles {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		coord, err := tile.ParseCoord(s)
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		coords = append(coords, coord)
	}
	return coords, invalid
}
