package ops

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/aelhadee/247trader-V2-sub000/internal/audit"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/loop"
	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/risk"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

// FileConfig mirrors the JSON config layout. Durations are nanosecond
// numbers, matching time.Duration's JSON encoding.
type FileConfig struct {
	Mode string `json:"mode"`

	Venue venue.RESTConfig `json:"venue"`
	Risk  risk.Config      `json:"risk"`
	Exec  exec.Config      `json:"exec"`
	Loop  loop.Config      `json:"loop"`
	Audit audit.Config     `json:"audit"`

	Limits  map[string]resilience.LimitConfig `json:"limits"`
	Breaker resilience.BreakerConfig          `json:"breaker"`
	Retry   RetryConfig                       `json:"retry"`

	Postgres     PostgresConfig  `json:"postgres"`
	SnapshotPath string          `json:"snapshotPath"`
	Pyroscope    PyroscopeConfig `json:"pyroscope"`
}

// RetryConfig mirrors resilience.RetryPolicy for JSON loading.
type RetryConfig struct {
	MaxAttempts int           `json:"maxAttempts"`
	Base        time.Duration `json:"base"`
	Cap         time.Duration `json:"cap"`
}

// PostgresConfig selects the ledger persistence backend. Empty host
// disables persistence (paper and sim runs).
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Enabled reports whether a database is configured.
func (c PostgresConfig) Enabled() bool { return c.Host != "" }

// PyroscopeConfig controls continuous profiling.
type PyroscopeConfig struct {
	ServerAddress string `json:"serverAddress"`
	AppName       string `json:"appName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Mode exec.Mode
	Hash string

	Venue venue.RESTConfig
	Risk  risk.Config
	Exec  exec.Config
	Loop  loop.Config
	Audit audit.Config

	Limits  map[string]resilience.LimitConfig
	Breaker resilience.BreakerConfig
	Retry   resilience.RetryPolicy

	Postgres     PostgresConfig
	SnapshotPath string
	Pyroscope    PyroscopeConfig
}

// defaultLimits covers every venue endpoint with headroom under typical
// public API quotas.
func defaultLimits() map[string]resilience.LimitConfig {
	limits := make(map[string]resilience.LimitConfig, len(venue.Endpoints))
	for _, endpoint := range venue.Endpoints {
		limits[endpoint] = resilience.LimitConfig{Capacity: 10, RefillPer: 5}
	}
	limits[venue.EndpointPlaceOrder] = resilience.LimitConfig{Capacity: 5, RefillPer: 2}
	return limits
}

// Load reads a JSON config file and resolves defaults. The hash of the
// raw file bytes travels in every audit record for drift detection.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	sum := sha256.Sum256(data)

	cfg := FileConfig{
		Risk: risk.DefaultConfig(),
		Exec: exec.DefaultConfig(),
		Loop: loop.DefaultConfig(),
	}
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}
	return resolve(cfg, hex.EncodeToString(sum[:8]))
}

func resolve(cfg FileConfig, hash string) (Loaded, error) {
	mode, err := parseMode(cfg.Mode)
	if err != nil {
		return Loaded{}, err
	}
	if err := cfg.Risk.ResolveTiers(); err != nil {
		return Loaded{}, errors.Wrap(err, "risk config")
	}
	if err := cfg.Risk.Validate(); err != nil {
		return Loaded{}, errors.Wrap(err, "risk config")
	}
	if mode == exec.ModeLive && (cfg.Venue.BaseURL == "" || cfg.Venue.Key == "") {
		return Loaded{}, errors.New("live mode requires venue credentials")
	}

	cfg.Exec.Mode = mode
	// cooldown durations are owned by the risk section; execution
	// applies them on closes
	cfg.Exec.CooldownWin = cfg.Risk.CooldownWin
	cfg.Exec.CooldownLoss = cfg.Risk.CooldownLoss
	cfg.Exec.CooldownStop = cfg.Risk.CooldownStop

	limits := cfg.Limits
	if len(limits) == 0 {
		limits = defaultLimits()
	}
	breaker := cfg.Breaker
	if breaker.Threshold == 0 {
		breaker.Threshold = 5
	}
	if breaker.Cooldown == 0 {
		breaker.Cooldown = time.Minute
	}
	retry := resilience.DefaultRetryPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		retry = resilience.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Base:        cfg.Retry.Base,
			Cap:         cfg.Retry.Cap,
		}
	}

	return Loaded{
		Mode:         mode,
		Hash:         hash,
		Venue:        cfg.Venue,
		Risk:         cfg.Risk,
		Exec:         cfg.Exec,
		Loop:         cfg.Loop,
		Audit:        cfg.Audit,
		Limits:       limits,
		Breaker:      breaker,
		Retry:        retry,
		Postgres:     cfg.Postgres,
		SnapshotPath: cfg.SnapshotPath,
		Pyroscope:    cfg.Pyroscope,
	}, nil
}

func parseMode(s string) (exec.Mode, error) {
	switch s {
	case "", "paper":
		return exec.ModePaper, nil
	case "sim":
		return exec.ModeSim, nil
	case "live":
		return exec.ModeLive, nil
	default:
		return exec.ModeUnknown, errors.New("unknown mode: " + s)
	}
}
