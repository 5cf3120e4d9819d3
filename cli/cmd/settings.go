package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/haul/adapter"
	"github.com/pithecene-io/haul/adapter/redis"
	"github.com/pithecene-io/haul/adapter/webhook"
	"github.com/pithecene-io/haul/cli/config"
	"github.com/pithecene-io/haul/endpoint"
	"github.com/pithecene-io/haul/lode"
	"github.com/pithecene-io/haul/runtime"
	"github.com/pithecene-io/haul/types"
)

// loadSettings reads --config (if any) and overlays explicitly set flags.
// The merged config is validated before it is returned.
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(cfg.Unresolved) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: unresolved variables in %s: %s\n", path, strings.Join(cfg.Unresolved, ", "))
		}
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with flags the user set. Flags a
// command does not define are never set.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("chunk-size") {
		n, err := config.ParseByteSize(c.String("chunk-size"))
		if err != nil {
			return fmt.Errorf("--chunk-size: %w", err)
		}
		cfg.ChunkSize = n
	}
	if c.IsSet("payload-size") {
		n, err := config.ParseByteSize(c.String("payload-size"))
		if err != nil {
			return fmt.Errorf("--payload-size: %w", err)
		}
		cfg.PayloadSize = &n
	}
	if c.IsSet("stall-timeout") {
		cfg.StallTimeout = &config.Duration{Duration: c.Duration("stall-timeout")}
	}

	strs := map[string]*string{
		"framing":          &cfg.Framing,
		"transform":        &cfg.Transform,
		"isolation":        &cfg.Isolation,
		"worker":           &cfg.Worker,
		"payload":          &cfg.Payload,
		"storage-backend":  &cfg.Storage.Backend,
		"storage-path":     &cfg.Storage.Path,
		"storage-region":   &cfg.Storage.Region,
		"storage-endpoint": &cfg.Storage.Endpoint,
		"adapter":          &cfg.Adapter.Type,
		"adapter-url":      &cfg.Adapter.URL,
		"adapter-channel":  &cfg.Adapter.Channel,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet("storage-s3-path-style") {
		cfg.Storage.S3PathStyle = c.Bool("storage-s3-path-style")
	}
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout = config.Duration{Duration: c.Duration("adapter-timeout")}
	}
	if c.IsSet("adapter-retries") {
		n := c.Int("adapter-retries")
		cfg.Adapter.Retries = &n
	}
	return nil
}

// workerConfig maps config values onto worker launch settings, filling
// defaults for anything left unset.
func workerConfig(cfg *config.Config) *runtime.WorkerConfig {
	defaults := endpoint.DefaultConfig()
	wc := &runtime.WorkerConfig{
		ChunkSize:    defaults.ChunkSize,
		Framing:      types.FramingMode(cfg.Framing),
		Transform:    cfg.Transform,
		StallTimeout: defaults.StallTimeout,
	}
	if cfg.ChunkSize > 0 {
		wc.ChunkSize = int(cfg.ChunkSize)
	}
	if cfg.StallTimeout != nil {
		wc.StallTimeout = cfg.StallTimeout.Duration
	}
	return wc
}

// storageConfig resolves the storage backend. An empty backend with a path
// means fs; neither means storage is off and ok is false.
func storageConfig(cfg *config.Config) (sc lode.StorageConfig, ok bool) {
	sc = cfg.Storage.Lode()
	if sc.Backend == "" {
		if sc.Path == "" {
			return sc, false
		}
		sc.Backend = lode.BackendFS
	}
	return sc, true
}

// stores bundles the payload store and report dataset over one backend.
type stores struct {
	payloads *lode.PayloadStore
	reports  lodelibrary.Dataset
}

func openStores(ctx context.Context, sc lode.StorageConfig) (*stores, error) {
	factory, err := lode.NewStoreFactory(ctx, sc)
	if err != nil {
		return nil, err
	}
	ds, err := lode.NewReportDataset(factory)
	if err != nil {
		return nil, err
	}
	return &stores{
		payloads: lode.NewPayloadStore(factory),
		reports:  ds,
	}, nil
}

// errNoStorage is returned by read-only commands when no backend is configured.
var errNoStorage = errors.New("storage not configured\n" +
	"  Pass --storage-path (and optionally --storage-backend), or set storage.path in haul.yaml")

// openReadStores opens storage for the read-only commands.
func openReadStores(c *cli.Context) (*stores, error) {
	cfg, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	sc, ok := storageConfig(cfg)
	if !ok {
		return nil, errNoStorage
	}
	return openStores(c.Context, sc)
}

// buildAdapter returns the configured notification adapter, or nil when
// none is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		a, err := redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", ac.Type)
	}
}
