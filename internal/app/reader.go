package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-rawfetch/internal/config"
	"github.com/samvad-hq/samvad-rawfetch/internal/domain"
	"github.com/samvad-hq/samvad-rawfetch/internal/fetcher"
	"github.com/samvad-hq/samvad-rawfetch/internal/logger"
	"github.com/samvad-hq/samvad-rawfetch/internal/rawhttp"
	"github.com/samvad-hq/samvad-rawfetch/internal/storage"
	"github.com/samvad-hq/samvad-rawfetch/internal/transport"
	"github.com/samvad-hq/samvad-rawfetch/pkg/publishers"
	"github.com/samvad-hq/samvad-rawfetch/pkg/targets"
)

// Reader is the long-running fetch loop. It owns the targets registry, the
// publishers fanout and the digest store.
type Reader struct {
	cfg      *config.Config
	targets  *targets.Registry
	fanout   *publishers.Fanout
	service  *fetcher.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewReader builds a Reader from config files.
func NewReader(ctx context.Context, cfg *config.Config, log logger.Logger) (*Reader, error) {
	return newReader(ctx, cfg, log, transport.Dialer(transportOptions(cfg)))
}

func newReader(ctx context.Context, cfg *config.Config, log logger.Logger, dial rawhttp.DialFunc) (*Reader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	targetReg, err := targets.LoadRegistry(cfg.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("load targets registry: %w", err)
	}
	enabledTargets := targetReg.Enabled()
	targetIDs := make([]string, 0, len(enabledTargets))
	for _, t := range enabledTargets {
		targetIDs = append(targetIDs, t.ID)
	}
	log.InfoObj("targets registry loaded", "targets_meta", map[string]any{
		"count": len(targetIDs),
		"ids":   targetIDs,
	})

	publisherSet, err := publishers.LoadConfigs(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	enabledPublishers := publisherSet.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers enabled in %s", cfg.PublishersFile)
	}

	fanout, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	publisherSummaries := make([]map[string]any, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]any{
			"id":      pubCfg.ID,
			"type":    pubCfg.Type,
			"targets": pubCfg.Targets,
		})
	}
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		PageTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"page_ttl_seconds":         int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Reader{
		cfg:      cfg,
		targets:  targetReg,
		fanout:   fanout,
		service:  fetcher.NewService(dial, fanout, store, log),
		interval: cfg.FetchInterval,
		log:      log,
		store:    store,
	}, nil
}

// Run executes a pass immediately. With a positive fetch interval it keeps
// fetching on that cadence until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("reader is not initialized")
	}
	defer r.close()

	list := r.targets.Enabled()
	if len(list) == 0 {
		r.log.WarnObj("no enabled targets; nothing to fetch", "targets_file", r.cfg.TargetsFile)
		return nil
	}

	r.log.InfoObj("reader loop starting", "reader_state", map[string]any{
		"targets_count":    len(list),
		"publishers_count": r.fanout.Size(),
		"fetch_interval":   r.interval.String(),
	})

	err := r.runOnce(ctx, list)
	if r.interval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial fetch failed", "error", err.Error())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("reader loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, list); err != nil {
				r.log.ErrorObj("scheduled fetch failed", "error", err.Error())
			}
		}
	}
}

func (r *Reader) runOnce(ctx context.Context, list []targets.Target) error {
	start := time.Now()
	res, err := r.service.Run(ctx, list)
	r.log.InfoObj("fetch pass completed", "fetch_meta", map[string]any{
		"targets_count": len(list),
		"fetched":       res.Fetched,
		"unchanged":     res.Unchanged,
		"published":     res.Published,
		"failed":        res.Failed,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return err
}

func (r *Reader) close() {
	if r == nil {
		return
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publishers close failed", "error", err.Error())
	}
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err.Error())
	}
}

// FetchOne fetches a single URL over a fresh connection. No registries,
// store or publishers are involved.
func FetchOne(ctx context.Context, cfg *config.Config, log logger.Logger, rawURL string) (domain.Page, error) {
	if cfg == nil {
		return domain.Page{}, fmt.Errorf("config must not be nil")
	}
	return fetchOne(ctx, transport.Dialer(transportOptions(cfg)), log, rawURL)
}

func fetchOne(ctx context.Context, dial rawhttp.DialFunc, log logger.Logger, rawURL string) (domain.Page, error) {
	target, err := targets.FromURL(rawURL)
	if err != nil {
		return domain.Page{}, err
	}
	return fetcher.NewService(dial, nil, nil, log).FetchOne(ctx, target)
}

func transportOptions(cfg *config.Config) transport.Options {
	return transport.Options{
		Port:        cfg.Port,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	}
}
