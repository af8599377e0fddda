package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/api"
	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/config"
	"github.com/aquilhq/actionlog/pkg/embed"
	"github.com/aquilhq/actionlog/pkg/health"
	"github.com/aquilhq/actionlog/pkg/idempotency"
	"github.com/aquilhq/actionlog/pkg/metrics"
	promexport "github.com/aquilhq/actionlog/pkg/metrics/prometheus"
	"github.com/aquilhq/actionlog/pkg/ops"
	"github.com/aquilhq/actionlog/pkg/ratelimit"
	"github.com/aquilhq/actionlog/pkg/reader"
	"github.com/aquilhq/actionlog/pkg/reconciler"
	"github.com/aquilhq/actionlog/pkg/registry"
	"github.com/aquilhq/actionlog/pkg/store/kv"
	"github.com/aquilhq/actionlog/pkg/store/obj"
	"github.com/aquilhq/actionlog/pkg/store/rel"
	"github.com/aquilhq/actionlog/pkg/store/vec"
	"github.com/aquilhq/actionlog/pkg/writer"
)

// counterFlushInterval is how often the merged counters are persisted to KV.
const counterFlushInterval = 30 * time.Second

// stores holds the opened store bindings. Nil fields are unbound.
type stores struct {
	rel *rel.Store
	kv  *kv.Store
	obj *obj.Store
	vec *vec.Store
}

func (s *stores) close() {
	if s.kv != nil {
		_ = s.kv.Close()
	}
	if s.rel != nil {
		_ = s.rel.Close()
	}
}

// openStores opens every enabled store binding. The relational store is
// mandatory. With compat.gpt_mode on, a secondary store that fails to open
// is logged and left unbound; with it off, the failure aborts startup.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	relStore, err := rel.New(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open relational store: %w", err)
	}
	s.rel = relStore
	logger.Info("Relational store opened", "type", cfg.Database.Type)

	strict := !cfg.Compat.GPTMode
	if strict && !cfg.Stores.KV.Enabled {
		s.close()
		return nil, fmt.Errorf("stores.kv must be enabled when compat.gpt_mode is off")
	}

	if cfg.Stores.KV.Enabled {
		kvStore, err := kv.New(kv.Config{
			Path:     cfg.Stores.KV.Path,
			InMemory: cfg.Stores.KV.InMemory,
			LogTTL:   time.Duration(cfg.Stores.KV.TTLSeconds) * time.Second,
		})
		if err != nil {
			if strict {
				s.close()
				return nil, fmt.Errorf("failed to open kv store: %w", err)
			}
			logger.Warn("KV store unavailable, continuing without it", "error", err)
		} else {
			s.kv = kvStore
			logger.Info("KV store opened", "path", cfg.Stores.KV.Path, "in_memory", cfg.Stores.KV.InMemory)
		}
	}

	if cfg.Stores.Object.Enabled {
		objStore, err := obj.NewFromConfig(ctx, obj.Config{
			Bucket:         cfg.Stores.Object.Bucket,
			Region:         cfg.Stores.Object.Region,
			Endpoint:       cfg.Stores.Object.Endpoint,
			KeyPrefix:      cfg.Stores.Object.KeyPrefix,
			ForcePathStyle: cfg.Stores.Object.ForcePathStyle,
			MaxRetries:     cfg.Stores.Object.MaxRetries,
		})
		if err != nil {
			if strict {
				s.close()
				return nil, fmt.Errorf("failed to open object store: %w", err)
			}
			logger.Warn("Object store unavailable, continuing without it", "error", err)
		} else {
			s.obj = objStore
			logger.Info("Object store opened", "bucket", cfg.Stores.Object.Bucket)
		}
	}

	if cfg.Stores.Vector.Enabled {
		if s.kv == nil {
			if strict {
				s.close()
				return nil, fmt.Errorf("stores.vector requires the kv store")
			}
			logger.Warn("Vector store requires the KV store, leaving it unbound")
		} else {
			var embedder embed.Embedder
			switch cfg.Stores.Vector.Embedder {
			case "http":
				embedder = embed.NewHTTP(cfg.Stores.Vector.Endpoint, cfg.Stores.Vector.Model, cfg.Stores.Vector.Dimensions)
			default:
				embedder = embed.NewSimple(cfg.Stores.Vector.Dimensions)
			}
			s.vec = vec.New(s.kv, embedder)
			logger.Info("Vector store opened", "embedder", s.vec.EmbedderName(), "dimensions", cfg.Stores.Vector.Dimensions)
		}
	}

	return s, nil
}

// pipeline is the wired write/read/reconcile core plus its HTTP surface.
type pipeline struct {
	stores     *stores
	mirror     *promexport.Mirror
	counters   *metrics.Counters
	breaker    *breaker.Breaker
	limiter    *ratelimit.Limiter
	chain      *ops.Chain
	writer     *writer.Coordinator
	reader     *reader.Reader
	reconciler *reconciler.Reconciler
	scheduler  *reconciler.Scheduler
	health     *health.Reporter
	server     *api.Server
}

// buildPipeline wires the full service around the opened stores. The KV
// store doubles as the backing for the breaker, rate limiter, idempotency,
// and counter state; when it is unbound those components fail open.
func buildPipeline(ctx context.Context, cfg *config.Config, s *stores) (*pipeline, error) {
	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load operation registry: %w", err)
	}
	logger.Info("Operation registry loaded", "operations", reg.Count())

	mirror := promexport.NewMirror()
	var countersKV metrics.KV
	if s.kv != nil {
		countersKV = s.kv
	}
	counters := metrics.New(countersKV, mirror)
	counters.StartFlusher(ctx, counterFlushInterval)

	var breakerKV breaker.KV
	if s.kv != nil {
		breakerKV = s.kv
	}
	brk := breaker.New(breakerKV, counters, breaker.Settings{
		Enabled:   cfg.Ops.EnableStoreBreaker,
		Threshold: cfg.Ops.BreakerThreshold,
	})

	var limiterKV ratelimit.KV
	if s.kv != nil {
		limiterKV = s.kv
	}
	limiter := ratelimit.New(limiterKV, ratelimit.Settings{
		RPS:   cfg.Ops.RateLimitRPS,
		Burst: cfg.Ops.RateLimitBurst,
	})

	var idem *idempotency.Service
	if s.kv != nil {
		idem = idempotency.New(s.kv, cfg.Idempotency.Retention)
	}

	tracker := health.NewTracker()

	writerOpts := writer.Options{
		Registry:     reg,
		Idempotency:  idem,
		Breaker:      brk,
		Counters:     counters,
		Observer:     tracker,
		Rel:          s.rel,
		StoreTimeout: cfg.Ops.StoreWriteTimeout,
	}
	if s.kv != nil {
		writerOpts.KV = s.kv
	}
	if s.obj != nil {
		writerOpts.Obj = s.obj
	}
	if s.vec != nil {
		writerOpts.Vec = s.vec
	}
	coordinator := writer.New(writerOpts)

	var vecSearch reader.VecSearcher
	if s.vec != nil {
		vecSearch = s.vec
	}
	rdr := reader.New(s.rel, vecSearch, counters)

	recOpts := reconciler.Options{
		Registry: reg,
		Counters: counters,
		Breaker:  brk,
		Rel:      s.rel,
	}
	if s.kv != nil {
		recOpts.KV = s.kv
	}
	if s.obj != nil {
		recOpts.Obj = s.obj
	}
	if s.vec != nil {
		recOpts.Vec = s.vec
	}
	rec := reconciler.New(recOpts)
	scheduler := reconciler.NewScheduler(rec, cfg.Reconcile.Interval, cfg.Reconcile.WindowHours)

	healthOpts := health.Options{
		Version:      Version,
		MaxErrorRate: cfg.Health.MaxErrorRate,
		Tracker:      tracker,
		Breakers:     brk,
		Registry:     reg,
		Rel:          s.rel,
	}
	if s.kv != nil {
		healthOpts.KV = s.kv
	}
	if s.obj != nil {
		healthOpts.Obj = s.obj
	}
	if s.vec != nil {
		healthOpts.Vec = s.vec
	}
	reporter := health.New(healthOpts)

	chain := ops.NewChain(ops.FlagsFromConfig(&cfg.Ops), limiter, counters)

	adminSecret := cfg.Admin.GetJWTSecret()
	if adminSecret == "" {
		logger.Warn("Admin JWT secret not configured, admin endpoints are open")
	}

	handler := api.NewRouter(api.Deps{
		Writer:         coordinator,
		Reader:         rdr,
		Reconciler:     rec,
		Counters:       counters,
		Health:         reporter,
		Chain:          chain,
		PromReg:        mirror.Registry(),
		AdminJWTSecret: adminSecret,
	})
	server := api.NewServer(cfg.Server, handler)

	return &pipeline{
		stores:     s,
		mirror:     mirror,
		counters:   counters,
		breaker:    brk,
		limiter:    limiter,
		chain:      chain,
		writer:     coordinator,
		reader:     rdr,
		reconciler: rec,
		scheduler:  scheduler,
		health:     reporter,
		server:     server,
	}, nil
}

// watchFlags pushes config file changes into the live-tunable components.
// The rest of the configuration (bindings, ports) requires a restart.
func (p *pipeline) watchFlags(configPath string) {
	err := config.Watch(configPath, func(cfg *config.Config) {
		p.chain.UpdateFlags(ops.FlagsFromConfig(&cfg.Ops))
		p.breaker.UpdateSettings(breaker.Settings{
			Enabled:   cfg.Ops.EnableStoreBreaker,
			Threshold: cfg.Ops.BreakerThreshold,
		})
		p.limiter.UpdateSettings(ratelimit.Settings{
			RPS:   cfg.Ops.RateLimitRPS,
			Burst: cfg.Ops.RateLimitBurst,
		})
		logger.Info("Operational flags reloaded",
			"kill_switch", cfg.Ops.DisableNewMW,
			"rate_limit", cfg.Ops.EnableRateLimit,
			"size_cap", cfg.Ops.EnableReqSizeCap,
			"breaker", cfg.Ops.EnableStoreBreaker,
			"canary", cfg.Ops.EnableCanary)
	})
	if err != nil {
		logger.Warn("Config watch unavailable, flag changes require restart", "error", err)
	}
}
