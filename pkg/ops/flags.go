// Package ops implements the per-request admission chain: kill switch,
// canary cohorting, rate limiting, request-size cap, security headers and
// CORS. The chain wraps the API subtree and reads its flags through an
// atomic snapshot so config hot-reloads apply to the next request.
package ops

import (
	"sync/atomic"

	"github.com/aquilhq/actionlog/pkg/config"
)

// Flags is one immutable snapshot of the operational switches.
type Flags struct {
	// DisableNewMW skips canary, rate limit and size cap entirely.
	// Security headers are still attached.
	DisableNewMW bool

	EnableRateLimit bool

	EnableReqSizeCap bool
	ReqSizeBytes     int64

	EnableCanary  bool
	CanaryPercent int

	EnableSecurityHeaders bool
	EnableHSTS            bool

	CORSAllowOrigins []string
}

// FlagsFromConfig projects the ops config section into a snapshot.
func FlagsFromConfig(cfg *config.OpsConfig) Flags {
	return Flags{
		DisableNewMW:          cfg.DisableNewMW,
		EnableRateLimit:       cfg.EnableRateLimit,
		EnableReqSizeCap:      cfg.EnableReqSizeCap,
		ReqSizeBytes:          int64(cfg.ReqSizeBytes),
		EnableCanary:          cfg.EnableCanary,
		CanaryPercent:         cfg.CanaryPercent,
		EnableSecurityHeaders: cfg.EnableSecurityHeaders,
		EnableHSTS:            cfg.EnableHSTS,
		CORSAllowOrigins:      cfg.CORSAllowOrigins,
	}
}

// flagStore holds the live snapshot.
type flagStore struct {
	p atomic.Pointer[Flags]
}

func newFlagStore(f Flags) *flagStore {
	s := &flagStore{}
	s.p.Store(&f)
	return s
}

func (s *flagStore) load() Flags { return *s.p.Load() }

func (s *flagStore) store(f Flags) { s.p.Store(&f) }
