package resolve

import (
	"log/slog"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/cache"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/internal/logging"
)

// DefaultMaxErrorRate is the default fuzzy-search error budget as a
// fraction of the pattern length.
const DefaultMaxErrorRate = 0.25

// EngineConfig contains restoration options. Zero values fall back to the
// package defaults.
type EngineConfig struct {
	// Logger receives resolution diagnostics. Nil means the process logger.
	Logger *slog.Logger

	// MaxErrorRate is the fuzzy-search error budget as a fraction of the
	// pattern length.
	MaxErrorRate float64

	// Cache, when set, is consulted before flattening models that report a
	// fingerprint. Mutable models are never cached.
	Cache *cache.FlattenCache
}

// DefaultEngineConfig returns the default restoration options.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxErrorRate: DefaultMaxErrorRate,
	}
}

// Engine restores anchors against document snapshots. It holds no state
// about any document or selector between calls; a single Engine is safe
// for concurrent use across goroutines.
type Engine struct {
	log          *slog.Logger
	maxErrorRate float64
	cache        *cache.FlattenCache
}

// NewEngine creates an Engine with the given options.
func NewEngine(config EngineConfig) *Engine {
	log := config.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	rate := config.MaxErrorRate
	if rate <= 0 {
		rate = DefaultMaxErrorRate
	}

	return &Engine{
		log:          log,
		maxErrorRate: rate,
		cache:        config.Cache,
	}
}

// NewDefaultEngine creates an Engine with default options and its own
// flattening cache.
func NewDefaultEngine() *Engine {
	config := DefaultEngineConfig()
	config.Cache = cache.NewDefaultFlattenCache()
	return NewEngine(config)
}

// Resolve restores one selector against the given snapshot, trying the
// structural, position, and fuzzy tiers in order and stopping at the first
// success. A selector whose every tier fails yields a TierFailed outcome;
// Resolve never panics over missing text.
func (e *Engine) Resolve(m document.Model, sel *anchor.MultiSelector) RestorationOutcome {
	fo := &flattenOnce{engine: e, model: m}
	return e.resolve(fo, m, sel)
}

// ResolveAll restores a batch of selectors against one snapshot. The
// document is flattened at most once for the whole batch; per-selector
// results are identical to individual Resolve calls.
func (e *Engine) ResolveAll(m document.Model, sels []*anchor.MultiSelector) []RestorationOutcome {
	fo := &flattenOnce{engine: e, model: m}

	outcomes := make([]RestorationOutcome, len(sels))
	for i, sel := range sels {
		outcomes[i] = e.resolve(fo, m, sel)
	}
	return outcomes
}

// resolve runs the tier chain for one selector.
func (e *Engine) resolve(fo *flattenOnce, m document.Model, sel *anchor.MultiSelector) RestorationOutcome {
	if sel == nil {
		return RestorationOutcome{Tier: anchor.TierFailed}
	}

	if sel.Structural != nil {
		span, err := e.ResolveStructural(m, sel.Structural)
		if err == nil {
			return e.outcome(sel, span)
		}
		e.log.Debug("tier_failed", "anchor_id", sel.ID, "tier", string(anchor.TierStructural), "error", err)
	}

	if sel.Position != nil {
		span, err := e.resolvePosition(fo.get(), sel.Position)
		if err == nil {
			return e.outcome(sel, span)
		}
		e.log.Debug("tier_failed", "anchor_id", sel.ID, "tier", string(anchor.TierPosition), "error", err)
	}

	if sel.Fuzzy != nil {
		span, err := e.resolveFuzzy(fo.get(), sel.Fuzzy)
		if err == nil {
			return e.outcome(sel, span)
		}
		e.log.Debug("tier_failed", "anchor_id", sel.ID, "tier", string(anchor.TierFuzzy), "error", err)
	}

	e.log.Warn("anchor_failed", "anchor_id", sel.ID)
	return RestorationOutcome{Tier: anchor.TierFailed}
}

// outcome wraps a tier success, logging context drift when the winning
// tier flagged it.
func (e *Engine) outcome(sel *anchor.MultiSelector, span *ResolvedSpan) RestorationOutcome {
	if span.ContextWarning {
		e.log.Warn("context_drift", "anchor_id", sel.ID, "tier", string(span.Tier))
	}
	return RestorationOutcome{Span: span, Tier: span.Tier}
}

// flatten produces the flattened text for a snapshot, consulting the
// engine's cache for models that report a fingerprint.
func (e *Engine) flatten(m document.Model) *document.Flattened {
	if e.cache != nil {
		if fp, ok := m.(document.Fingerprinter); ok {
			return e.cache.GetOrCompute(fp.Fingerprint(), func() *document.Flattened {
				return document.Flatten(m)
			})
		}
	}
	return document.Flatten(m)
}

// flattenOnce defers flattening until a tier needs it and then shares the
// result across a resolution batch. A batch that resolves every selector
// structurally never flattens at all.
type flattenOnce struct {
	engine *Engine
	model  document.Model
	flat   *document.Flattened
}

func (f *flattenOnce) get() *document.Flattened {
	if f.flat == nil {
		f.flat = f.engine.flatten(f.model)
	}
	return f.flat
}
