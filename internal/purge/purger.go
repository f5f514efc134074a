package purge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/nao1215/csstrim/internal/model"
)

// Purger removes unused rules from stylesheets.
//
// Purge returns one result per asset, in asset order. Each result holds
// only the rules of that asset reachable from at least one of htmlSources,
// plus the rules protected by safelist. An error means the whole purge
// failed and wraps model.ErrPurgeFailed.
type Purger interface {
	Purge(ctx context.Context, htmlSources []string, assets []model.StylesheetAsset, safelist Safelist) ([]model.PurgeResult, error)
}

// Engine is the default Purger.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Purge implements Purger.
func (e *Engine) Purge(ctx context.Context, htmlSources []string, assets []model.StylesheetAsset, safelist Safelist) ([]model.PurgeResult, error) {
	docs := make([]*goquery.Document, 0, len(htmlSources))
	for i, src := range htmlSources {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: html source %d: %w", model.ErrPurgeFailed, i, err)
		}
		docs = append(docs, doc)
	}

	m := &matcher{
		docs:     docs,
		safelist: safelist,
		cache:    make(map[string]bool),
		logger:   e.logger,
	}

	results := make([]model.PurgeResult, 0, len(assets))
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrPurgeFailed, err)
		}

		purged, err := m.purgeStylesheet(asset.CSS)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrPurgeFailed, asset.SourceID, err)
		}

		result := model.NewPurgeResult(asset, purged)
		e.logger.Debug("stylesheet purged",
			"source_id", asset.SourceID,
			"original_bytes", result.OriginalSize,
			"purged_bytes", result.PurgedSize,
		)
		results = append(results, result)
	}
	return results, nil
}

// matcher decides selector reachability for one Purge call.
type matcher struct {
	docs     []*goquery.Document
	safelist Safelist
	cache    map[string]bool
	logger   *slog.Logger
}

func (m *matcher) purgeStylesheet(cssText string) (string, error) {
	items, err := parseStylesheet([]byte(cssText))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writeItems(&b, m.filter(items), true)
	return b.String(), nil
}

// filter returns the items that survive. Rulesets keep only their used
// selectors; conditional group rules are filtered recursively and dropped
// when empty; everything else is kept unchanged.
func (m *matcher) filter(items []*item) []*item {
	out := make([]*item, 0, len(items))
	for _, it := range items {
		switch {
		case it.kind == rulesetItem:
			kept := make([]string, 0, len(it.selectors))
			for _, sel := range it.selectors {
				if m.keep(sel) {
					kept = append(kept, sel)
				}
			}
			if len(kept) == 0 {
				continue
			}
			// Nested rules only apply where their parent matches, so they
			// follow the parent and are kept as written.
			out = append(out, &item{
				kind:      rulesetItem,
				selectors: kept,
				children:  it.children,
			})

		case it.kind == blockAtRuleItem && conditionalGroups[it.name]:
			children := m.filter(it.children)
			if len(children) == 0 {
				continue
			}
			out = append(out, &item{
				kind:     blockAtRuleItem,
				name:     it.name,
				prelude:  it.prelude,
				children: children,
			})

		default:
			out = append(out, it)
		}
	}
	return out
}

// keep reports whether sel is used by any document or safelisted.
func (m *matcher) keep(sel string) bool {
	if used, ok := m.cache[sel]; ok {
		return used
	}
	used := m.safelist.Matches(sel) || m.used(sel)
	m.cache[sel] = used
	return used
}

func (m *matcher) used(sel string) bool {
	compiled, err := cascadia.Compile(matchableSelector(sel))
	if err != nil {
		m.logger.Debug("selector kept: cannot be evaluated",
			"selector", sel,
			"error", err,
		)
		return true
	}
	for _, doc := range m.docs {
		if doc.FindMatcher(compiled).Length() > 0 {
			return true
		}
	}
	return false
}
