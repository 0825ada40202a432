package crawler

import (
	"pixdown/pkg/config"
	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
)

// Criteria is the immutable filter configuration for one pipeline run.
type Criteria struct {
	MaxPageCount int
	MinBookmarks int
	// MinQuality disables the quality rule when zero.
	MinQuality float64
	// SexLevel is the content-sensitivity ceiling, clamped to 1..3.
	SexLevel      int
	SkipArtistIDs map[uint64]struct{}
	SkipIllustIDs map[uint64]struct{}
}

// NewCriteria builds filter criteria from configuration.
func NewCriteria(cfg config.FilterConfig) Criteria {
	skipArtists := make(map[uint64]struct{}, len(cfg.SkipArtistIDs))
	for _, id := range cfg.SkipArtistIDs {
		skipArtists[id] = struct{}{}
	}
	skipIllusts := make(map[uint64]struct{}, len(cfg.SkipIllustIDs))
	for _, id := range cfg.SkipIllustIDs {
		skipIllusts[id] = struct{}{}
	}
	return Criteria{
		MaxPageCount:  cfg.MaxPageCount,
		MinBookmarks:  cfg.MinBookmarks,
		MinQuality:    cfg.MinQuality,
		SexLevel:      cfg.SexLevel,
		SkipArtistIDs: skipArtists,
		SkipIllustIDs: skipIllusts,
	}
}

// sexLevel returns the clamped content-sensitivity ceiling; out-of-range
// values fall back to 2.
func (c Criteria) sexLevel() int {
	if c.SexLevel < 1 || c.SexLevel > 3 {
		return 2
	}
	return c.SexLevel
}

// Filter is the pure accept/reject predicate over illustrations. Its only
// side effect is debug logging of the first failing rule.
type Filter struct {
	criteria Criteria
	logger   logger.Logger
}

// NewFilter creates a filter for the given criteria.
func NewFilter(criteria Criteria, log logger.Logger) *Filter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Filter{criteria: criteria, logger: log}
}

// Qualified reports whether an illustration passes every rule. Rules are
// evaluated in a fixed order; the first failing rule is the rejection
// reason.
func (f *Filter) Qualified(il *pixiv.Illust) bool {
	if !il.Visible {
		f.reject(il, "visible", false)
		return false
	}

	if il.Type != pixiv.IllustTypeIllust {
		f.reject(il, "type", il.Type)
		return false
	}
	if il.PageCount > f.criteria.MaxPageCount {
		f.reject(il, "page_count", il.PageCount)
		return false
	}
	if il.TotalBookmarks < f.criteria.MinBookmarks {
		f.reject(il, "bookmarks", il.TotalBookmarks)
		return false
	}
	if f.criteria.MinQuality > 0 && il.Quality() < f.criteria.MinQuality {
		f.reject(il, "quality", il.Quality())
		return false
	}

	level := f.criteria.sexLevel()
	if level < 3 && il.XRestrict > 0 {
		f.reject(il, "x_restrict", il.XRestrict)
		return false
	}
	if level == 2 && il.SanityLevel > 4 {
		f.reject(il, "sanity_level", il.SanityLevel)
		return false
	}
	if level == 1 && il.SanityLevel > 2 {
		f.reject(il, "sanity_level", il.SanityLevel)
		return false
	}

	if _, skip := f.criteria.SkipArtistIDs[il.User.ID]; skip {
		f.reject(il, "artist_id", il.User.ID)
		return false
	}
	if _, skip := f.criteria.SkipIllustIDs[il.ID]; skip {
		f.reject(il, "illust_id", il.ID)
		return false
	}

	return true
}

func (f *Filter) reject(il *pixiv.Illust, rule string, value interface{}) {
	f.logger.DebugWithFields("skip illust", map[string]interface{}{
		"illust_id": il.ID,
		rule:        value,
	})
}
