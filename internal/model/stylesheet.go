package model

// StylesheetAsset is one successfully downloaded stylesheet.
type StylesheetAsset struct {
	// SourceID identifies the asset within a run. It is never empty and
	// never shared by two assets of the same run.
	SourceID string `json:"source_id"`

	// URL is the absolute URL the stylesheet was downloaded from.
	URL string `json:"url"`

	// CSS is the raw stylesheet text.
	CSS string `json:"-"`
}

// Size returns the raw stylesheet size in bytes.
func (a StylesheetAsset) Size() int {
	return len(a.CSS)
}

// SkippedStylesheet records a stylesheet reference that was excluded from
// the run and why.
type SkippedStylesheet struct {
	// Href is the reference as extracted from the page.
	Href string `json:"href"`

	// Reason is a short human readable cause.
	Reason string `json:"reason"`
}

// PurgeResult is the purge outcome for one stylesheet asset.
type PurgeResult struct {
	// SourceID is the SourceID of the asset this result belongs to.
	SourceID string `json:"source_id"`

	// CSS is the purged stylesheet text.
	CSS string `json:"-"`

	// OriginalSize is the raw stylesheet size in bytes.
	OriginalSize int `json:"original_size"`

	// PurgedSize is the purged stylesheet size in bytes.
	PurgedSize int `json:"purged_size"`
}

// NewPurgeResult builds a PurgeResult and fills in the byte counts.
func NewPurgeResult(asset StylesheetAsset, purged string) PurgeResult {
	return PurgeResult{
		SourceID:     asset.SourceID,
		CSS:          purged,
		OriginalSize: asset.Size(),
		PurgedSize:   len(purged),
	}
}

// RemovedBytes returns how many bytes the purge removed.
func (r PurgeResult) RemovedBytes() int {
	return r.OriginalSize - r.PurgedSize
}
