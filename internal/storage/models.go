package storage

import "time"

// Sync status values stored on a run
const (
	SyncSkipped   = "skipped"
	SyncClean     = "clean"
	SyncCommitted = "committed"
	SyncFailed    = "failed"
)

// Run is one crawl-and-sync pass as kept in the history table
type Run struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Metrics    Metrics
	SyncStatus string
	CommitHash string
	Error      string
}

// PageRecord is the outcome of processing one page during a run
type PageRecord struct {
	RunID     string
	URL       string
	Path      string
	Outcome   string
	Error     string
	CreatedAt time.Time
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	PagesWritten      int       `json:"pages_written"`
	PagesUnchanged    int       `json:"pages_unchanged"`
	PagesSkipped      int       `json:"pages_skipped"`
	AssetsDownloaded  int       `json:"assets_downloaded"`
	AssetsSkipped     int       `json:"assets_skipped"`
	AssetsFailed      int       `json:"assets_failed"`
	LinksDiscovered   int       `json:"links_discovered"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
