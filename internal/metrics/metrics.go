package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/site-mirror/internal/storage"
)

// Tracker holds and manages the counters of one run
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
	}
}

func (t *Tracker) inc(field *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	*field++
}

// IncrementPagesFetched counts a page fetched successfully
func (t *Tracker) IncrementPagesFetched() { t.inc(&t.data.PagesFetched) }

// IncrementPagesFailed counts a page whose fetch or processing failed
func (t *Tracker) IncrementPagesFailed() { t.inc(&t.data.PagesFailed) }

// IncrementPagesWritten counts a page file created or updated
func (t *Tracker) IncrementPagesWritten() { t.inc(&t.data.PagesWritten) }

// IncrementPagesUnchanged counts a page whose mirror file already matched
func (t *Tracker) IncrementPagesUnchanged() { t.inc(&t.data.PagesUnchanged) }

// IncrementPagesSkipped counts a fetched resource that is not mirrored as a page
func (t *Tracker) IncrementPagesSkipped() { t.inc(&t.data.PagesSkipped) }

// IncrementAssetsDownloaded counts a newly stored asset
func (t *Tracker) IncrementAssetsDownloaded() { t.inc(&t.data.AssetsDownloaded) }

// IncrementAssetsSkipped counts an asset already present in the mirror
func (t *Tracker) IncrementAssetsSkipped() { t.inc(&t.data.AssetsSkipped) }

// IncrementAssetsFailed counts an asset that could not be fetched or stored
func (t *Tracker) IncrementAssetsFailed() { t.inc(&t.data.AssetsFailed) }

// IncrementLinksDiscovered counts a link newly admitted to the frontier
func (t *Tracker) IncrementLinksDiscovered() { t.inc(&t.data.LinksDiscovered) }

// RecordFetchTime records a page fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// Finish stamps the end time and termination reason and returns the final snapshot
func (t *Tracker) Finish(reason string) storage.Metrics {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	return t.GetSnapshot()
}

// WriteToFile exports metrics to a JSON file
func WriteToFile(path string, m storage.Metrics) error {
	jsonData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// LogProgress formats the current counters for periodic progress logs
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Summary(t.data)
}

// Summary formats counters on one line
func Summary(m storage.Metrics) string {
	return fmt.Sprintf("Pages: %d fetched, %d failed, %d written, %d unchanged, %d skipped | Assets: %d downloaded, %d skipped, %d failed | Links: %d",
		m.PagesFetched,
		m.PagesFailed,
		m.PagesWritten,
		m.PagesUnchanged,
		m.PagesSkipped,
		m.AssetsDownloaded,
		m.AssetsSkipped,
		m.AssetsFailed,
		m.LinksDiscovered,
	)
}
