package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/site-mirror/internal/config"
	"github.com/alvmarrod/site-mirror/internal/fetch"
	"github.com/alvmarrod/site-mirror/internal/metrics"
	"github.com/alvmarrod/site-mirror/internal/mirror"
	"github.com/alvmarrod/site-mirror/internal/normalize"
	"github.com/alvmarrod/site-mirror/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Termination reasons reported in run metrics
const (
	ReasonQueueEmpty = "queue_empty"
	ReasonCanceled   = "canceled"
)

const progressInterval = 10 * time.Second

// Fetcher retrieves a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// PageRecorder receives the outcome of every processed page
type PageRecorder interface {
	RecordPage(rec storage.PageRecord) error
}

// Engine crawls the configured origins into the mirror tree
type Engine struct {
	fetcher    Fetcher
	writer     *mirror.Writer
	normalizer *normalize.Normalizer
	scope      *Scope
	assets     *AssetResolver
	links      LinkFilter
	workers    int
	recorder   PageRecorder
}

// crawlRun is the state of one Run call
type crawlRun struct {
	id      string
	queue   *Queue
	tracker *metrics.Tracker
	log     *logrus.Entry
}

// NewFetcher builds the HTTP fetcher for cfg, refusing redirects that leave the configured origins
func NewFetcher(cfg *config.Config) *fetch.Fetcher {
	scope := NewScope(cfg.Origins)
	return fetch.New(fetch.Options{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowRedirect:  scope.AllowsHost,
	})
}

// NewEngine creates a crawl engine. recorder may be nil.
func NewEngine(cfg *config.Config, fetcher Fetcher, recorder PageRecorder) *Engine {
	scope := NewScope(cfg.Origins)
	writer := mirror.NewWriter(cfg.MirrorDir)
	exts := extensionSet(cfg.AssetExtensions)

	workers := cfg.ConcurrentWorkers
	if workers < 1 {
		workers = 1
	}

	normalizer := normalize.New(normalize.Options{
		TrackingScriptPrefixes: cfg.TrackingScriptPrefixes,
		BeaconAttributes:       cfg.BeaconAttributes,
		IndentSize:             cfg.IndentSize,
	})

	return &Engine{
		fetcher:    fetcher,
		writer:     writer,
		normalizer: normalizer,
		scope:      scope,
		assets:     NewAssetResolver(fetcher, writer, scope, exts, normalizer.IndentSize()),
		links: LinkFilter{
			ExcludedSegments: cfg.ExcludedPathSegments,
			AssetExtensions:  exts,
		},
		workers:  workers,
		recorder: recorder,
	}
}

// Run crawls every origin once, starting at its root, and returns the run metrics.
// Only a mirror directory that cannot be created is reported as an error.
func (e *Engine) Run(ctx context.Context, runID string) (storage.Metrics, error) {
	if err := e.writer.EnsureRoot(); err != nil {
		return storage.Metrics{}, err
	}

	run := &crawlRun{
		id:      runID,
		queue:   NewQueue(),
		tracker: metrics.NewTracker(),
		log:     logrus.WithField("run", runID),
	}

	for _, origin := range e.scope.Origins() {
		run.queue.Push(Entry{URL: origin + "/", Origin: origin})
	}

	stopQueue := context.AfterFunc(ctx, run.queue.Stop)
	defer stopQueue()

	run.log.Infof("Starting crawl of %d origin(s) with %d worker(s)", len(e.scope.Origins()), e.workers)

	done := make(chan struct{})
	go e.logProgress(run, done)

	var g errgroup.Group
	for i := 0; i < e.workers; i++ {
		id := i + 1
		g.Go(func() error {
			e.worker(ctx, run, id)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	reason := ReasonQueueEmpty
	if ctx.Err() != nil {
		reason = ReasonCanceled
	}

	m := run.tracker.Finish(reason)
	run.log.Infof("Crawl finished (%s): %s", reason, metrics.Summary(m))
	return m, nil
}

func (e *Engine) worker(ctx context.Context, run *crawlRun, id int) {
	run.log.Debugf("Worker %d started", id)

	for {
		entry, ok := run.queue.Pop()
		if !ok {
			run.log.Debugf("Worker %d: queue drained, exiting", id)
			return
		}
		e.crawlOrigin(ctx, run, entry)
		run.queue.Done()
	}
}

// crawlOrigin processes one page: fetch, mirror its assets, store it normalized and queue its links
func (e *Engine) crawlOrigin(ctx context.Context, run *crawlRun, entry Entry) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	resp, err := e.fetcher.Fetch(ctx, entry.URL)
	run.tracker.RecordFetchTime(time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		run.log.Warnf("Failed to fetch %s: %v", entry.URL, err)
		run.tracker.IncrementPagesFailed()
		e.record(run, entry.URL, "", "failed", err)
		return
	}
	run.tracker.IncrementPagesFetched()

	if !resp.IsHTML() {
		run.log.Debugf("Skipping %s: content type %q", entry.URL, resp.ContentType)
		run.tracker.IncrementPagesSkipped()
		e.record(run, entry.URL, "", "skipped", nil)
		return
	}

	rel, err := mirror.MapURL(entry.URL, entry.Origin)
	if err != nil {
		if !errors.Is(err, mirror.ErrNotMappable) {
			run.log.Warnf("Failed to map %s: %v", entry.URL, err)
		}
		run.log.Debugf("No mirror path for %s", entry.URL)
		return
	}

	pageURL, err := url.Parse(entry.URL)
	if err != nil {
		run.log.Warnf("Invalid page URL %s: %v", entry.URL, err)
		return
	}

	body := resp.Body
	if resp.Transcoded {
		body = normalize.DeclareUTF8(body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		run.log.Warnf("Failed to parse %s: %v", entry.URL, err)
		run.tracker.IncrementPagesFailed()
		e.record(run, entry.URL, rel, "failed", err)
		return
	}

	e.assets.Resolve(ctx, doc, pageURL, rel, run.tracker)

	normalized, err := e.normalizer.Normalize(body)
	if err != nil {
		run.log.Warnf("Failed to normalize %s: %v", entry.URL, err)
		run.tracker.IncrementPagesFailed()
		e.record(run, entry.URL, rel, "failed", err)
		return
	}

	outcome, err := e.writer.WriteIfChanged(rel, []byte(normalized))
	if err != nil {
		run.log.Errorf("Failed to write %s: %v", rel, err)
		run.tracker.IncrementPagesFailed()
		e.record(run, entry.URL, rel, "failed", err)
		return
	}
	if outcome == mirror.Unchanged {
		run.tracker.IncrementPagesUnchanged()
	} else {
		run.tracker.IncrementPagesWritten()
	}
	e.record(run, entry.URL, rel, outcome.String(), nil)

	// pushed last-first so the LIFO frontier visits siblings in document order
	links := ExtractLinks(doc, pageURL, entry.Origin, e.links)
	for i := len(links) - 1; i >= 0; i-- {
		if run.queue.Push(Entry{URL: links[i], Origin: entry.Origin}) {
			run.tracker.IncrementLinksDiscovered()
		}
	}
}

func (e *Engine) record(run *crawlRun, pageURL, path, outcome string, cause error) {
	if e.recorder == nil {
		return
	}
	rec := storage.PageRecord{
		RunID:   run.id,
		URL:     pageURL,
		Path:    path,
		Outcome: outcome,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := e.recorder.RecordPage(rec); err != nil {
		run.log.Warnf("Failed to record page %s: %v", pageURL, err)
	}
}

func (e *Engine) logProgress(run *crawlRun, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run.log.Infof("%s | Queue: %d", run.tracker.LogProgress(), run.queue.Size())
		case <-done:
			return
		}
	}
}
