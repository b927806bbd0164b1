package job

import (
	"context"
	"fmt"
	"time"

	"github.com/alvmarrod/site-mirror/internal/config"
	"github.com/alvmarrod/site-mirror/internal/crawler"
	"github.com/alvmarrod/site-mirror/internal/gitsync"
	"github.com/alvmarrod/site-mirror/internal/metrics"
	"github.com/alvmarrod/site-mirror/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Crawler mirrors the configured origins once
type Crawler interface {
	Run(ctx context.Context, runID string) (storage.Metrics, error)
}

// Syncer publishes the mirror tree
type Syncer interface {
	Sync(ctx context.Context) (gitsync.Result, error)
}

// History keeps the ledger of runs
type History interface {
	StartRun(runID string, startedAt time.Time) error
	FinishRun(run storage.Run) error
}

// Job is one crawl followed by a sync, recorded in the run history
type Job struct {
	crawler     Crawler
	syncer      Syncer
	history     History
	metricsPath string
}

// New creates a job. syncer and history may be nil.
func New(c Crawler, syncer Syncer, history History, metricsPath string) *Job {
	return &Job{
		crawler:     c,
		syncer:      syncer,
		history:     history,
		metricsPath: metricsPath,
	}
}

// FromConfig wires the crawl engine, the git syncer and the history store for cfg. store may be nil.
func FromConfig(cfg *config.Config, store *storage.Storage) *Job {
	var (
		recorder crawler.PageRecorder
		history  History
		syncer   Syncer
	)
	if store != nil {
		recorder = store
		history = store
	}

	engine := crawler.NewEngine(cfg, crawler.NewFetcher(cfg), recorder)

	if cfg.Git.Enabled {
		syncer = gitsync.New(gitsync.Options{
			RepoDir:     cfg.Git.RepoDir,
			Scope:       cfg.Git.Scope,
			Remote:      cfg.Git.Remote,
			Branch:      cfg.Git.Branch,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			Username:    cfg.Git.Username,
			Token:       cfg.Git.Token,
		})
	}

	return New(engine, syncer, history, cfg.MetricsPath)
}

// Run performs one mirror run. Sync failures are logged and recorded, not returned.
func (j *Job) Run(ctx context.Context) error {
	run := storage.Run{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		SyncStatus: storage.SyncSkipped,
	}
	log := logrus.WithField("run", run.RunID)
	log.Info("Mirror run started")

	if j.history != nil {
		if err := j.history.StartRun(run.RunID, run.StartedAt); err != nil {
			log.Warnf("Failed to record run start: %v", err)
		}
	}

	m, err := j.crawler.Run(ctx, run.RunID)
	run.Metrics = m
	if err != nil {
		run.Error = err.Error()
		j.finish(log, run)
		return fmt.Errorf("crawl failed: %w", err)
	}

	if j.metricsPath != "" {
		if err := metrics.WriteToFile(j.metricsPath, m); err != nil {
			log.Errorf("Failed to write metrics: %v", err)
		} else {
			log.Debugf("Metrics written to %s", j.metricsPath)
		}
	}

	switch {
	case j.syncer == nil:
		log.Debug("Git sync disabled")
	case ctx.Err() != nil:
		log.Warn("Run interrupted, skipping sync")
	default:
		res, err := j.syncer.Sync(ctx)
		run.CommitHash = res.Hash
		switch {
		case err != nil:
			log.Errorf("Sync failed: %v", err)
			run.SyncStatus = storage.SyncFailed
			run.Error = err.Error()
		case res.Committed:
			run.SyncStatus = storage.SyncCommitted
		default:
			run.SyncStatus = storage.SyncClean
		}
	}

	j.finish(log, run)
	log.Infof("Mirror run finished in %s (sync: %s)", time.Since(run.StartedAt).Round(time.Millisecond), run.SyncStatus)
	return nil
}

func (j *Job) finish(log *logrus.Entry, run storage.Run) {
	run.FinishedAt = time.Now()
	if j.history == nil {
		return
	}
	if err := j.history.FinishRun(run); err != nil {
		log.Warnf("Failed to record run result: %v", err)
	}
}
