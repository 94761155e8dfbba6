// Package pdfjob drains the deferred PDF rendering queue. Jobs are written
// during ingestion when PDF generation runs in async mode; each job is
// idempotent because derivative keys are deterministic per sequence number.
package pdfjob

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"partita/internal/config"
	"partita/internal/logging"
	"partita/internal/manifest"
	"partita/internal/objectstore"
	"partita/internal/store"
)

// Renderer is the rendering surface the worker needs. *convert.Engine
// satisfies it.
type Renderer interface {
	RenderPDF(ctx context.Context, m *manifest.Manifest, workID, sourceID string, seq int, sourceName string, sourceData []byte) (pdf, thumbnail objectstore.Locator, err error)
}

// Worker polls for pending jobs and renders them with bounded concurrency.
type Worker struct {
	store       *store.Store
	objects     objectstore.Store
	renderer    Renderer
	interval    time.Duration
	concurrency int
	log         *slog.Logger
}

// NewWorker builds a worker from configuration.
func NewWorker(cfg *config.Config, st *store.Store, objects objectstore.Store, renderer Renderer, logger *slog.Logger) *Worker {
	return &Worker{
		store:       st,
		objects:     objects,
		renderer:    renderer,
		interval:    time.Duration(cfg.Daemon.PollInterval) * time.Second,
		concurrency: cfg.Daemon.JobConcurrency,
		log:         logging.WithComponent(logger, "pdfjob"),
	}
}

// Run polls until the context ends. Each poll drains the queue.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Drain(ctx); err != nil {
			w.log.Error("drain pdf jobs", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain claims every pending job, then processes the batch with bounded
// concurrency. Jobs requeued by a failure wait for the next poll, so one
// drain touches each job at most once.
func (w *Worker) Drain(ctx context.Context) error {
	var jobs []*store.PDFJob
	for {
		job, err := w.store.ClaimNextPDFJob(ctx)
		if err != nil {
			return err
		}
		if job == nil {
			break
		}
		jobs = append(jobs, job)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.concurrency)
	for _, job := range jobs {
		group.Go(func() error {
			w.process(groupCtx, job)
			return nil
		})
	}
	return group.Wait()
}

func (w *Worker) process(ctx context.Context, job *store.PDFJob) {
	log := w.log.With(
		logging.FieldWorkID, job.WorkID,
		logging.FieldSourceID, job.SourceID,
		logging.FieldSequence, job.Seq)

	data, err := w.objects.Get(ctx, objectstore.Bucket(job.SourceBucket), job.SourceKey)
	if err != nil {
		log.Warn("load pdf job source", logging.Error(err))
		_ = w.store.FailPDFJob(ctx, job.ID, err.Error())
		return
	}

	pdf, thumbnail, err := w.renderer.RenderPDF(ctx, nil, job.WorkID, job.SourceID, job.Seq, job.SourceName, data)
	if err != nil {
		log.Warn("render deferred pdf", logging.Error(err))
		_ = w.store.FailPDFJob(ctx, job.ID, err.Error())
		return
	}

	rev, err := w.store.GetRevision(ctx, job.RevisionID)
	if err != nil {
		_ = w.store.FailPDFJob(ctx, job.ID, err.Error())
		return
	}
	derivatives := rev.Derivatives
	derivatives.AttachDeferredPDF(&pdf, &thumbnail)
	if err := w.store.AttachDeferredArtifacts(ctx, rev.ID, derivatives); err != nil {
		_ = w.store.FailPDFJob(ctx, job.ID, err.Error())
		return
	}

	if err := w.store.CompletePDFJob(ctx, job.ID); err != nil {
		log.Warn("complete pdf job", logging.Error(err))
		return
	}
	log.Info("deferred pdf rendered", "pdf", pdf.Key, "thumbnail", thumbnail.Key)
}
