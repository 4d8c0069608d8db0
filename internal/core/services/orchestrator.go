package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ritual/internal/config"
	"ritual/internal/core/domain"
	"ritual/internal/core/ports"
)

// planEntry pairs one FileMetadata row with the local path (UPLOAD) or
// stage key (both verbs) it was built from.
type planEntry struct {
	Meta      *domain.FileMetadata
	LocalPath string
	Key       string
}

// Orchestrator is the Orchestrator (C7): it drives the pipeline in
// §4.7's state machine, owning cancellation the way the teacher's
// MolfarService owns its Prepare/Run/Exit lifecycle.
type Orchestrator struct {
	pathExpander *PathExpander
	classifier   *Classifier
	skipFilter   *SkipFilter
	pool         *WorkerPool
	logger       ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	injectFailureSuffix string // test hook, §4.6
}

func NewOrchestrator(client ports.ObjectStorageClient, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		pathExpander: NewPathExpander(logger),
		classifier:   NewClassifier(),
		skipFilter:   NewSkipFilter(client, logger),
		pool:         NewWorkerPool(client, logger),
		logger:       logger,
	}
}

// Execute drives INIT → CLASSIFY(if UPLOAD) → SKIP_FILTER(if !overwrite)
// → CANCEL_CHECK → DISPATCH → COLLECT → DONE. The returned bool is false
// when the run was canceled, before or during dispatch (§4.7, §5), or when
// an error is returned; the per-file rows are returned as they stand, so
// rows never dispatched stay UNKNOWN. resolver is non-nil
// for a LOCAL_FS stage and is passed through to the skip filter.
func (o *Orchestrator) Execute(ctx context.Context, plan *domain.TransferPlan, resolver ports.LocalPathResolver) ([]*domain.FileMetadata, bool, error) {
	if err := plan.Validate(); err != nil {
		return nil, false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	entries, err := o.initMetadata(plan)
	if err != nil {
		return nil, false, err
	}

	if plan.Verb == domain.VerbUpload {
		if err := o.classify(entries, plan); err != nil {
			return metaSlice(entries), false, err
		}
	}

	if plan.Verb == domain.VerbUpload && !plan.Flags.Overwrite {
		if err := o.runSkipFilter(runCtx, plan, entries, resolver); err != nil {
			return metaSlice(entries), false, err
		}
	}

	select {
	case <-runCtx.Done():
		return metaSlice(entries), false, nil
	default:
	}

	if plan.Verb == domain.VerbDownload {
		if err := os.MkdirAll(plan.LocalDownloadDir, config.DirPermission); err != nil {
			return metaSlice(entries), false, fmt.Errorf("failed to create download directory: %w", err)
		}
	}

	jobs := o.buildJobs(plan, entries)
	if err := o.pool.Run(runCtx, jobs, plan.Flags.Parallel); err != nil && o.logger != nil {
		o.logger.Warn("some transfers failed", "error", err)
	}

	if runCtx.Err() != nil {
		return metaSlice(entries), false, nil
	}
	return metaSlice(entries), true, nil
}

// SetInjectFailureSuffix arms the §4.6 simulated-failure test hook: any
// UPLOAD whose source path has this suffix fails before the put call.
func (o *Orchestrator) SetInjectFailureSuffix(suffix string) {
	o.injectFailureSuffix = suffix
}

// Cancel requests cooperative cancellation of an in-flight Execute call.
// A cancellation already observed before DISPATCH stops the run entirely;
// one observed mid-DISPATCH lets in-flight jobs finish or fail on their
// own, per §5's "not cleaned up by the core" contract.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) initMetadata(plan *domain.TransferPlan) ([]*planEntry, error) {
	switch plan.Verb {
	case domain.VerbUpload:
		return o.initUploadMetadata(plan)
	case domain.VerbDownload:
		return o.initDownloadMetadata(plan)
	default:
		return nil, domain.ErrEmptyVerb
	}
}

func (o *Orchestrator) initUploadMetadata(plan *domain.TransferPlan) ([]*planEntry, error) {
	if plan.StreamSource != nil {
		meta := domain.NewFileMetadata(plan.StreamSource.DestName, plan.StreamSource.Size)
		return []*planEntry{{Meta: meta}}, nil
	}

	paths, err := o.pathExpander.Expand(plan.SrcLocations)
	if err != nil {
		return nil, err
	}

	entries := make([]*planEntry, 0, len(paths))
	for _, path := range paths {
		meta := domain.NewFileMetadata(path, 0)
		info, statErr := os.Stat(path)
		switch {
		case statErr != nil:
			if err := meta.SetStatus(domain.StatusNonexist, statErr.Error()); err != nil {
				return nil, err
			}
		case info.IsDir():
			if err := meta.SetStatus(domain.StatusDirectory, "is a directory"); err != nil {
				return nil, err
			}
		default:
			meta.SrcSize = info.Size()
		}
		entries = append(entries, &planEntry{Meta: meta, LocalPath: path})
	}
	return entries, nil
}

func (o *Orchestrator) initDownloadMetadata(plan *domain.TransferPlan) ([]*planEntry, error) {
	entries := make([]*planEntry, 0, len(plan.SrcLocations))
	for _, key := range plan.SrcLocations {
		meta := domain.NewFileMetadata(key, 0)
		meta.DestName = filepath.Base(key)
		entries = append(entries, &planEntry{Meta: meta, Key: key})
	}
	return entries, nil
}

func (o *Orchestrator) classify(entries []*planEntry, plan *domain.TransferPlan) error {
	for _, e := range entries {
		if e.Meta.Status.Terminal() {
			continue
		}

		if plan.StreamSource != nil {
			o.classifier.ClassifyStream(e.Meta, plan.StreamSource.DestName, plan.StreamSource.CompressRequested)
			e.Key = e.Meta.DestName
			continue
		}

		if err := o.classifier.ClassifyFile(e.Meta, e.LocalPath, plan.Flags.SourceCompressionHint, plan.Flags.AutoCompress); err != nil {
			var unsupported *domain.CompressionNotSupportedError
			if errors.As(err, &unsupported) {
				if setErr := e.Meta.SetStatus(domain.StatusError, err.Error()); setErr != nil {
					return setErr
				}
				continue
			}
			return err
		}
		e.Key = e.Meta.DestName
	}
	return nil
}

func (o *Orchestrator) runSkipFilter(ctx context.Context, plan *domain.TransferPlan, entries []*planEntry, resolver ports.LocalPathResolver) error {
	candidates := make([]SkipCandidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, SkipCandidate{Meta: e.Meta, LocalPath: e.LocalPath})
	}
	return o.skipFilter.Apply(ctx, plan.Stage.Location, candidates, resolver)
}

func (o *Orchestrator) buildJobs(plan *domain.TransferPlan, entries []*planEntry) []Job {
	jobs := make([]Job, 0, len(entries))
	for i, e := range entries {
		if e.Meta.Status.Terminal() {
			continue
		}

		job := Job{
			Meta:   e.Meta,
			Verb:   plan.Verb,
			Bucket: plan.Stage.Location,
			Key:    e.Key,
		}

		switch plan.Verb {
		case domain.VerbUpload:
			if plan.StreamSource != nil {
				reader := plan.StreamSource.Reader
				job.OpenStream = func() (io.ReadCloser, error) { return io.NopCloser(reader), nil }
				job.StreamSize = plan.StreamSource.Size
			} else {
				job.LocalPath = e.LocalPath
				job.InjectFailureSuffix = o.injectFailureSuffix
			}
			if len(plan.EncryptionMaterial) > 0 {
				job.EncryptionMaterial = &plan.EncryptionMaterial[0]
			}
		case domain.VerbDownload:
			job.DestDir = plan.LocalDownloadDir
			job.DestName = e.Meta.DestName
			if i < len(plan.EncryptionMaterial) {
				job.EncryptionMaterial = &plan.EncryptionMaterial[i]
			}
		}

		jobs = append(jobs, job)
	}
	return jobs
}

func metaSlice(entries []*planEntry) []*domain.FileMetadata {
	out := make([]*domain.FileMetadata, len(entries))
	for i, e := range entries {
		out[i] = e.Meta
	}
	return out
}
