package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"ritual/internal/adapters/streamer"
	"ritual/internal/config"
	"ritual/internal/core/domain"
	"ritual/internal/core/ports"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// ErrSimulatedUploadFailure is raised by the injectFailure test hook
// before the put call, per §4.6.
var ErrSimulatedUploadFailure = errors.New("simulated upload failure")

// Job is one file's unit of work: the job record the source's inner-class
// callables were replaced with, carrying everything a worker needs
// without capturing lexical scope.
type Job struct {
	Meta   *domain.FileMetadata
	Verb   domain.Verb
	Bucket string
	Key    string // stage object key

	LocalPath  string                        // UPLOAD from a file
	OpenStream func() (io.ReadCloser, error) // UPLOAD from an in-memory stream
	StreamSize int64

	DestDir  string // DOWNLOAD only
	DestName string // DOWNLOAD only

	EncryptionMaterial  *domain.EncryptionMaterial
	InjectFailureSuffix string // test hook: fail uploads whose LocalPath has this suffix
}

// WorkerPool is the Worker Pool (C6): a bounded-concurrency executor
// running the big-file/small-file split from §4.6.
type WorkerPool struct {
	client ports.ObjectStorageClient
	logger ports.Logger
}

func NewWorkerPool(client ports.ObjectStorageClient, logger ports.Logger) *WorkerPool {
	return &WorkerPool{client: client, logger: logger}
}

// Run dispatches jobs, splitting UPLOAD jobs into a single-worker big-file
// phase and a parallel-bound small-file phase. Per §4.6, the split also
// governs which side gets intra-object multipart parallelism: the
// big-file phase runs one file at a time but lets its storage client
// upload that file's parts with `parallel` concurrency, while the
// small-file phase runs up to `parallel` files at once but forces each
// file's own multipart upload to stay single-threaded (innerParallel=1),
// so the two kinds of parallelism are never multiplied together.
// DOWNLOAD and stream-UPLOAD jobs always land in the small-file phase.
// Failures are independent per file (§4.7): Run keeps dispatching the
// rest and returns the combined error of every failed job.
func (p *WorkerPool) Run(ctx context.Context, jobs []Job, parallel int) error {
	if parallel < 1 {
		parallel = config.DefaultParallel
	}

	big, small := partitionJobs(jobs)

	var errs error
	if len(big) > 0 {
		errs = multierr.Append(errs, p.runPhase(ctx, big, 1, parallel))
	}
	if len(small) > 0 {
		errs = multierr.Append(errs, p.runPhase(ctx, small, parallel, 1))
	}
	return errs
}

func partitionJobs(jobs []Job) (big, small []Job) {
	for _, j := range jobs {
		if j.Verb == domain.VerbUpload && j.OpenStream == nil && j.Meta.SrcSize > config.BigFileThresholdBytes {
			big = append(big, j)
			continue
		}
		small = append(small, j)
	}
	return big, small
}

func (p *WorkerPool) runPhase(ctx context.Context, jobs []Job, width, innerParallel int) error {
	sem := semaphore.NewWeighted(int64(width))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var errs error

	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer sem.Release(1)

			if err := p.runJob(ctx, job, innerParallel); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(job)
	}

	wg.Wait()
	return errs
}

func (p *WorkerPool) runJob(ctx context.Context, job Job, innerParallel int) error {
	switch job.Verb {
	case domain.VerbUpload:
		return p.runUpload(ctx, job, innerParallel)
	case domain.VerbDownload:
		return p.runDownload(ctx, job)
	default:
		return fmt.Errorf("unknown verb %s", job.Verb)
	}
}

func (p *WorkerPool) runUpload(ctx context.Context, job Job, innerParallel int) error {
	meta := job.Meta

	if job.InjectFailureSuffix != "" && job.LocalPath != "" && strings.HasSuffix(job.LocalPath, job.InjectFailureSuffix) {
		p.fail(meta, ErrSimulatedUploadFailure)
		return ErrSimulatedUploadFailure
	}

	open, size := p.openSource(job)

	needDigest := job.EncryptionMaterial != nil
	userMetadata := map[string]string{}
	body := open

	if meta.RequireCompress || needDigest {
		src, err := open()
		if err != nil {
			p.fail(meta, err)
			return err
		}

		staged, err := streamer.Stage(ctx, src, meta.RequireCompress, needDigest)
		src.Close()
		if err != nil {
			p.fail(meta, err)
			return err
		}
		defer staged.Release()

		size = staged.ByteCount()
		body = staged.Open
		if digest, ok := staged.Base64Digest(); ok {
			userMetadata[config.SfcDigestMetadataKey] = digest
		}
	}

	contentEncoding := ""
	if meta.DestCompression != domain.None && meta.DestCompression.Supported {
		contentEncoding = strings.ToLower(meta.DestCompression.Name)
	}

	result, err := p.client.Put(ctx, ports.PutRequest{
		Bucket:          job.Bucket,
		Key:             job.Key,
		Open:            body,
		Size:            size,
		UserMetadata:    userMetadata,
		ContentEncoding: contentEncoding,
		InnerParallel:   innerParallel,
	})
	if err != nil {
		p.fail(meta, err)
		return err
	}

	meta.DestSize = result.UploadedBytes
	meta.IsEncrypted = job.EncryptionMaterial != nil
	return meta.SetStatus(domain.StatusUploaded, "")
}

func (p *WorkerPool) runDownload(ctx context.Context, job Job) error {
	meta := job.Meta

	result, err := p.client.Get(ctx, ports.GetRequest{
		Bucket:   job.Bucket,
		Key:      job.Key,
		DestDir:  job.DestDir,
		DestName: job.DestName,
	})
	if err != nil {
		p.fail(meta, err)
		return err
	}

	meta.DestSize = result.BytesWritten
	meta.IsEncrypted = job.EncryptionMaterial != nil
	return meta.SetStatus(domain.StatusDownloaded, "")
}

func (p *WorkerPool) openSource(job Job) (func() (io.ReadCloser, error), int64) {
	if job.OpenStream != nil {
		return job.OpenStream, job.StreamSize
	}
	path := job.LocalPath
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}, job.Meta.SrcSize
}

func (p *WorkerPool) fail(meta *domain.FileMetadata, err error) {
	if setErr := meta.SetStatus(domain.StatusError, err.Error()); setErr != nil && p.logger != nil {
		p.logger.Warn("failed to record job error status", "file", meta.SrcName, "error", setErr)
	}
}
