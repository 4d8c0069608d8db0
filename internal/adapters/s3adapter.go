package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"ritual/internal/config"
	"ritual/internal/core/domain"
	"ritual/internal/core/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// S3Client is the subset of the AWS SDK S3 client the adapter depends on,
// mirrored from the teacher's adapters.S3Client interface so it stays
// mockable in tests. It also carries the multipart methods manager.Uploader
// needs, since Put builds a fresh uploader per call (§4.6's per-phase
// concurrency hint means the uploader can't be built once and cached).
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// boundClient wraps the S3Client a credential renewal swaps atomically.
type boundClient struct {
	client S3Client
}

// newUploader builds a multipart uploader for one Put call, with
// Concurrency set to the caller's intra-object parallelism hint (§4.6).
// A non-positive hint falls back to config.S3Concurrency.
func newUploader(client S3Client, innerParallel int) *manager.Uploader {
	if innerParallel < 1 {
		innerParallel = config.S3Concurrency
	}
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = config.S3PartSize
		u.Concurrency = innerParallel
	})
}

// S3Adapter is the Object-Store Adapter (C5): a thin façade over the AWS
// SDK with retry, exponential backoff, and expired-credential renewal, per
// §4.5. It is grounded on the teacher's adapters.R2Repository/S3Uploader
// pair, generalized to satisfy ports.ObjectStorageClient and to swap its
// client on ExpiredToken instead of assuming a long-lived one.
type S3Adapter struct {
	bucket     string
	region     string
	credSource ports.CredentialSource
	logger     ports.Logger

	// buildClientFn constructs a bound client from credentials. It is a
	// field rather than a direct call to the package-level buildClient so
	// tests can swap in a fake client without reaching a real AWS
	// endpoint during credential renewal.
	buildClientFn func(ctx context.Context, creds ports.Credentials, region string) (*boundClient, error)

	current atomic.Pointer[boundClient]
}

var _ ports.ObjectStorageClient = (*S3Adapter)(nil)

// NewS3Adapter builds the adapter and performs the initial client setup
// from the stage's embedded credentials.
func NewS3Adapter(stage domain.StageInfo, credSource ports.CredentialSource, logger ports.Logger) (*S3Adapter, error) {
	if stage.Kind != domain.StageObjectStore {
		return nil, fmt.Errorf("S3 adapter requires an object-store stage, got %s", stage.Kind)
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	a := &S3Adapter{
		bucket:        stage.Location,
		region:        stage.Region,
		credSource:    credSource,
		logger:        logger,
		buildClientFn: buildClient,
	}

	creds := ports.Credentials{
		AWSID:    stage.Credentials["AWS_ID"],
		AWSKey:   stage.Credentials["AWS_KEY"],
		AWSToken: stage.Credentials["AWS_TOKEN"],
	}
	bound, err := a.buildClientFn(context.Background(), creds, a.region)
	if err != nil {
		return nil, err
	}
	a.current.Store(bound)

	return a, nil
}

// buildClient constructs a fresh S3 client from credentials, honoring the
// https.proxyHost/https.proxyPort environment variables per §6. The
// multipart uploader is built separately, per Put call, so its
// Concurrency can vary by phase (§4.6).
func buildClient(ctx context.Context, creds ports.Credentials, region string) (*boundClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AWSID, creds.AWSKey, creds.AWSToken)),
		awsconfig.WithRegion(region),
	}
	if proxyURL := proxyFromEnv(); proxyURL != nil {
		opts = append(opts, awsconfig.WithHTTPClient(&http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &boundClient{client: client}, nil
}

func proxyFromEnv() *url.URL {
	host := os.Getenv(config.ProxyHostEnv)
	if host == "" {
		return nil
	}
	port := os.Getenv(config.ProxyPortEnv)
	raw := host
	if port != "" {
		raw = fmt.Sprintf("%s:%s", host, port)
	}
	u, err := url.Parse("https://" + raw)
	if err != nil {
		return nil
	}
	return u
}

// clientBackoff implements retry.Backoff with exactly §6's policy:
// sleep = 1000ms * 2^min(attempt-1, 4), capped at 16s, for up to
// CLIENT_SIDE_MAX_RETRIES retries after the first attempt. It does not itself know about
// credential renewal — that lives one layer up in withRenewal, so a
// renewal never consumes part of this budget.
func clientBackoff() retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt > config.ClientSideMaxRetries {
			return 0, true
		}
		return config.BackoffDelay(attempt), false
	})
}

// withRenewal runs op, transparently rebuilding the client and re-running
// op from scratch on ExpiredToken, without counting that against op's own
// retry budget (Open Question #3 in SPEC_FULL.md §9).
func withRenewal[T any](a *S3Adapter, ctx context.Context, op func(ctx context.Context, bound *boundClient) (T, error)) (T, error) {
	for {
		bound := a.current.Load()
		result, err := op(ctx, bound)
		if err == nil {
			return result, nil
		}

		var ce *ClassifiedError
		if !errors.As(err, &ce) {
			return result, err
		}
		if ce.Kind != ErrKindExpiredCredential {
			return result, err
		}

		if a.credSource == nil {
			return result, fmt.Errorf("received ExpiredToken but no credential source is configured: %w", err)
		}
		creds, renewErr := a.credSource.Credentials(ctx)
		if renewErr != nil {
			return result, fmt.Errorf("failed to renew credentials: %w", renewErr)
		}
		newBound, buildErr := a.buildClientFn(ctx, creds, a.region)
		if buildErr != nil {
			return result, fmt.Errorf("failed to rebuild S3 client after credential renewal: %w", buildErr)
		}
		a.current.Store(newBound)
		a.logger.Info("renewed expired credentials, retrying", "bucket", a.bucket)
	}
}

// withClientRetry runs op under the counted outer retry loop (§4.5's 25
// client-side retries with exponential backoff); transient/interrupted
// errors are retried, permanent and invalid-key errors stop immediately.
func withClientRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(ctx, clientBackoff(), func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		if opErr == nil {
			return nil
		}

		ce := classifyError(opErr)
		switch ce.Kind {
		case ErrKindTransient, ErrKindInterrupted:
			return retry.RetryableError(ce)
		default:
			return ce
		}
	})
	return result, err
}

// Put uploads one object via the multipart upload manager, re-opening the
// body on every attempt so retries see a fresh stream (§4.5).
func (a *S3Adapter) Put(ctx context.Context, req ports.PutRequest) (ports.PutResult, error) {
	bucket := req.Bucket
	if bucket == "" {
		bucket = a.bucket
	}

	return withRenewal(a, ctx, func(ctx context.Context, bound *boundClient) (ports.PutResult, error) {
		return withClientRetry(ctx, func(ctx context.Context) (ports.PutResult, error) {
			body, err := req.Open()
			if err != nil {
				return ports.PutResult{}, err
			}
			defer body.Close()

			input := &s3.PutObjectInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(req.Key),
				Body:          body,
				ContentLength: aws.Int64(req.Size),
			}
			if len(req.UserMetadata) > 0 {
				input.Metadata = req.UserMetadata
			}
			if req.ContentEncoding != "" {
				input.ContentEncoding = aws.String(req.ContentEncoding)
			}

			uploader := newUploader(bound.client, req.InnerParallel)
			_, err = uploader.Upload(ctx, input)
			if err != nil {
				return ports.PutResult{}, err
			}
			return ports.PutResult{UploadedBytes: req.Size}, nil
		})
	})
}

// Get downloads one object to destDir/destName.
func (a *S3Adapter) Get(ctx context.Context, req ports.GetRequest) (ports.GetResult, error) {
	bucket := req.Bucket
	if bucket == "" {
		bucket = a.bucket
	}

	return withRenewal(a, ctx, func(ctx context.Context, bound *boundClient) (ports.GetResult, error) {
		return withClientRetry(ctx, func(ctx context.Context) (ports.GetResult, error) {
			out, err := bound.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(req.Key),
			})
			if err != nil {
				return ports.GetResult{}, err
			}
			defer out.Body.Close()

			if err := os.MkdirAll(req.DestDir, config.DirPermission); err != nil {
				return ports.GetResult{}, fmt.Errorf("failed to create destination directory: %w", err)
			}
			destPath := filepath.Join(req.DestDir, req.DestName)
			f, err := os.Create(destPath)
			if err != nil {
				return ports.GetResult{}, fmt.Errorf("failed to create %s: %w", destPath, err)
			}
			defer f.Close()

			written, err := copyWithContext(ctx, f, out.Body)
			if err != nil {
				os.Remove(destPath)
				return ports.GetResult{}, err
			}
			return ports.GetResult{BytesWritten: written, LocalPath: destPath}, nil
		})
	})
}

// List enumerates objects under a prefix.
func (a *S3Adapter) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	if bucket == "" {
		bucket = a.bucket
	}

	return withRenewal(a, ctx, func(ctx context.Context, bound *boundClient) ([]ports.ObjectInfo, error) {
		return withClientRetry(ctx, func(ctx context.Context) ([]ports.ObjectInfo, error) {
			out, err := bound.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket: aws.String(bucket),
				Prefix: aws.String(prefix),
			})
			if err != nil {
				return nil, err
			}

			infos := make([]ports.ObjectInfo, 0, len(out.Contents))
			for _, obj := range out.Contents {
				if obj.Key == nil {
					continue
				}
				info := ports.ObjectInfo{Key: *obj.Key}
				if obj.Size != nil {
					info.Size = *obj.Size
				}
				if obj.ETag != nil {
					info.ETag = trimETagQuotes(*obj.ETag)
				}
				infos = append(infos, info)
			}
			return infos, nil
		})
	})
}

// Head fetches per-object metadata, including sfc-digest and
// x-amz-matdesc user metadata. A 404 is reported as ObjectInfo{NotFound:
// true}, nil — never as an error — because §4.4 step 2 treats a missing
// object as "do not skip", not as a failure.
func (a *S3Adapter) Head(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	if bucket == "" {
		bucket = a.bucket
	}

	return withRenewal(a, ctx, func(ctx context.Context, bound *boundClient) (ports.ObjectInfo, error) {
		return withClientRetry(ctx, func(ctx context.Context) (ports.ObjectInfo, error) {
			out, err := bound.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				if isNotFound(err) {
					return ports.ObjectInfo{Key: key, NotFound: true}, nil
				}
				return ports.ObjectInfo{}, err
			}

			info := ports.ObjectInfo{Key: key, UserMetadata: out.Metadata}
			if out.ContentLength != nil {
				info.Size = *out.ContentLength
			}
			if out.ETag != nil {
				info.ETag = trimETagQuotes(*out.ETag)
			}
			return info, nil
		})
	})
}

// Shutdown releases the adapter's resources. The AWS SDK's HTTP client
// manages its own connection pool lifecycle, so there is nothing to close
// explicitly; this exists to satisfy the capability surface named in §1.
func (a *S3Adapter) Shutdown() error {
	return nil
}

func isNotFound(err error) bool {
	ce := classifyError(err)
	return ce.Code == "NotFound" || ce.Code == "NoSuchKey"
}

func trimETagQuotes(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}

// copyWithContext copies src to dst, aborting promptly on context
// cancellation — grounded on the teacher's streamer.copyWithContext.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
