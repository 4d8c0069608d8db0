package ports

import (
	"context"
	"io"
)

// Logger is the structured logging surface every service depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ObjectInfo is the subset of a remote object's metadata the skip filter
// and the worker pool need: its size, ETag, and any user metadata the
// object carries (in particular sfc-digest and x-amz-matdesc).
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	UserMetadata map[string]string
	NotFound     bool
}

// Digest returns the sfc-digest user-metadata value, if present.
func (o ObjectInfo) Digest() (string, bool) {
	v, ok := o.UserMetadata["sfc-digest"]
	return v, ok
}

// Encrypted reports whether the object carries client-side envelope
// encryption metadata (x-amz-matdesc), per §4.4 step 3.
func (o ObjectInfo) Encrypted() bool {
	_, ok := o.UserMetadata["x-amz-matdesc"]
	return ok
}

// PutRequest describes one object to write. Open must return a fresh,
// independently readable body on every call so the retry loop in the
// adapter can re-issue the request after a transient failure.
type PutRequest struct {
	Bucket          string
	Key             string
	Open            func() (io.ReadCloser, error)
	Size            int64
	UserMetadata    map[string]string
	ContentEncoding string

	// InnerParallel is the intra-object multipart concurrency hint (§4.6):
	// the big-file phase sets this to the plan's `parallel` so a single
	// large upload's parts go out concurrently, while the small-file phase
	// sets it to 1 so the storage client never parallelizes parts within
	// one of the many concurrently-dispatched small files. A value below 1
	// leaves the adapter's own default in place.
	InnerParallel int
}

// PutResult reports what was actually written.
type PutResult struct {
	UploadedBytes int64
}

// GetRequest describes one object to read down to local disk.
type GetRequest struct {
	Bucket   string
	Key      string
	DestDir  string
	DestName string
}

// GetResult reports what was actually written to disk.
type GetResult struct {
	BytesWritten int64
	LocalPath    string
}

// ObjectStorageClient is the capability surface the core depends on for
// moving bytes to and from a stage, whether that stage is an
// S3-compatible bucket or a local filesystem directory. It is the
// "external client" named in §1: the core only ever calls through this
// interface, never AWS SDK types directly.
type ObjectStorageClient interface {
	Put(ctx context.Context, req PutRequest) (PutResult, error)
	Get(ctx context.Context, req GetRequest) (GetResult, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Shutdown() error
}

// Credentials is the decoded form of a TransferPlan's stage credentials map.
type Credentials struct {
	AWSID    string
	AWSKey   string
	AWSToken string
}

// LocalPathResolver is implemented by ObjectStorageClient adapters backed
// directly by the local filesystem (a LOCAL_FS stage). The skip filter
// uses it to hash the destination file in place, per §4.4's "For LOCAL_FS
// stage, the same contract applies using direct file lengths and SHA-256
// of both sides" — there is no stored digest or ETag to compare against.
type LocalPathResolver interface {
	ResolvePath(bucket, key string) string
}

// CredentialSource re-fetches credentials for the same command, standing
// in for "the external command parser" §4.5/§6 describes the adapter
// calling on ExpiredToken. Implementations outside the core re-issue
// whatever produced the original TransferPlan.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}
