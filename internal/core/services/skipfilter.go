package services

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ritual/internal/adapters/streamer"
	"ritual/internal/config"
	"ritual/internal/core/domain"
	"ritual/internal/core/ports"
)

// SkipCandidate pairs a plan entry with the local file backing it, so the
// filter can re-hash the source under the same compression pipeline that
// will eventually be used to transfer it.
type SkipCandidate struct {
	Meta      *domain.FileMetadata
	LocalPath string
}

// SkipFilter implements §4.4: size gate, head, then digest/ETag/direct-hash
// comparison against a single prefix-bounded listing of the remote stage.
type SkipFilter struct {
	client ports.ObjectStorageClient
	logger ports.Logger
}

func NewSkipFilter(client ports.ObjectStorageClient, logger ports.Logger) *SkipFilter {
	return &SkipFilter{client: client, logger: logger}
}

// Apply marks matching candidates SKIPPED. resolver is non-nil only for a
// LOCAL_FS stage, which has no stored digest or ETag to compare against and
// instead hashes both sides directly.
func (f *SkipFilter) Apply(ctx context.Context, bucket string, candidates []SkipCandidate, resolver ports.LocalPathResolver) error {
	live := make([]SkipCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Meta.Status.Terminal() || c.Meta.DestName == "" {
			continue
		}
		live = append(live, c)
	}
	if len(live) == 0 {
		return nil
	}

	byDestName := make(map[string]*SkipCandidate, len(live))
	for i := range live {
		c := &live[i]
		if existing, dup := byDestName[c.Meta.DestName]; dup {
			if err := existing.Meta.SetStatus(domain.StatusCollision, fmt.Sprintf("duplicate destination name %s", c.Meta.DestName)); err != nil {
				return err
			}
			continue
		}
		byDestName[c.Meta.DestName] = c
	}

	names := make([]string, 0, len(byDestName))
	for name := range byDestName {
		names = append(names, name)
	}
	sort.Strings(names)
	prefix := commonPrefix(names[0], names[len(names)-1])

	remote, err := f.client.List(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrListFiles, err)
	}

	for _, obj := range remote {
		candidate, ok := byDestName[filepath.Base(obj.Key)]
		if !ok || candidate.Meta.Status.Terminal() {
			continue
		}

		skip, reason, err := f.evaluate(ctx, bucket, obj, *candidate, resolver)
		if err != nil {
			return err
		}
		if skip {
			if err := candidate.Meta.SetStatus(domain.StatusSkipped, reason); err != nil {
				return err
			}
		}
	}

	return nil
}

func (f *SkipFilter) evaluate(ctx context.Context, bucket string, obj ports.ObjectInfo, candidate SkipCandidate, resolver ports.LocalPathResolver) (bool, string, error) {
	meta := candidate.Meta

	if !meta.RequireCompress && absInt64(obj.Size-meta.SrcSize) > config.SizeToleranceBytes {
		return false, "", nil
	}

	head, err := f.client.Head(ctx, bucket, obj.Key)
	if err != nil {
		return false, "", fmt.Errorf("head %s: %w", obj.Key, err)
	}
	if head.NotFound {
		return false, "", nil
	}

	if resolver != nil {
		return f.evaluateLocalFS(resolver, bucket, obj.Key, candidate)
	}

	if digest, ok := head.Digest(); ok {
		localDigest, err := f.localDigest(ctx, candidate.LocalPath, meta.RequireCompress)
		if err != nil {
			return false, "", err
		}
		return digest == localDigest, "content digest matches remote object", nil
	}

	if !head.Encrypted() {
		etag := trimQuotes(head.ETag)
		if strings.Contains(etag, "-") {
			// Multipart ETag is not an MD5 of the object body; never skip
			// on this path, matching §4.4 step 3's "encrypted, no digest" caution.
			return false, "", nil
		}
		localMD5, err := f.localMD5(candidate.LocalPath)
		if err != nil {
			return false, "", err
		}
		return strings.EqualFold(localMD5, etag), "MD5 matches remote ETag", nil
	}

	return false, "", nil
}

func (f *SkipFilter) evaluateLocalFS(resolver ports.LocalPathResolver, bucket, key string, candidate SkipCandidate) (bool, string, error) {
	remotePath := resolver.ResolvePath(bucket, key)

	remoteDigest, err := f.sha256File(remotePath)
	if err != nil {
		return false, "", err
	}
	localDigest, err := f.sha256File(candidate.LocalPath)
	if err != nil {
		return false, "", err
	}
	return remoteDigest == localDigest, "SHA-256 matches destination file", nil
}

func (f *SkipFilter) localDigest(ctx context.Context, path string, requireCompress bool) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for digest comparison: %w", path, err)
	}
	defer file.Close()

	staged, err := streamer.Stage(ctx, file, requireCompress, true)
	if err != nil {
		return "", err
	}
	defer staged.Release()

	digest, _ := staged.Base64Digest()
	return digest, nil
}

func (f *SkipFilter) localMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for digest comparison: %w", path, err)
	}
	defer file.Close()

	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (f *SkipFilter) sha256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for digest comparison: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"")
}
