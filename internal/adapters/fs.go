package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ritual/internal/config"
	"ritual/internal/core/ports"
)

// LocalFSAdapter implements ports.ObjectStorageClient against a LOCAL_FS
// stage: a plain directory on disk. It is grounded on the teacher's
// FSRepository (os.Root-scoped filesystem access) but satisfies the same
// put/get/list/head/shutdown contract the S3 adapter does, so the
// orchestrator and worker pool never need to know which kind of stage
// they are talking to.
type LocalFSAdapter struct {
	root *os.Root
}

var (
	_ ports.ObjectStorageClient = (*LocalFSAdapter)(nil)
	_ ports.LocalPathResolver   = (*LocalFSAdapter)(nil)
)

// NewLocalFSAdapter opens basePath as the stage's root directory.
func NewLocalFSAdapter(basePath string) (*LocalFSAdapter, error) {
	if err := os.MkdirAll(basePath, config.DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create stage directory %s: %w", basePath, err)
	}
	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open root directory %s: %w", basePath, err)
	}
	return &LocalFSAdapter{root: root}, nil
}

// Put copies the staged body to key under the stage root.
func (f *LocalFSAdapter) Put(ctx context.Context, req ports.PutRequest) (ports.PutResult, error) {
	dir := filepath.Dir(req.Key)
	if dir != "." {
		if err := f.root.MkdirAll(dir, config.DirPermission); err != nil {
			return ports.PutResult{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	body, err := req.Open()
	if err != nil {
		return ports.PutResult{}, err
	}
	defer body.Close()

	file, err := f.root.Create(req.Key)
	if err != nil {
		return ports.PutResult{}, fmt.Errorf("failed to create file %s: %w", req.Key, err)
	}
	defer file.Close()

	written, err := copyWithContext(ctx, file, body)
	if err != nil {
		return ports.PutResult{}, fmt.Errorf("failed to write file %s: %w", req.Key, err)
	}

	return ports.PutResult{UploadedBytes: written}, nil
}

// Get copies key from the stage root to destDir/destName.
func (f *LocalFSAdapter) Get(ctx context.Context, req ports.GetRequest) (ports.GetResult, error) {
	src, err := f.root.Open(req.Key)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.GetResult{}, fmt.Errorf("key not found: %s", req.Key)
		}
		return ports.GetResult{}, fmt.Errorf("failed to open %s: %w", req.Key, err)
	}
	defer src.Close()

	if err := os.MkdirAll(req.DestDir, config.DirPermission); err != nil {
		return ports.GetResult{}, fmt.Errorf("failed to create destination directory: %w", err)
	}
	destPath := filepath.Join(req.DestDir, req.DestName)
	dst, err := os.Create(destPath)
	if err != nil {
		return ports.GetResult{}, fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer dst.Close()

	written, err := copyWithContext(ctx, dst, src)
	if err != nil {
		os.Remove(destPath)
		return ports.GetResult{}, err
	}

	return ports.GetResult{BytesWritten: written, LocalPath: destPath}, nil
}

// List returns the regular files in prefix's own directory whose key starts
// with prefix. Subdirectories are not descended.
func (f *LocalFSAdapter) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	dir := filepath.Dir(prefix)
	if dir == "." && prefix == "" {
		dir = "."
	}

	entries, err := f.readDirSafe(dir)
	if err != nil {
		return nil, err
	}

	var infos []ports.ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := filepath.ToSlash(filepath.Join(dir, entry.Name()))
		if prefix != "" && !hasPrefixPath(key, prefix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ports.ObjectInfo{Key: key, Size: fi.Size()})
	}
	return infos, nil
}

// Head stats a single file; a missing file is NotFound, not an error.
func (f *LocalFSAdapter) Head(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	file, err := f.root.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.ObjectInfo{Key: key, NotFound: true}, nil
		}
		return ports.ObjectInfo{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ports.ObjectInfo{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return ports.ObjectInfo{Key: key, Size: info.Size()}, nil
}

// ResolvePath returns the real filesystem path for key, letting the skip
// filter hash the destination file directly (§4.4's LOCAL_FS branch).
func (f *LocalFSAdapter) ResolvePath(bucket, key string) string {
	return filepath.Join(f.root.Name(), filepath.FromSlash(key))
}

// Shutdown releases the root filesystem handle.
func (f *LocalFSAdapter) Shutdown() error {
	return f.root.Close()
}

func (f *LocalFSAdapter) readDirSafe(dir string) ([]os.DirEntry, error) {
	file, err := f.root.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	defer file.Close()
	return file.ReadDir(0)
}

func hasPrefixPath(key, prefix string) bool {
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}
