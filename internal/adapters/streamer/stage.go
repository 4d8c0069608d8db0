package streamer

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ritual/internal/config"
	"ritual/internal/core/domain"
)

var (
	ErrStageContextNil = errors.New("context cannot be nil")
	ErrStageSourceNil  = errors.New("source reader cannot be nil")
)

const stagingChunkSize = 64 * 1024

// spillBuffer accumulates bytes in memory up to config.MaxBufferBytes, then
// spills to a temp file. Open returns a fresh reader on every call so a
// retry can re-read the staged bytes from the start.
type spillBuffer struct {
	mem     *bytes.Buffer
	file    *os.File
	spilled bool
	size    int64
}

func newSpillBuffer() *spillBuffer {
	return &spillBuffer{mem: &bytes.Buffer{}}
}

func (s *spillBuffer) Write(p []byte) (int, error) {
	if !s.spilled && int64(s.mem.Len())+int64(len(p)) > config.MaxBufferBytes {
		if err := s.spillToDisk(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if s.spilled {
		n, err = s.file.Write(p)
	} else {
		n, err = s.mem.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *spillBuffer) spillToDisk() error {
	dir := filepath.Join(config.RootPath, config.TmpDir)
	if err := os.MkdirAll(dir, config.DirPermission); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "stage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create spill file: %w", err)
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to spill buffered bytes: %w", err)
	}
	s.file = f
	s.spilled = true
	s.mem = nil
	return nil
}

func (s *spillBuffer) Open() (io.ReadCloser, error) {
	if s.spilled {
		f, err := os.Open(s.file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to reopen spill file: %w", err)
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(s.mem.Bytes())), nil
}

func (s *spillBuffer) Release() error {
	if !s.spilled {
		return nil
	}
	name := s.file.Name()
	if err := s.file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

// stagedStream is the StagedStream implementation produced by Stage.
type stagedStream struct {
	buf       *spillBuffer
	digest    string
	hasDigest bool
}

var _ domain.StagedStream = (*stagedStream)(nil)

func (s *stagedStream) ByteCount() int64 { return s.buf.size }

func (s *stagedStream) Base64Digest() (string, bool) { return s.digest, s.hasDigest }

func (s *stagedStream) Open() (io.ReadCloser, error) { return s.buf.Open() }

func (s *stagedStream) Release() error { return s.buf.Release() }

// Stage buffers src per §4.3: up to MAX_BUFFER in memory, spilling to a
// temp file beyond that, optionally gzipping and/or digesting along the
// way. The returned stream owns its backing storage; callers must call
// Release on every exit path.
func Stage(ctx context.Context, src io.Reader, requireCompress, requireDigest bool) (domain.StagedStream, error) {
	if ctx == nil {
		return nil, ErrStageContextNil
	}
	if src == nil {
		return nil, ErrStageSourceNil
	}

	buf := newSpillBuffer()
	hasher := sha256.New()

	var dest io.Writer = buf
	if requireDigest {
		dest = io.MultiWriter(buf, hasher)
	}

	if requireCompress {
		gz, err := gzip.NewWriterLevel(dest, gzip.DefaultCompression)
		if err != nil {
			buf.Release()
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		if err := copyStagingChunks(ctx, gz, src); err != nil {
			gz.Close()
			buf.Release()
			return nil, err
		}
		if err := gz.Close(); err != nil {
			buf.Release()
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	} else if err := copyStagingChunks(ctx, dest, src); err != nil {
		buf.Release()
		return nil, err
	}

	stream := &stagedStream{buf: buf}
	if requireDigest {
		stream.digest = base64.StdEncoding.EncodeToString(hasher.Sum(nil))
		stream.hasDigest = true
	}
	return stream, nil
}

// copyStagingChunks copies src to dst in fixed-size chunks, checking ctx
// between reads. When dst is a *gzip.Writer it flushes after every chunk:
// Go's gzip has no sync-flush mode, so a Flush per chunk is how the
// original's sync-flush behavior is approximated.
func copyStagingChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	chunk := make([]byte, stagingChunkSize)
	flusher, _ := dst.(*gzip.Writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := src.Read(chunk)
		if n > 0 {
			if _, err := dst.Write(chunk[:n]); err != nil {
				return fmt.Errorf("failed to write staged bytes: %w", err)
			}
			if flusher != nil {
				if err := flusher.Flush(); err != nil {
					return fmt.Errorf("failed to flush staged bytes: %w", err)
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read source: %w", readErr)
		}
	}
}
