package domain

import "io"

// StagedStream is the byte sequence that will actually be sent to (or was
// received from) the remote store, plus its length and, when requested,
// the base64 SHA-256 digest of those bytes. It is backed by memory up to
// a threshold and spills to a temporary file beyond that; Open yields a
// fresh, restartable reader on every call so retries can re-read it.
// Release must be called exactly once, on every exit path, by whichever
// worker produced the stream.
type StagedStream interface {
	ByteCount() int64
	Base64Digest() (digest string, ok bool)
	Open() (io.ReadCloser, error)
	Release() error
}
