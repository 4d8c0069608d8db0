package services

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ritual/internal/core/domain"
)

// Classifier decides each UPLOAD file's compression fields per §4.2:
// an explicit hint wins, otherwise content is probed (MIME sniff, then
// the Parquet magic number, then the filename extension).
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

const parquetMagic = "PAR1"

// ClassifyFile fills srcCompression/destCompression/requireCompress/destName
// on meta for a single UPLOAD source file. hint is the plan's
// sourceCompressionHint ("" = AUTO, "NONE" = none, else a named codec).
func (c *Classifier) ClassifyFile(meta *domain.FileMetadata, srcPath string, hint string, autoCompress bool) error {
	if meta.Status.Terminal() {
		return nil
	}

	base := filepath.Base(srcPath)
	upperHint := strings.ToUpper(strings.TrimSpace(hint))

	switch {
	case upperHint == "NONE":
		return c.applyUncompressed(meta, base, autoCompress)

	case upperHint != "" && upperHint != "AUTO":
		codec, ok := domain.LookupCodecByName(upperHint)
		if !ok || !codec.Supported {
			return &domain.CompressionNotSupportedError{Codec: upperHint}
		}
		return c.applyDetected(meta, base, codec)

	default:
		codec, detected, err := c.probe(srcPath, base)
		if err != nil {
			return err
		}
		if !detected {
			return c.applyUncompressed(meta, base, autoCompress)
		}
		if !codec.Supported {
			return &domain.CompressionNotSupportedError{Codec: codec.Name}
		}
		return c.applyDetected(meta, base, codec)
	}
}

// ClassifyStream fills the compression fields for an in-memory stream
// UPLOAD, per §4.2's stream-source rule.
func (c *Classifier) ClassifyStream(meta *domain.FileMetadata, destName string, compressRequested bool) {
	meta.RequireCompress = compressRequested
	if compressRequested {
		meta.DestCompression = domain.Gzip
		if !strings.HasSuffix(destName, domain.Gzip.Extension) {
			destName += domain.Gzip.Extension
		}
	}
	meta.DestName = destName
}

func (c *Classifier) applyDetected(meta *domain.FileMetadata, base string, codec domain.CompressionCodec) error {
	meta.SrcCompression = codec
	meta.DestCompression = codec
	meta.RequireCompress = false
	meta.DestName = base
	return nil
}

func (c *Classifier) applyUncompressed(meta *domain.FileMetadata, base string, autoCompress bool) error {
	if autoCompress {
		meta.RequireCompress = true
		meta.DestCompression = domain.Gzip
		meta.DestName = base + domain.Gzip.Extension
		return nil
	}
	meta.RequireCompress = false
	meta.SrcCompression = domain.None
	meta.DestCompression = domain.None
	meta.DestName = base
	return nil
}

// probe implements the AUTO detection order: content-type sniff, then the
// 4-byte Parquet magic number, then the filename extension.
func (c *Classifier) probe(srcPath, base string) (domain.CompressionCodec, bool, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		// Nonexistent/unreadable files are handled by metadata init
		// (NONEXIST/DIRECTORY); the classifier only needs to not crash here.
		return domain.CompressionCodec{}, false, nil
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	header = header[:n]

	if mimeType := http.DetectContentType(header); mimeType != "" {
		subtype := mimeType
		if idx := strings.IndexByte(mimeType, '/'); idx >= 0 {
			subtype = mimeType[idx+1:]
		}
		if idx := strings.IndexByte(subtype, ';'); idx >= 0 {
			subtype = subtype[:idx]
		}
		if codec, ok := domain.LookupCodecByMimeSubtype(subtype); ok {
			return codec, true, nil
		}
	}

	if len(header) >= 4 && string(header[:4]) == parquetMagic {
		return domain.Parquet, true, nil
	}

	ext := filepath.Ext(base)
	if codec, ok := domain.LookupCodecByExtension(ext); ok {
		return codec, true, nil
	}

	return domain.CompressionCodec{}, false, nil
}
