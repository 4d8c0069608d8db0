package services

import (
	"sort"
	"strconv"

	"ritual/internal/core/domain"
)

// StatusRow is one rendered outcome row, decoupled from any terminal
// rendering (§4.8, §1 Non-goals: "the result-set adapter is external").
// cmd/cli owns turning these into a human-readable table.
type StatusRow struct {
	Columns []string
}

// StatusView is the Status View (C8): a declarative column table over the
// per-file outcomes, matching the original's createStatusRows/
// UploadColumns/DownloadColumns shape.
type StatusView struct{}

func NewStatusView() *StatusView {
	return &StatusView{}
}

// UploadColumns returns the header row for UPLOAD, including "encryption"
// only when showEncryption was requested.
func UploadColumns(showEncryption bool) []string {
	cols := []string{"source", "target", "source_size", "target_size", "source_compression", "target_compression"}
	if showEncryption {
		cols = append(cols, "encryption")
	}
	return append(cols, "status", "message")
}

// DownloadColumns returns the header row for DOWNLOAD.
func DownloadColumns(showEncryption bool) []string {
	cols := []string{"file", "size"}
	if showEncryption {
		cols = append(cols, "encryption")
	}
	return append(cols, "status", "message")
}

// Rows projects metadata into StatusRows per §4.8, sorting ascending by
// source/file name when sort is requested.
func (v *StatusView) Rows(verb domain.Verb, entries []*domain.FileMetadata, showEncryption, sortRows bool) []StatusRow {
	ordered := entries
	if sortRows {
		ordered = make([]*domain.FileMetadata, len(entries))
		copy(ordered, entries)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].SrcName < ordered[j].SrcName })
	}

	rows := make([]StatusRow, 0, len(ordered))
	for _, m := range ordered {
		switch verb {
		case domain.VerbUpload:
			rows = append(rows, v.uploadRow(m, showEncryption))
		case domain.VerbDownload:
			rows = append(rows, v.downloadRow(m, showEncryption))
		}
	}
	return rows
}

func (v *StatusView) uploadRow(m *domain.FileMetadata, showEncryption bool) StatusRow {
	cols := []string{
		m.SrcName,
		m.DestName,
		formatSize(m.SrcSize),
		formatSize(m.DestSize),
		domain.CompressionName(m.SrcCompression),
		domain.CompressionName(m.DestCompression),
	}
	if showEncryption {
		cols = append(cols, encryptionLabel(m, domain.VerbUpload))
	}
	cols = append(cols, m.Status.String(), m.ErrorDetails)
	return StatusRow{Columns: cols}
}

func (v *StatusView) downloadRow(m *domain.FileMetadata, showEncryption bool) StatusRow {
	cols := []string{m.SrcName, formatSize(m.DestSize)}
	if showEncryption {
		cols = append(cols, encryptionLabel(m, domain.VerbDownload))
	}
	cols = append(cols, m.Status.String(), m.ErrorDetails)
	return StatusRow{Columns: cols}
}

func encryptionLabel(m *domain.FileMetadata, verb domain.Verb) string {
	if !m.IsEncrypted {
		return ""
	}
	if verb == domain.VerbUpload {
		return "ENCRYPTED"
	}
	return "DECRYPTED"
}

func formatSize(size int64) string {
	if size < 0 {
		return ""
	}
	return strconv.FormatInt(size, 10)
}
