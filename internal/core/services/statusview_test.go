package services

import (
	"testing"

	"ritual/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusView_UploadColumns(t *testing.T) {
	assert.Equal(t, []string{"source", "target", "source_size", "target_size", "source_compression", "target_compression", "status", "message"}, UploadColumns(false))
	assert.Equal(t, []string{"source", "target", "source_size", "target_size", "source_compression", "target_compression", "encryption", "status", "message"}, UploadColumns(true))
}

func TestStatusView_DownloadColumns(t *testing.T) {
	assert.Equal(t, []string{"file", "size", "status", "message"}, DownloadColumns(false))
	assert.Equal(t, []string{"file", "size", "encryption", "status", "message"}, DownloadColumns(true))
}

func TestStatusView_UploadRows(t *testing.T) {
	m := domain.NewFileMetadata("/tmp/a.txt", 5)
	m.DestName = "a.txt.gz"
	m.DestCompression = domain.Gzip
	require.NoError(t, m.SetStatus(domain.StatusUploaded, ""))
	m.DestSize = 30

	view := NewStatusView()
	rows := view.Rows(domain.VerbUpload, []*domain.FileMetadata{m}, false, false)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"/tmp/a.txt", "a.txt.gz", "5", "30", "NONE", "GZIP", "UPLOADED", ""}, rows[0].Columns)
}

func TestStatusView_EncryptionColumn(t *testing.T) {
	m := domain.NewFileMetadata("/tmp/a.txt", 5)
	m.DestName = "a.txt"
	m.IsEncrypted = true
	require.NoError(t, m.SetStatus(domain.StatusUploaded, ""))

	view := NewStatusView()
	rows := view.Rows(domain.VerbUpload, []*domain.FileMetadata{m}, true, false)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Columns, "ENCRYPTED")
}

func TestStatusView_SortByName(t *testing.T) {
	b := domain.NewFileMetadata("/tmp/b.txt", 1)
	a := domain.NewFileMetadata("/tmp/a.txt", 1)
	require.NoError(t, a.SetStatus(domain.StatusUploaded, ""))
	require.NoError(t, b.SetStatus(domain.StatusUploaded, ""))

	view := NewStatusView()
	rows := view.Rows(domain.VerbUpload, []*domain.FileMetadata{b, a}, false, true)
	require.Len(t, rows, 2)
	assert.Equal(t, "/tmp/a.txt", rows[0].Columns[0])
	assert.Equal(t, "/tmp/b.txt", rows[1].Columns[0])
}

func TestStatusView_DownloadRows(t *testing.T) {
	m := domain.NewFileMetadata("x/1.gz", 0)
	require.NoError(t, m.SetStatus(domain.StatusDownloaded, ""))
	m.DestSize = 100

	view := NewStatusView()
	rows := view.Rows(domain.VerbDownload, []*domain.FileMetadata{m}, false, false)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"x/1.gz", "100", "DOWNLOADED", ""}, rows[0].Columns)
}
