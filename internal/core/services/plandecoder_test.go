package services

import (
	"testing"

	"ritual/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDecoder_Upload(t *testing.T) {
	payload := []byte(`{
		"data": {
			"command": "UPLOAD",
			"src_locations": ["/tmp/a.txt"],
			"parallel": 4,
			"overwrite": false,
			"autoCompress": true,
			"sort": true,
			"stageInfo": {"locationType": "S3", "location": "my-bucket", "region": "us-west-2", "creds": {"AWS_ID": "id", "AWS_KEY": "key"}},
			"encryptionMaterial": {"keyId": "k1", "queryId": "q1", "wrappedKey": "w1", "matDesc": "{}"}
		}
	}`)

	d := NewPlanDecoder()
	plan, err := d.Decode("PUT file:///tmp/a.txt @~", payload)
	require.NoError(t, err)

	assert.Equal(t, domain.VerbUpload, plan.Verb)
	assert.Equal(t, []string{"/tmp/a.txt"}, plan.SrcLocations)
	assert.Equal(t, 4, plan.Flags.Parallel)
	assert.True(t, plan.Flags.AutoCompress)
	assert.True(t, plan.Flags.Sort)
	assert.Equal(t, domain.StageObjectStore, plan.Stage.Kind)
	assert.Equal(t, "my-bucket", plan.Stage.Location)
	require.Len(t, plan.EncryptionMaterial, 1)
	assert.Equal(t, "k1", plan.EncryptionMaterial[0].KeyID)
}

func TestPlanDecoder_DownloadArrayEncryptionMaterial(t *testing.T) {
	payload := []byte(`{
		"data": {
			"command": "DOWNLOAD",
			"src_locations": ["x/1.gz", "x/2.gz"],
			"parallel": 1,
			"localLocation": "/home/u/downloads",
			"stageInfo": {"locationType": "LOCAL_FS", "location": "/stage"},
			"encryptionMaterial": [
				{"keyId": "k1", "wrappedKey": "w1"},
				{"keyId": "k2", "wrappedKey": "w2"}
			]
		}
	}`)

	d := NewPlanDecoder()
	plan, err := d.Decode("GET @~/x file:///home/u/downloads", payload)
	require.NoError(t, err)

	assert.Equal(t, domain.VerbDownload, plan.Verb)
	assert.Equal(t, domain.StageLocalFS, plan.Stage.Kind)
	assert.Equal(t, "/home/u/downloads", plan.LocalDownloadDir)
	require.Len(t, plan.EncryptionMaterial, 2)
	assert.Equal(t, "k2", plan.EncryptionMaterial[1].KeyID)
}

func TestPlanDecoder_NoEncryptionMaterial(t *testing.T) {
	payload := []byte(`{"data": {"command": "UPLOAD", "src_locations": ["/a"], "parallel": 1}}`)

	d := NewPlanDecoder()
	plan, err := d.Decode("PUT file:///a @~", payload)
	require.NoError(t, err)
	assert.Nil(t, plan.EncryptionMaterial)
}

func TestPlanDecoder_LocalLocationMismatchRejected(t *testing.T) {
	payload := []byte(`{
		"data": {
			"command": "DOWNLOAD",
			"src_locations": ["x/1.gz"],
			"parallel": 1,
			"localLocation": "/tampered/path",
			"stageInfo": {"locationType": "S3", "location": "bucket"}
		}
	}`)

	d := NewPlanDecoder()
	_, err := d.Decode("GET @~/x file:///home/u/downloads", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocalLocationMismatch)
}

func TestPlanDecoder_NonBooleanSortRejected(t *testing.T) {
	payload := []byte(`{"data": {"command": "UPLOAD", "src_locations": ["/a"], "parallel": 1, "sort": "yes"}}`)

	d := NewPlanDecoder()
	_, err := d.Decode("PUT file:///a @~", payload)
	require.Error(t, err)
}

func TestPlanDecoder_UnknownCommandRejected(t *testing.T) {
	payload := []byte(`{"data": {"command": "LIST", "src_locations": ["/a"], "parallel": 1}}`)

	d := NewPlanDecoder()
	_, err := d.Decode("LIST @~", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyVerb)
}
