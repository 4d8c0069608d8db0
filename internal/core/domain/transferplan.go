package domain

import (
	"errors"
	"io"
)

// Verb is the command the agent was asked to run.
type Verb string

const (
	VerbUpload   Verb = "UPLOAD"
	VerbDownload Verb = "DOWNLOAD"
)

// StageKind distinguishes a filesystem staging area from an object-store one.
type StageKind string

const (
	StageLocalFS     StageKind = "LOCAL_FS"
	StageObjectStore StageKind = "S3"
)

// StageInfo describes where files are pushed to or pulled from.
type StageInfo struct {
	Kind        StageKind
	Location    string // bucket name, or local directory for LOCAL_FS
	Region      string
	Credentials map[string]string // AWS_ID, AWS_KEY, optional AWS_TOKEN
}

// EncryptionMaterial is the opaque per-file key-wrapping descriptor the
// object-storage client uses for client-side envelope encryption. The
// core never inspects its fields beyond presence/absence.
type EncryptionMaterial struct {
	KeyID        string
	QueryID      string
	WrappedKey   string
	MatDescJSON  string // opaque x-amz-matdesc payload, carried through verbatim
}

// StreamSource describes an in-memory byte-stream UPLOAD, used instead of
// SrcLocations when the caller hands the agent a stream rather than files
// on disk.
type StreamSource struct {
	Size              int64
	DestName          string
	CompressRequested bool
	Reader            io.Reader
}

// Flags carries the plan-wide switches from the command parser's JSON contract.
type Flags struct {
	AutoCompress          bool
	Overwrite             bool
	Parallel              int
	ShowEncryption        bool
	SourceCompressionHint string // "" = AUTO, "NONE" = none, else a named codec
	Sort                  bool
}

// TransferPlan is the fully decoded command handed to the orchestrator.
type TransferPlan struct {
	Verb                Verb
	SrcLocations        []string
	Stage               StageInfo
	Flags               Flags
	LocalDownloadDir    string // DOWNLOAD only
	StreamSource        *StreamSource
	EncryptionMaterial  []EncryptionMaterial // single entry for UPLOAD, one per file for DOWNLOAD
}

var (
	ErrEmptyVerb           = errors.New("transfer plan verb cannot be empty")
	ErrNoSources           = errors.New("transfer plan has no source locations or stream source")
	ErrDownloadNeedsDir    = errors.New("download plan requires a local download directory")
	ErrParallelNonPositive = errors.New("parallel must be at least 1")
)

// Validate checks the structural invariants the orchestrator depends on
// before it starts classifying or dispatching work.
func (p *TransferPlan) Validate() error {
	switch p.Verb {
	case VerbUpload:
		if len(p.SrcLocations) == 0 && p.StreamSource == nil {
			return ErrNoSources
		}
	case VerbDownload:
		if p.LocalDownloadDir == "" {
			return ErrDownloadNeedsDir
		}
	default:
		return ErrEmptyVerb
	}
	if p.Flags.Parallel < 1 {
		return ErrParallelNonPositive
	}
	return nil
}
