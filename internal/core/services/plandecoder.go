package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ritual/internal/core/domain"
)

// ErrLocalLocationMismatch is returned when the decoded plan's
// localLocation doesn't match the file:// argument parsed from the
// original command text, defending against a tampering middleman (§6).
var ErrLocalLocationMismatch = errors.New("localLocation does not match the command's file:// argument")

type rawStageInfo struct {
	LocationType string            `json:"locationType"`
	Location     string            `json:"location"`
	Region       string            `json:"region"`
	Creds        map[string]string `json:"creds"`
}

type rawEncryptionMaterial struct {
	KeyID       string `json:"keyId"`
	QueryID     string `json:"queryId"`
	WrappedKey  string `json:"wrappedKey"`
	MatDescJSON string `json:"matDesc"`
}

type rawPlan struct {
	Command                       string          `json:"command"`
	SrcLocations                  []string        `json:"src_locations"`
	Parallel                      int             `json:"parallel"`
	Overwrite                     bool            `json:"overwrite"`
	AutoCompress                  bool            `json:"autoCompress"`
	SourceCompression             string          `json:"sourceCompression"`
	ClientShowEncryptionParameter bool            `json:"clientShowEncryptionParameter"`
	LocalLocation                 string          `json:"localLocation"`
	Sort                          bool            `json:"sort"`
	StageInfo                     rawStageInfo    `json:"stageInfo"`
	EncryptionMaterial            json.RawMessage `json:"encryptionMaterial"`
}

type wireEnvelope struct {
	Data rawPlan `json:"data"`
}

// PlanDecoder is the Command Plan Decoder (C9): it turns the
// executeCommand JSON contract into a domain.TransferPlan. Actually
// invoking the command parser stays an external capability (§1); this
// only owns the decode and its anti-tampering check.
type PlanDecoder struct{}

func NewPlanDecoder() *PlanDecoder {
	return &PlanDecoder{}
}

// Decode parses payload (the JSON the command parser returned) into a
// TransferPlan. commandText is the original verb text the caller sent;
// for DOWNLOAD it must carry the same file:// argument as data.localLocation.
func (d *PlanDecoder) Decode(commandText string, payload []byte) (*domain.TransferPlan, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode transfer plan: %w", err)
	}
	raw := env.Data

	plan := &domain.TransferPlan{
		SrcLocations: raw.SrcLocations,
		Flags: domain.Flags{
			AutoCompress:          raw.AutoCompress,
			Overwrite:             raw.Overwrite,
			Parallel:              raw.Parallel,
			ShowEncryption:        raw.ClientShowEncryptionParameter,
			SourceCompressionHint: raw.SourceCompression,
			Sort:                  raw.Sort,
		},
		LocalDownloadDir: raw.LocalLocation,
	}

	switch strings.ToUpper(raw.Command) {
	case "UPLOAD":
		plan.Verb = domain.VerbUpload
	case "DOWNLOAD":
		plan.Verb = domain.VerbDownload
		if err := checkLocalLocation(commandText, raw.LocalLocation); err != nil {
			return nil, err
		}
	default:
		return nil, domain.ErrEmptyVerb
	}

	plan.Stage = domain.StageInfo{
		Kind:        stageKind(raw.StageInfo.LocationType),
		Location:    raw.StageInfo.Location,
		Region:      raw.StageInfo.Region,
		Credentials: raw.StageInfo.Creds,
	}

	mats, err := decodeEncryptionMaterial(raw.EncryptionMaterial)
	if err != nil {
		return nil, err
	}
	plan.EncryptionMaterial = mats

	return plan, nil
}

func stageKind(locationType string) domain.StageKind {
	if strings.EqualFold(locationType, "LOCAL_FS") {
		return domain.StageLocalFS
	}
	return domain.StageObjectStore
}

// checkLocalLocation re-parses the file:// argument from the original
// command text and asserts it matches localLocation, per §6's defense
// against a tampering middleman. A command with no file:// argument has
// nothing to check against.
func checkLocalLocation(commandText, localLocation string) error {
	idx := strings.Index(commandText, "file://")
	if idx < 0 {
		return nil
	}
	rest := commandText[idx+len("file://"):]
	if end := strings.IndexAny(rest, " \t\n'\""); end >= 0 {
		rest = rest[:end]
	}
	if rest != localLocation {
		return fmt.Errorf("%w: command=%q, plan=%q", ErrLocalLocationMismatch, rest, localLocation)
	}
	return nil
}

// decodeEncryptionMaterial accepts either a single object (UPLOAD) or an
// array (DOWNLOAD) per §6, normalizing both into a slice. A null/absent
// value yields no encryption material.
func decodeEncryptionMaterial(raw json.RawMessage) ([]domain.EncryptionMaterial, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []rawEncryptionMaterial
	if err := json.Unmarshal(raw, &list); err == nil {
		return toEncryptionMaterials(list), nil
	}

	var single rawEncryptionMaterial
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode encryptionMaterial: %w", err)
	}
	return toEncryptionMaterials([]rawEncryptionMaterial{single}), nil
}

func toEncryptionMaterials(raw []rawEncryptionMaterial) []domain.EncryptionMaterial {
	out := make([]domain.EncryptionMaterial, len(raw))
	for i, r := range raw {
		out[i] = domain.EncryptionMaterial{
			KeyID:       r.KeyID,
			QueryID:     r.QueryID,
			WrappedKey:  r.WrappedKey,
			MatDescJSON: r.MatDescJSON,
		}
	}
	return out
}
