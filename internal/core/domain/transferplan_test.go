package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestTransferPlan_Validate(t *testing.T) {
	t.Run("upload with no sources", func(t *testing.T) {
		p := &TransferPlan{Verb: VerbUpload, Flags: Flags{Parallel: 10}}
		if err := p.Validate(); !errors.Is(err, ErrNoSources) {
			t.Fatalf("expected ErrNoSources, got %v", err)
		}
	})

	t.Run("upload with stream source is valid", func(t *testing.T) {
		p := &TransferPlan{
			Verb:         VerbUpload,
			StreamSource: &StreamSource{Size: 10, DestName: "a"},
			Flags:        Flags{Parallel: 10},
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("download without local dir", func(t *testing.T) {
		p := &TransferPlan{Verb: VerbDownload, Flags: Flags{Parallel: 10}}
		if err := p.Validate(); !errors.Is(err, ErrDownloadNeedsDir) {
			t.Fatalf("expected ErrDownloadNeedsDir, got %v", err)
		}
	})

	t.Run("non positive parallel", func(t *testing.T) {
		p := &TransferPlan{Verb: VerbUpload, SrcLocations: []string{"/a"}, Flags: Flags{Parallel: 0}}
		if err := p.Validate(); !errors.Is(err, ErrParallelNonPositive) {
			t.Fatalf("expected ErrParallelNonPositive, got %v", err)
		}
	})

	t.Run("unknown verb", func(t *testing.T) {
		p := &TransferPlan{Verb: "DELETE", Flags: Flags{Parallel: 1}}
		err := p.Validate()
		if err == nil || !strings.Contains(err.Error(), "verb") {
			t.Fatalf("expected verb error, got %v", err)
		}
	})
}
