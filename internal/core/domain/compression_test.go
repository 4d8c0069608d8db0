package domain

import "testing"

func TestLookupCodecByName(t *testing.T) {
	t.Run("known codec case insensitive", func(t *testing.T) {
		codec, ok := LookupCodecByName("gzip")
		if !ok || codec.Name != "GZIP" {
			t.Fatalf("expected GZIP, got %+v ok=%v", codec, ok)
		}
	})

	t.Run("unknown codec", func(t *testing.T) {
		_, ok := LookupCodecByName("snappy")
		if ok {
			t.Fatal("expected snappy to be unrecognized")
		}
	})

	t.Run("unsupported codec still resolves", func(t *testing.T) {
		codec, ok := LookupCodecByName("xz")
		if !ok {
			t.Fatal("expected xz to resolve")
		}
		if codec.Supported {
			t.Fatal("expected xz to be unsupported")
		}
	})
}

func TestLookupCodecByExtension(t *testing.T) {
	codec, ok := LookupCodecByExtension(".GZ")
	if !ok || codec.Name != "GZIP" {
		t.Fatalf("expected GZIP for .GZ, got %+v ok=%v", codec, ok)
	}

	if _, ok := LookupCodecByExtension(".txt"); ok {
		t.Fatal("expected .txt to not match any codec")
	}
}

func TestLookupCodecByMimeSubtype(t *testing.T) {
	codec, ok := LookupCodecByMimeSubtype("x-gzip")
	if !ok || codec.Name != "GZIP" {
		t.Fatalf("expected GZIP, got %+v ok=%v", codec, ok)
	}
}
