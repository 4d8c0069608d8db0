package domain

import "strings"

// CompressionCodec mirrors one compression format the agent knows about.
// Name is the wire-level codec identifier used in sourceCompression hints
// and in the Content-Encoding header; Extension and MimeType drive
// detection; Supported marks whether the agent can actually apply or
// recognize the codec end to end.
type CompressionCodec struct {
	Name      string
	Extension string
	MimeType  string
	Supported bool
}

// None is the zero-value codec: no compression applied or detected.
var None = CompressionCodec{Name: "NONE", Extension: "", MimeType: "", Supported: true}

var (
	Gzip       = CompressionCodec{Name: "GZIP", Extension: ".gz", MimeType: "application/x-gzip", Supported: true}
	Deflate    = CompressionCodec{Name: "DEFLATE", Extension: ".deflate", MimeType: "application/zlib", Supported: true}
	RawDeflate = CompressionCodec{Name: "RAW_DEFLATE", Extension: ".raw_deflate", MimeType: "application/x-raw-deflate", Supported: true}
	Bzip2      = CompressionCodec{Name: "BZIP2", Extension: ".bz2", MimeType: "application/x-bzip2", Supported: true}
	Lzip       = CompressionCodec{Name: "LZIP", Extension: ".lz", MimeType: "application/x-lzip", Supported: false}
	Lzma       = CompressionCodec{Name: "LZMA", Extension: ".lzma", MimeType: "application/x-lzma", Supported: false}
	Lzo        = CompressionCodec{Name: "LZO", Extension: ".lzo", MimeType: "application/x-lzop", Supported: false}
	Xz         = CompressionCodec{Name: "XZ", Extension: ".xz", MimeType: "application/x-xz", Supported: false}
	Compress   = CompressionCodec{Name: "COMPRESS", Extension: ".Z", MimeType: "application/x-compress", Supported: false}
	Parquet    = CompressionCodec{Name: "PARQUET", Extension: ".parquet", MimeType: "snowflake/parquet", Supported: true}
)

// codecTable lists every codec the classifier knows how to recognize,
// supported or not. Order matters only for extension lookups where more
// than one codec could share a prefix; none currently do.
var codecTable = []CompressionCodec{
	Gzip, Deflate, RawDeflate, Bzip2, Lzip, Lzma, Lzo, Xz, Compress, Parquet,
}

// LookupCodecByName resolves a named codec hint (sourceCompressionHint)
// case-insensitively. ok is false for "none"/"" or an unrecognized name;
// callers must special-case NONE/AUTO themselves.
func LookupCodecByName(name string) (codec CompressionCodec, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, c := range codecTable {
		if c.Name == upper {
			return c, true
		}
	}
	return CompressionCodec{}, false
}

// LookupCodecByExtension resolves a codec from a filename extension
// (including the leading dot, case-insensitive).
func LookupCodecByExtension(ext string) (codec CompressionCodec, ok bool) {
	lower := strings.ToLower(ext)
	for _, c := range codecTable {
		if c.Extension != "" && strings.ToLower(c.Extension) == lower {
			return c, true
		}
	}
	return CompressionCodec{}, false
}

// LookupCodecByMimeSubtype resolves a codec from the subtype half of a
// probed MIME type, e.g. "gzip" from "application/gzip".
func LookupCodecByMimeSubtype(subtype string) (codec CompressionCodec, ok bool) {
	lower := strings.ToLower(subtype)
	switch lower {
	case "gzip", "x-gzip":
		return Gzip, true
	case "zlib", "deflate":
		return Deflate, true
	case "x-bzip2", "bzip2":
		return Bzip2, true
	case "x-lzip":
		return Lzip, true
	case "x-lzma":
		return Lzma, true
	case "x-lzop", "lzo":
		return Lzo, true
	case "x-xz":
		return Xz, true
	case "x-compress":
		return Compress, true
	}
	return CompressionCodec{}, false
}
