// Package format classifies uploaded score files into a closed set of
// format tags.
//
// Precedence: explicit client hint substring match, then file extension,
// then declared MIME type. Classification is pure; callers decide what a
// failed classification means for the stored upload.
package format

import (
	"path/filepath"
	"strings"

	"partita/internal/services"
)

// Format tags one upload with its canonical score format.
type Format string

const (
	// PlainXML is an uncompressed MusicXML document.
	PlainXML Format = "plain-xml"
	// CompressedContainer is a zip-based MXL bundle.
	CompressedContainer Format = "compressed-container"
	// NativePackage is a zipped MuseScore project (.mscz).
	NativePackage Format = "native-package"
	// NativeSource is an uncompressed MuseScore project (.mscx).
	NativeSource Format = "native-source"
)

// IsNative reports whether the format requires the external score editor
// to export a normalized container.
func (f Format) IsNative() bool {
	return f == NativePackage || f == NativeSource
}

var extensionTags = map[string]Format{
	".xml":      PlainXML,
	".musicxml": PlainXML,
	".mxl":      CompressedContainer,
	".mscz":     NativePackage,
	".mscx":     NativeSource,
}

var mimeTags = map[string]Format{
	"application/vnd.recordare.musicxml+xml": PlainXML,
	"application/xml":                        PlainXML,
	"text/xml":                               PlainXML,
	"application/vnd.recordare.musicxml":     CompressedContainer,
	"application/x-musescore":                NativePackage,
}

// hintTags are checked in order; more specific substrings come first so a
// hint like "musicxml container" never resolves as plain XML.
var hintTags = []struct {
	substring string
	tag       Format
}{
	{"mscz", NativePackage},
	{"mscx", NativeSource},
	{"musescore", NativePackage},
	{"mxl", CompressedContainer},
	{"container", CompressedContainer},
	{"compressed", CompressedContainer},
	{"musicxml", PlainXML},
	{"xml", PlainXML},
}

// Resolve maps an upload's filename, declared MIME type, and optional client
// hint to one format tag.
func Resolve(filename, mimeType, hint string) (Format, error) {
	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		for _, candidate := range hintTags {
			if strings.Contains(hint, candidate.substring) {
				return candidate.tag, nil
			}
		}
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if tag, ok := extensionTags[ext]; ok {
		return tag, nil
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if tag, ok := mimeTags[mimeType]; ok {
		return tag, nil
	}

	return "", services.Wrap(services.ErrUnsupportedFormat, "format", "resolve",
		"no hint, extension, or MIME match for "+filename, nil)
}
