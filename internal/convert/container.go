package convert

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"regexp"
	"strings"

	"partita/internal/services"
)

// rootfileFullPath matches the full-path attribute of the first <rootfile>
// element in META-INF/container.xml. The container metadata is simple enough
// that a targeted match beats a full XML decode, and it tolerates the partly
// malformed container files some editors emit.
var rootfileFullPath = regexp.MustCompile(`<rootfile[^>]*full-path="([^"]+)"`)

// ExtractCanonical pulls the canonical score document out of a compressed
// container. The META-INF/container.xml rootfile wins when present and
// resolvable; otherwise the largest non-META-INF .musicxml or .xml entry is
// used. Returns services.ErrNoCanonicalDocument when neither yields a
// document.
func ExtractCanonical(data []byte) (name string, contents []byte, err error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "convert", "extract-canonical", "payload is not a zip archive", err)
	}

	entries := make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		entries[file.Name] = file
	}

	if meta, ok := entries["META-INF/container.xml"]; ok {
		if target := containerTarget(meta); target != "" {
			if file, ok := entries[target]; ok {
				contents, err := readEntry(file)
				if err != nil {
					return "", nil, err
				}
				return target, contents, nil
			}
		}
	}

	var best *zip.File
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "META-INF/") {
			continue
		}
		ext := strings.ToLower(path.Ext(file.Name))
		if ext != ".musicxml" && ext != ".xml" {
			continue
		}
		if best == nil || file.UncompressedSize64 > best.UncompressedSize64 {
			best = file
		}
	}
	if best == nil {
		return "", nil, services.Wrap(services.ErrNoCanonicalDocument, "convert", "extract-canonical", "container holds no score document", nil)
	}
	contents, err = readEntry(best)
	if err != nil {
		return "", nil, err
	}
	return best.Name, contents, nil
}

func containerTarget(meta *zip.File) string {
	contents, err := readEntry(meta)
	if err != nil {
		return ""
	}
	match := rootfileFullPath.FindSubmatch(contents)
	if match == nil {
		return ""
	}
	return string(match[1])
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "convert", "extract-canonical", "open container entry "+file.Name, err)
	}
	defer rc.Close()
	contents, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "convert", "extract-canonical", "read container entry "+file.Name, err)
	}
	return contents, nil
}
