package testsupport

import (
	"archive/zip"
	"bytes"
	"testing"
)

// ContainerXML is a minimal container metadata document whose rootfile points
// at score.musicxml.
const ContainerXML = `<?xml version="1.0"?>
<container><rootfiles><rootfile full-path="score.musicxml"/></rootfiles></container>`

// BuildContainer zips the given entries into an in-memory MXL container.
func BuildContainer(t testing.TB, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(contents)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// ScoreContainer builds a well-formed container holding one canonical
// score.musicxml document.
func ScoreContainer(t testing.TB) []byte {
	t.Helper()
	return BuildContainer(t, map[string]string{
		"META-INF/container.xml": ContainerXML,
		"score.musicxml":         "<score-partwise/>",
	})
}
