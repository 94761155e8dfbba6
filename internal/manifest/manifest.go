package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"partita/internal/objectstore"
)

// Version identifies the manifest JSON schema.
const Version = 1

// Outcome tags a note with its step result.
type Outcome string

const (
	// OutcomeOK marks a step that produced its artifact.
	OutcomeOK Outcome = "ok"
	// OutcomeFailed marks a step whose failure was absorbed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped marks a step disabled by configuration or format.
	OutcomeSkipped Outcome = "skipped"
)

// Note records one step outcome in the pipeline's append-only log.
type Note struct {
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

func (n Note) String() string {
	if n.Detail == "" {
		return fmt.Sprintf("%s: %s", n.Step, n.Outcome)
	}
	return fmt.Sprintf("%s: %s: %s", n.Step, n.Outcome, n.Detail)
}

// ArtifactEntry lists one produced artifact in the manifest.
type ArtifactEntry struct {
	Type        string               `json:"type"`
	Bucket      objectstore.Bucket   `json:"bucket"`
	ObjectKey   string               `json:"objectKey"`
	SizeBytes   int64                `json:"sizeBytes"`
	ContentType string               `json:"contentType"`
	Checksum    objectstore.Checksum `json:"checksum"`
}

// Manifest is the persisted record of one revision attempt.
type Manifest struct {
	Version        int               `json:"version"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	WorkID         string            `json:"workId"`
	SourceID       string            `json:"sourceId"`
	SequenceNumber int               `json:"sequenceNumber"`
	Tooling        map[string]string `json:"tooling"`
	Notes          []Note            `json:"notes"`
	Pending        bool              `json:"pending"`
	Artifacts      []ArtifactEntry   `json:"artifacts"`
}

// New creates an empty manifest for one pipeline run.
func New(workID, sourceID string, seq int) *Manifest {
	return &Manifest{
		Version:        Version,
		GeneratedAt:    time.Now().UTC(),
		WorkID:         workID,
		SourceID:       sourceID,
		SequenceNumber: seq,
		Tooling:        map[string]string{},
	}
}

// Append adds a note to the log. Notes are never removed or reordered.
func (m *Manifest) Append(step string, outcome Outcome, detail string) {
	m.Notes = append(m.Notes, Note{Step: step, Outcome: outcome, Detail: detail})
}

// LastNote returns the most recent note, or a zero Note when the log is empty.
func (m *Manifest) LastNote() Note {
	if len(m.Notes) == 0 {
		return Note{}
	}
	return m.Notes[len(m.Notes)-1]
}

// NoteFor returns the most recent note for a step. Later steps appending to
// the log do not shadow it.
func (m *Manifest) NoteFor(step string) (Note, bool) {
	for i := len(m.Notes) - 1; i >= 0; i-- {
		if m.Notes[i].Step == step {
			return m.Notes[i], true
		}
	}
	return Note{}, false
}

// AddArtifact appends a manifest entry for a stored locator.
func (m *Manifest) AddArtifact(artifactType string, loc objectstore.Locator) {
	m.Artifacts = append(m.Artifacts, ArtifactEntry{
		Type:        artifactType,
		Bucket:      loc.Bucket,
		ObjectKey:   loc.Key,
		SizeBytes:   loc.SizeBytes,
		ContentType: loc.ContentType,
		Checksum:    loc.Checksum,
	})
}

// HasArtifact reports whether an entry of the given type exists.
func (m *Manifest) HasArtifact(artifactType string) bool {
	for _, entry := range m.Artifacts {
		if entry.Type == artifactType {
			return true
		}
	}
	return false
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Decode parses a stored manifest blob.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
