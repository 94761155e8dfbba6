package manifest

import "partita/internal/objectstore"

// Artifact type names used in manifests and derivative bags.
const (
	ArtifactRaw                 = "raw"
	ArtifactNormalizedContainer = "normalizedContainer"
	ArtifactCanonicalXML        = "canonicalXml"
	ArtifactLinearizedXML       = "linearizedXml"
	ArtifactPDF                 = "pdf"
	ArtifactNativePackage       = "nativePackage"
	ArtifactManifest            = "manifest"
	ArtifactThumbnail           = "thumbnail"
	ArtifactDiffReport          = "diffReport"
	ArtifactDiffHTML            = "diffHtml"
	ArtifactDiffPDF             = "diffPdf"
	ArtifactReferencePDF        = "referencePdf"
)

// DerivativeArtifacts is the named bag of optional locators produced for one
// revision. It is immutable after the pipeline run that created it, except
// for attaching a deferred PDF/thumbnail pair later.
type DerivativeArtifacts struct {
	NormalizedContainer *objectstore.Locator `json:"normalizedContainer,omitempty"`
	CanonicalXML        *objectstore.Locator `json:"canonicalXml,omitempty"`
	LinearizedXML       *objectstore.Locator `json:"linearizedXml,omitempty"`
	PDF                 *objectstore.Locator `json:"pdf,omitempty"`
	NativePackage       *objectstore.Locator `json:"nativePackage,omitempty"`
	Manifest            *objectstore.Locator `json:"manifest,omitempty"`
	Thumbnail           *objectstore.Locator `json:"thumbnail,omitempty"`
	DiffReport          *objectstore.Locator `json:"diffReport,omitempty"`
	DiffHTML            *objectstore.Locator `json:"diffHtml,omitempty"`
	DiffPDF             *objectstore.Locator `json:"diffPdf,omitempty"`
	ReferencePDF        *objectstore.Locator `json:"referencePdf,omitempty"`
}

// AttachDeferredPDF sets the PDF and thumbnail locators produced by a
// second-phase job. This is the only mutation allowed after creation.
func (d *DerivativeArtifacts) AttachDeferredPDF(pdf, thumbnail *objectstore.Locator) {
	d.PDF = pdf
	d.Thumbnail = thumbnail
}
