package objectstore

import "time"

// Bucket identifies one of the store's blob classes.
type Bucket string

const (
	// BucketRaw holds uploads exactly as received.
	BucketRaw Bucket = "raw"
	// BucketDerivatives holds pipeline-generated artifacts.
	BucketDerivatives Bucket = "derivatives"
	// BucketAux holds reference PDFs and cached diff artifacts.
	BucketAux Bucket = "aux"
)

// Checksum carries a content digest with its algorithm name.
type Checksum struct {
	Algorithm string `json:"algorithm"`
	HexDigest string `json:"hexDigest"`
}

// Locator identifies one immutable blob in the object store.
type Locator struct {
	Bucket         Bucket    `json:"bucket"`
	Key            string    `json:"objectKey"`
	SizeBytes      int64     `json:"sizeBytes"`
	Checksum       Checksum  `json:"checksum"`
	ContentType    string    `json:"contentType"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// IsZero reports whether the locator identifies nothing.
func (l Locator) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}
