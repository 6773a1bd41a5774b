package constants

import "strings"

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// AllowedExtensions holds the file extensions accepted for report ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var extMime = map[string]string{
	"pdf":  MimePDF,
	"jpg":  MimeJPEG,
	"jpeg": MimeJPEG,
	"png":  MimePNG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt returns the MIME type for an allowed extension, or "".
func MimeForExt(ext string) string {
	return extMime[NormalizeExt(ext)]
}

// IngestState names a step of the ingestion state machine. Used in logs.
type IngestState string

const (
	StateReceived          IngestState = "received"
	StateExtracting        IngestState = "extracting"
	StateExtractionFailed  IngestState = "extraction_failed"
	StateExtracted         IngestState = "extracted"
	StateValidating        IngestState = "validating"
	StateRejected          IngestState = "rejected"
	StateNeedsConfirmation IngestState = "needs_confirmation"
	StateAccepted          IngestState = "accepted"
)
