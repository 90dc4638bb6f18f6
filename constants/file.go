package constants

import "strings"

// ImageExt is the extension used for downloaded receipt photos.
const ImageExt = ".jpg"

// ImageContentType is sent to the OCR provider along with the photo bytes.
const ImageContentType = "image/jpeg"

// IsImageMIME reports whether a document attachment should be treated as a photo.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
