// Package transform turns assembled uploads into web-deliverable assets: a
// bounded resize plus thumbnail for images, an ffmpeg preview rendition plus
// extracted frame for video. All failures come back as typed errors; nothing
// here panics on bad input.
package transform

import "errors"

var (
	// ErrUnsupportedImage means the bytes could not be decoded as an image.
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")

	// ErrTranscodeFailed means the external transcoder exited non-zero or
	// was killed by its timeout.
	ErrTranscodeFailed = errors.New("transcode failed")
)

const (
	// Bounding box for the primary image asset.
	MaxImageWidth  = 1920
	MaxImageHeight = 1080

	// Bounding box for thumbnails.
	ThumbWidth  = 400
	ThumbHeight = 400

	primaryJPEGQuality = 85
	thumbJPEGQuality   = 70
)

// Asset is one produced derivative: encoded bytes plus how to store them.
type Asset struct {
	Data        []byte
	ContentType string
	Ext         string
}
