package transform

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Registers webp decoding for image.Decode; webp re-encodes as JPEG
	// since there is no maintained pure-Go webp encoder.
	_ "golang.org/x/image/webp"
)

// ImageResult carries both derivatives of the image path.
type ImageResult struct {
	Primary Asset
	Thumb   Asset
}

// ProcessImage decodes src, constrains it to the primary bounding box, and
// independently produces a thumbnail. The primary keeps the source format
// for PNG and falls back to JPEG for everything else.
func ProcessImage(src []byte) (*ImageResult, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
	}

	primary := imaging.Fit(img, MaxImageWidth, MaxImageHeight, imaging.Lanczos)
	thumb := imaging.Fit(img, ThumbWidth, ThumbHeight, imaging.Lanczos)

	primaryAsset, err := encodeImage(primary, format, primaryJPEGQuality)
	if err != nil {
		return nil, err
	}

	thumbAsset, err := encodeImage(thumb, "jpeg", thumbJPEGQuality)
	if err != nil {
		return nil, err
	}

	return &ImageResult{Primary: primaryAsset, Thumb: thumbAsset}, nil
}

func encodeImage(img image.Image, format string, jpegQuality int) (Asset, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
		}
		return Asset{Data: buf.Bytes(), ContentType: "image/png", Ext: ".png"}, nil

	default:
		err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
		if err != nil {
			return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
		}
		return Asset{Data: buf.Bytes(), ContentType: "image/jpeg", Ext: ".jpg"}, nil
	}
}
