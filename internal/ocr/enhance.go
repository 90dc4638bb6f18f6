package ocr

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

const (
	maxSide      = 2400
	minQuality   = 40
	startQuality = 90
)

// PrepareImage returns the bytes to upload for the image at path.
// The file is passed through untouched unless enhance is set or it exceeds maxBytes.
// EXIF orientation is applied whenever the image is decoded.
func PrepareImage(path string, enhance bool, maxBytes int) ([]byte, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if !enhance && (maxBytes <= 0 || len(raw) <= maxBytes) {
		return raw, nil, nil
	}

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		if !enhance {
			// let the provider judge formats we cannot decode
			return raw, []string{"oversized image could not be decoded: " + err.Error()}, nil
		}
		return nil, nil, fmt.Errorf("decode image: %w", err)
	}

	img := src
	var warns []string
	if enhance {
		img = Enhance(img)
		warns = append(warns, "enhanced")
	}
	if b := img.Bounds(); b.Dx() > maxSide || b.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		warns = append(warns, "downscaled")
	}

	out, err := encodeUnder(img, maxBytes)
	if err != nil {
		return nil, warns, err
	}
	return out, warns, nil
}

// Enhance applies the receipt cleanup filters.
func Enhance(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 1.0)
	return out
}

// encodeUnder re-encodes img as JPEG, lowering quality and then size until it fits in maxBytes.
func encodeUnder(img image.Image, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		for q := startQuality; q >= minQuality; q -= 10 {
			buf.Reset()
			if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
				return nil, fmt.Errorf("encode jpeg: %w", err)
			}
			if maxBytes <= 0 || buf.Len() <= maxBytes {
				return buf.Bytes(), nil
			}
		}
		b := img.Bounds()
		if b.Dx() < 64 || b.Dy() < 64 {
			return buf.Bytes(), nil
		}
		img = imaging.Resize(img, b.Dx()*3/4, 0, imaging.Lanczos)
	}
}
