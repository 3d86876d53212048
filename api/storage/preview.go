package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const previewMaxDim = 256

// MakePreview downscales a reference image to a small JPEG used in
// session history listings. The input must be a decodable JPEG or PNG.
func MakePreview(r io.Reader) (*bytes.Buffer, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(src, previewMaxDim, previewMaxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	return &buf, nil
}
