package imagex

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// CropSquare decodes an image and center-crops it to a 1:1 aspect ratio,
// mirroring the square cropper in the upload dialog. When size > 0 the
// result is additionally scaled to size x size.
func CropSquare(r io.Reader, size int) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}

	out := imaging.CropCenter(img, side, side)
	if size > 0 && side != size {
		out = imaging.Resize(out, size, size, imaging.Lanczos)
	}
	return out, nil
}

// DataURL encodes an image as an inline PNG data URL.
func DataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
