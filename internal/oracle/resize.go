package oracle

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// downscale fits the image within maxSide, keeping the aspect ratio, and
// returns it JPEG encoded with its new size. Images that already fit are
// returned unchanged.
func downscale(data []byte, maxSide int) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSide && height <= maxSide {
		return data, width, height, nil
	}

	var newWidth, newHeight int
	if width >= height {
		newWidth = maxSide
		newHeight = max(1, height*maxSide/width)
	} else {
		newHeight = maxSide
		newWidth = max(1, width*maxSide/height)
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode resized frame: %w", err)
	}
	return buf.Bytes(), newWidth, newHeight, nil
}
