package imageutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// FitWidth downscales an encoded image so that it is at most maxWidth pixels
// wide, keeping the aspect ratio. Images that already fit are returned
// untouched with resized=false. GIFs are re-encoded as PNG (first frame).
func FitWidth(data []byte, maxWidth int) (out []byte, format string, resized bool, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read image header: %w", err)
	}
	if maxWidth <= 0 || cfg.Width <= maxWidth {
		return data, format, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to decode image: %w", err)
	}

	height := cfg.Height * maxWidth / cfg.Width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		// png keeps the transparent background signatures usually have
		format = "png"
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), format, true, nil
}
