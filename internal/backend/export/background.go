package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Background describes what fills the target raster before the subject is
// drawn. When Image is set it wins over Color and is stretched to cover the
// target exactly; aspect ratio is intentionally not preserved so backgrounds
// always fully cover.
type Background struct {
	Color color.NRGBA
	Image []byte
}

// resolveBackground produces the width x height base raster for a render.
// A decode failure aborts the render; we never composite onto a partially
// drawn background.
func resolveBackground(bg Background, width, height int) (*image.NRGBA, error) {
	if len(bg.Image) == 0 {
		return imaging.New(width, height, bg.Color), nil
	}

	if isSVGData(bg.Image) {
		return renderSVGBackground(bg.Image, width, height)
	}

	img, _, err := image.Decode(bytes.NewReader(bg.Image))
	if err != nil {
		return nil, fmt.Errorf("failed to decode background image: %w", err)
	}
	// Stretch-to-fit, both axes forced to the target.
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// isSVGData performs a lightweight detection of SVG content from raw bytes,
// inspecting only the leading portion of the data.
func isSVGData(data []byte) bool {
	n := len(data)
	if n == 0 {
		return false
	}
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`))
}

// renderSVGBackground rasterizes an SVG onto a width x height canvas,
// stretching the drawing to the full target rectangle.
func renderSVGBackground(svgData []byte, width, height int) (*image.NRGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG background: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	return imaging.Clone(canvas), nil
}
