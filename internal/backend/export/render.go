package export

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// RenderSpec bundles everything a single composite pass needs. OutputWidth
// and OutputHeight apply only when Crop is set; without a crop the target
// keeps the source dimensions.
type RenderSpec struct {
	Background   Background
	Crop         *CropRect
	OutputWidth  int
	OutputHeight int
	Effect       *Effect
}

// Render composites the source onto the background and applies at most one
// post effect. The draw order is fixed: background fill first, then the
// subject, then the effect over the fully composited pixels. Transparency in
// a background-removed source is what lets the fill show through.
//
// Render is pure: identical inputs produce identical raster content.
func Render(src image.Image, spec RenderSpec) (*image.NRGBA, error) {
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()
	if spec.Crop != nil {
		width = spec.OutputWidth
		height = spec.OutputHeight
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid render target dimensions: %dx%d", width, height)
	}

	canvas, err := resolveBackground(spec.Background, width, height)
	if err != nil {
		return nil, err
	}

	if spec.Crop != nil {
		window := image.Rect(spec.Crop.X, spec.Crop.Y,
			spec.Crop.X+spec.Crop.Width, spec.Crop.Y+spec.Crop.Height)
		subject := imaging.Crop(src, window)
		scaled := imaging.Resize(subject, width, height, imaging.Lanczos)
		canvas = imaging.Overlay(canvas, scaled, image.Pt(0, 0), 1.0)
	} else {
		canvas = imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)
	}

	if spec.Effect != nil {
		canvas = applyEffect(canvas, *spec.Effect)
	}

	slog.Debug("render complete",
		"width", width,
		"height", height,
		"cropped", spec.Crop != nil,
		"effect", effectName(spec.Effect))

	return canvas, nil
}

func effectName(e *Effect) string {
	if e == nil {
		return "none"
	}
	return string(e.Kind)
}
