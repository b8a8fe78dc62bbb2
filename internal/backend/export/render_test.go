package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestRender_SolidBackgroundShowsThroughTransparency(t *testing.T) {
	// Fully transparent source over a green fill: every pixel is the fill.
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	green := color.NRGBA{G: 255, A: 255}

	out, err := Render(src, RenderSpec{Background: Background{Color: green}})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 10 {
		t.Fatalf("expected source dimensions without crop, got %v", out.Bounds())
	}
	for _, p := range []image.Point{{0, 0}, {5, 5}, {9, 9}} {
		if got := out.NRGBAAt(p.X, p.Y); got != green {
			t.Fatalf("pixel %v: expected background %v, got %v", p, green, got)
		}
	}
}

func TestRender_OpaqueSubjectCoversBackground(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	red := color.NRGBA{R: 255, A: 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, red)
		}
	}

	out, err := Render(src, RenderSpec{Background: Background{Color: color.NRGBA{B: 255, A: 255}}})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if got := out.NRGBAAt(2, 2); got != red {
		t.Fatalf("expected opaque subject pixel %v, got %v", red, got)
	}
}

func TestRender_CropScalesToOutputDimensions(t *testing.T) {
	src := cutoutFixture(100, 50, image.Rect(30, 10, 70, 40))
	crop := PlanCrop(100, 50, squarePreset(), nil)
	if crop == nil {
		t.Fatal("expected crop")
	}

	out, err := Render(src, RenderSpec{
		Background:   Background{Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		Crop:         crop,
		OutputWidth:  40,
		OutputHeight: 40,
	})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 40 {
		t.Fatalf("expected 40x40 output, got %v", out.Bounds())
	}
	// Center of the crop lands on the subject cutout.
	if got := out.NRGBAAt(20, 20); got.A != 255 || got.R != 180 {
		t.Errorf("expected subject pixel at center, got %v", got)
	}
}

func TestRender_CustomImageBackgroundStretchesToFill(t *testing.T) {
	bgImg := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	blue := color.NRGBA{B: 255, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			bgImg.SetNRGBA(x, y, blue)
		}
	}

	src := image.NewNRGBA(image.Rect(0, 0, 16, 8)) // transparent
	out, err := Render(src, RenderSpec{Background: Background{Image: encodePNG(t, bgImg)}})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	// The 2x2 background must cover the full 16x8 target, corners included.
	for _, p := range []image.Point{{0, 0}, {15, 0}, {0, 7}, {15, 7}} {
		got := out.NRGBAAt(p.X, p.Y)
		if got.B != 255 || got.A != 255 {
			t.Fatalf("pixel %v: expected stretched background, got %v", p, got)
		}
	}
}

func TestRender_SVGBackground(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4">` +
		`<rect x="0" y="0" width="4" height="4" fill="#ff0000"/></svg>`)

	src := image.NewNRGBA(image.Rect(0, 0, 12, 12)) // transparent
	out, err := Render(src, RenderSpec{Background: Background{Image: svg}})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	got := out.NRGBAAt(6, 6)
	if got.R < 200 || got.G > 50 || got.B > 50 {
		t.Errorf("expected rasterized red SVG fill at center, got %v", got)
	}
}

func TestRender_BadBackgroundFailsRender(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	_, err := Render(src, RenderSpec{Background: Background{Image: []byte("not an image")}})
	if err == nil {
		t.Fatal("expected error for undecodable background image")
	}
}

func TestRender_Deterministic(t *testing.T) {
	src := cutoutFixture(60, 60, image.Rect(10, 10, 50, 50))
	spec := RenderSpec{
		Background:   Background{Color: color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
		Crop:         &CropRect{X: 5, Y: 5, Width: 50, Height: 50},
		OutputWidth:  32,
		OutputHeight: 32,
		Effect:       &Effect{Kind: EffectContrast, Intensity: 40},
	}

	a, err := Render(src, spec)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	b, err := Render(src, spec)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("Render must be pure: identical inputs, identical pixels")
	}
}
