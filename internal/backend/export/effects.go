package export

import (
	"image"

	"github.com/disintegration/imaging"
)

// EffectKind names a post-composite effect. Effects are mutually exclusive
// per render.
type EffectKind string

const (
	EffectBlur       EffectKind = "blur"
	EffectBrightness EffectKind = "brightness"
	EffectContrast   EffectKind = "contrast"
)

// Effect is a deterministic pixel transform with an intensity in [0, 100].
// Brightness is neutral at 50, blur and contrast at 0.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Intensity int        `json:"intensity"`
}

// applyEffect runs the effect as a final pass over the composited raster.
func applyEffect(img *image.NRGBA, effect Effect) *image.NRGBA {
	switch effect.Kind {
	case EffectBlur:
		// Radius scales linearly with intensity in output-pixel units.
		radius := float64(effect.Intensity) / 10
		if radius <= 0 {
			return img
		}
		return imaging.Blur(img, radius)
	case EffectBrightness:
		return adjustBrightness(img, effect.Intensity)
	case EffectContrast:
		return adjustContrast(img, effect.Intensity)
	default:
		return img
	}
}

// adjustBrightness scales RGB channels by intensity/50, so 50 leaves pixels
// unchanged and 100 doubles them. Channels clamp at 255; alpha is untouched.
func adjustBrightness(img *image.NRGBA, intensity int) *image.NRGBA {
	scale := float64(intensity) / 50
	out := cloneNRGBA(img)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = clampChannel(float64(out.Pix[i]) * scale)
		out.Pix[i+1] = clampChannel(float64(out.Pix[i+1]) * scale)
		out.Pix[i+2] = clampChannel(float64(out.Pix[i+2]) * scale)
	}
	return out
}

// adjustContrast applies the standard contrast curve
// factor*(channel-128)+128 with factor = 259*(i+255) / (255*(259-i)).
// Alpha is untouched.
func adjustContrast(img *image.NRGBA, intensity int) *image.NRGBA {
	factor := (259 * float64(intensity+255)) / (255 * float64(259-intensity))
	out := cloneNRGBA(img)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = clampChannel(factor*(float64(out.Pix[i])-128) + 128)
		out.Pix[i+1] = clampChannel(factor*(float64(out.Pix[i+1])-128) + 128)
		out.Pix[i+2] = clampChannel(factor*(float64(out.Pix[i+2])-128) + 128)
	}
	return out
}

func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
