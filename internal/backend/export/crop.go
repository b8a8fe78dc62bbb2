package export

import (
	"image"
	"log/slog"
	"math"
)

// CropRect is a crop window in source-image pixel coordinates. It is always
// fully contained in the source bounds and carries the aspect ratio of the
// preset that produced it.
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// subjectVerticalAnchor places the subject center at 40% of the crop height
// instead of the geometric middle. Faces read better with headroom below the
// upper third; this is a composition rule, not symmetric centering.
const subjectVerticalAnchor = 0.4

// PlanCrop computes the largest rectangle with the preset's target aspect
// ratio that fits inside a srcWidth x srcHeight image. A nil return means no
// cropping applies (identity preset).
//
// The constrained axis follows from comparing aspect ratios; on the free axis
// the crop is centered on the subject when one was detected, otherwise
// centered geometrically. A missing subject is a normal outcome, never an
// error.
func PlanCrop(srcWidth, srcHeight int, preset Preset, subject *image.Rectangle) *CropRect {
	if preset.IsNone() {
		return nil
	}
	if srcWidth < 1 || srcHeight < 1 {
		return nil
	}

	targetRatio := float64(preset.OutputWidth) / float64(preset.OutputHeight)
	sourceRatio := float64(srcWidth) / float64(srcHeight)

	var crop CropRect
	if sourceRatio > targetRatio {
		// Source is relatively wider: height is the constrained axis, the
		// crop slides horizontally.
		crop.Height = srcHeight
		crop.Width = int(math.Round(float64(srcHeight) * targetRatio))
		if crop.Width > srcWidth {
			crop.Width = srcWidth
		}
		if subject != nil {
			subjectCenter := subject.Min.X + subject.Dx()/2
			crop.X = clamp(subjectCenter-crop.Width/2, 0, srcWidth-crop.Width)
		} else {
			crop.X = (srcWidth - crop.Width) / 2
		}
	} else {
		// Source is relatively taller: width is the constrained axis, the
		// crop slides vertically.
		crop.Width = srcWidth
		crop.Height = int(math.Round(float64(srcWidth) / targetRatio))
		if crop.Height > srcHeight {
			crop.Height = srcHeight
		}
		if subject != nil {
			subjectCenter := subject.Min.Y + subject.Dy()/2
			anchor := int(math.Round(float64(crop.Height) * subjectVerticalAnchor))
			crop.Y = clamp(subjectCenter-anchor, 0, srcHeight-crop.Height)
		} else {
			crop.Y = (srcHeight - crop.Height) / 2
		}
	}

	if crop.Width < 1 {
		crop.Width = 1
	}
	if crop.Height < 1 {
		crop.Height = 1
	}

	slog.Debug("crop planned",
		"source_width", srcWidth,
		"source_height", srcHeight,
		"preset", preset.ID,
		"subject_anchored", subject != nil,
		"crop_x", crop.X,
		"crop_y", crop.Y,
		"crop_width", crop.Width,
		"crop_height", crop.Height)

	return &crop
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
