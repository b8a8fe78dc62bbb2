package export

import "image"

// SubjectDetector is an optional capability for locating the photographic
// subject in an image. Implementations report ok=false when no subject can
// be found; the crop planner then falls back to geometric centering, so a
// missing detector is never fatal.
type SubjectDetector interface {
	DetectSubject(img image.Image) (image.Rectangle, bool)
}

// AlphaBoundsDetector derives the subject region from transparency: on a
// background-removed derivative, the bounding box of the remaining opaque
// pixels is the subject.
type AlphaBoundsDetector struct {
	// Threshold is the minimum 8-bit alpha a pixel needs to count as part of
	// the subject. Zero keeps fully transparent pixels out while tolerating
	// soft matte edges.
	Threshold uint8
}

func (d AlphaBoundsDetector) DetectSubject(img image.Image) (image.Rectangle, bool) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	threshold := uint32(d.Threshold) << 8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a <= threshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		// Fully transparent image, nothing to anchor on.
		return image.Rectangle{}, false
	}

	region := image.Rect(minX, minY, maxX+1, maxY+1)
	if region == bounds {
		// An opaque full frame carries no anchoring signal.
		return image.Rectangle{}, false
	}
	return region, true
}

// NoDetector is the "capability unavailable" variant. It never finds a
// subject, which exercises the planner's centered fallback deterministically.
type NoDetector struct{}

func (NoDetector) DetectSubject(image.Image) (image.Rectangle, bool) {
	return image.Rectangle{}, false
}
