package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
)

const (
	jpegStartQuality = 90
	jpegQualityStep  = 8
	jpegMinQuality   = 10
	jpegMaxAttempts  = 10
)

// Encode serializes the raster to the requested format. PNG is a single
// deterministic encode and ignores the budget. JPEG runs a bounded quality
// search when maxBytes is positive: quality drops in fixed steps until the
// output fits, the quality floor is reached, or the attempt bound is
// exhausted. The best attempt is always returned, even over budget — the
// search is best-effort, not a guarantee.
func Encode(img image.Image, format Format, maxBytes int) ([]byte, error) {
	switch format {
	case FormatPNG:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJPEG:
		data, attempts, quality := encodeJPEGBudgeted(img, maxBytes)
		if data == nil {
			return nil, fmt.Errorf("failed to encode JPEG")
		}
		if maxBytes > 0 && len(data) > maxBytes {
			slog.Debug("jpeg stayed over budget after quality search",
				"budget_bytes", maxBytes,
				"result_bytes", len(data),
				"attempts", attempts,
				"final_quality", quality)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// encodeJPEGBudgeted is the retry loop behind JPEG encoding, kept as an
// explicit bounded loop so the last attempt survives as the fallback result.
// Byte lengths are measured on the actual encoded output.
func encodeJPEGBudgeted(img image.Image, maxBytes int) (data []byte, attempts, quality int) {
	quality = jpegStartQuality
	var buf bytes.Buffer

	for attempts = 1; ; attempts++ {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			// jpeg.Encode only fails on writer errors, which a bytes.Buffer
			// does not produce; keep whatever the previous attempt yielded.
			return data, attempts, quality
		}
		data = append(data[:0], buf.Bytes()...)

		withinBudget := maxBytes <= 0 || buf.Len() <= maxBytes
		if withinBudget || quality <= jpegMinQuality || attempts >= jpegMaxAttempts {
			return data, attempts, quality
		}
		quality -= jpegQualityStep
		if quality < jpegMinQuality {
			quality = jpegMinQuality
		}
	}
}
