// Package export implements the photo export pipeline: preset resolution,
// crop planning, background compositing with optional effects, and
// size-budgeted encoding.
package export

// Format is the output encoding of an export.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Preset is a named output specification. Presets are immutable and defined
// at process start; they are never persisted.
type Preset struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// OutputWidth and OutputHeight are the target dimensions in pixels.
	// Zero means "use source dimensions, no crop".
	OutputWidth  int `json:"outputWidth"`
	OutputHeight int `json:"outputHeight"`
	// MinSubjectWidth and MaxSubjectWidth are advisory bounds for a detected
	// subject region. The pipeline surfaces them; conformance checking is the
	// caller's job.
	MinSubjectWidth int    `json:"minSubjectWidth"`
	MaxSubjectWidth int    `json:"maxSubjectWidth"`
	Format          Format `json:"format"`
	// MaxOutputBytes caps the encoded size; zero means no budget.
	MaxOutputBytes int    `json:"maxOutputBytes,omitempty"`
	Description    string `json:"description"`
}

// IsNone reports whether the preset passes source dimensions through
// unmodified.
func (p Preset) IsNone() bool {
	return p.OutputWidth <= 0 || p.OutputHeight <= 0
}

// PresetNone is the identity preset: source dimensions, PNG, no size budget.
var PresetNone = Preset{
	ID:          "none",
	Label:       "Original size",
	Format:      FormatPNG,
	Description: "Keeps the source dimensions, no crop applied",
}

var presets = []Preset{
	PresetNone,
	{
		ID:              "us-passport",
		Label:           "US passport (2x2 in)",
		OutputWidth:     600,
		OutputHeight:    600,
		MinSubjectWidth: 300,
		MaxSubjectWidth: 414,
		Format:          FormatJPEG,
		MaxOutputBytes:  240_000,
		Description:     "600x600 px at 300 DPI, head between 50% and 69% of frame width",
	},
	{
		ID:              "schengen-visa",
		Label:           "Schengen visa (35x45 mm)",
		OutputWidth:     413,
		OutputHeight:    531,
		MinSubjectWidth: 186,
		MaxSubjectWidth: 289,
		Format:          FormatJPEG,
		Description:     "35x45 mm at 300 DPI, European visa and ID standard",
	},
	{
		ID:           "profile-square",
		Label:        "Profile picture (square)",
		OutputWidth:  512,
		OutputHeight: 512,
		Format:       FormatPNG,
		Description:  "512x512 px square crop for social and messenger profiles",
	},
	{
		ID:             "avatar-small",
		Label:          "Avatar (small)",
		OutputWidth:    256,
		OutputHeight:   256,
		Format:         FormatJPEG,
		MaxOutputBytes: 64_000,
		Description:    "256x256 px thumbnail kept under 64 KB",
	},
}

// Presets returns the catalog in its defined order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// Resolve returns the preset with the given id. Unknown or empty ids resolve
// to PresetNone so callers can always proceed with a pass-through export.
func Resolve(id string) Preset {
	for _, p := range presets {
		if p.ID == id {
			return p
		}
	}
	return PresetNone
}
