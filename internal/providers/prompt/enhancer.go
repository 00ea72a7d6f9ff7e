package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EnhanceRequest carries the raw prompt plus the styling knobs chosen in
// the composer.
type EnhanceRequest struct {
	Prompt string
	Kind   string
	Style  string
	Locale string
}

// EnhanceResponse is the reworked prompt handed back to the composer.
type EnhanceResponse struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Provider string `json:"-"`
}

// Enhancer rewrites user prompts before submission.
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
}

// styleSuffixes appends the image style vocabulary the generation models
// respond best to.
var styleSuffixes = map[string]string{
	"photorealistic": ", photorealistic, highly detailed, professional quality, 8K resolution",
	"cinematic":      ", cinematic lighting, dramatic composition, film grain",
	"anime":          ", anime style, vibrant colors, clean line art",
	"watercolor":     ", watercolor painting, soft washes, textured paper",
	"product":        ", studio product photography, clean backdrop, soft shadows",
}

// motionSuffixes cover the video motion presets.
var motionSuffixes = map[string]string{
	"smooth":  ", smooth camera movement, cinematic quality, professional video",
	"dynamic": ", dynamic camera movement, energetic pacing, professional video",
	"static":  ", locked-off camera, subtle ambient motion, professional video",
}

const defaultImageSuffix = ", highly detailed, professional quality, masterpiece"

// StaticEnhancer applies deterministic style suffixes locally. It is the
// fallback path the product ships with; a remote assistant would slot in
// behind the same interface.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	base := strings.TrimSpace(req.Prompt)
	style := strings.ToLower(strings.TrimSpace(req.Style))

	suffix := defaultImageSuffix
	if req.Kind == "video" {
		suffix = motionSuffixes["smooth"]
		if v, ok := motionSuffixes[style]; ok {
			suffix = v
		}
	} else if v, ok := styleSuffixes[style]; ok {
		suffix = v
	}

	enhanced := base
	// Avoid stacking the suffix on an already enhanced prompt.
	if marker := leadFragment(suffix); marker == "" || !strings.Contains(enhanced, marker) {
		enhanced += suffix
	}

	titled := cases.Title(language.Make(normalizeLocale(req.Locale)))
	label := style
	if label == "" {
		label = "default"
	}
	return &EnhanceResponse{
		Prompt:   enhanced,
		Style:    titled.String(label),
		Provider: "static",
	}, nil
}

func leadFragment(suffix string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(suffix), ",")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.Index(trimmed, ","); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if strings.HasPrefix(locale, "vi") {
		return "vi"
	}
	return "en"
}

var _ Enhancer = (*StaticEnhancer)(nil)
