package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SettingsJSON is the generation settings blob persisted with each job
// and forwarded to the provider payload.
type SettingsJSON struct {
	AspectRatio  string `json:"aspect_ratio"`
	Resolution   string `json:"resolution"`
	OutputFormat string `json:"output_format"`
	// Video-only knobs; ignored for image kinds.
	Duration     int    `json:"duration,omitempty"`
	Quality      string `json:"quality,omitempty"`
	MotionPreset string `json:"motion_preset,omitempty"`
}

var allowedAspectRatios = map[string]struct{}{
	"1:1":  {},
	"4:3":  {},
	"3:4":  {},
	"16:9": {},
	"9:16": {},
}

var allowedOutputFormats = map[string]struct{}{
	"png":  {},
	"jpeg": {},
	"webp": {},
	"mp4":  {},
}

const (
	// DefaultAspectRatio is used when the request omits the aspect ratio.
	DefaultAspectRatio = "1:1"
	// DefaultResolution is the baseline output resolution.
	DefaultResolution = "4K"
	// DefaultOutputFormat is applied when no format preference is provided.
	DefaultOutputFormat = "png"
	// DefaultVideoDuration is the fallback clip length in seconds.
	DefaultVideoDuration = 5
)

// Normalize ensures the settings respect server defaults.
func (s *SettingsJSON) Normalize() {
	if s == nil {
		return
	}
	if s.AspectRatio == "" {
		s.AspectRatio = DefaultAspectRatio
	}
	if s.Resolution == "" {
		s.Resolution = DefaultResolution
	}
	if s.OutputFormat == "" {
		s.OutputFormat = DefaultOutputFormat
	}
	if s.Duration < 0 {
		s.Duration = DefaultVideoDuration
	}
}

// Validate ensures the settings satisfy the provider contract before
// persistence or submission.
func (s SettingsJSON) Validate() error {
	if _, ok := allowedAspectRatios[s.AspectRatio]; !ok {
		return fmt.Errorf("aspect_ratio must be one of 1:1, 4:3, 3:4, 16:9, 9:16")
	}
	if _, ok := allowedOutputFormats[strings.ToLower(s.OutputFormat)]; !ok {
		return fmt.Errorf("output_format must be one of png, jpeg, webp, mp4")
	}
	return nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
