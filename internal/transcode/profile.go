package transcode

import (
	"fmt"

	"recipecast/internal/config"
)

// Profile captures the encode targets applied to every submission.
type Profile struct {
	MaxDimension     int
	TargetBitrateBps int
	FrameRate        int
}

// ProfileFromConfig builds the encode profile from application config.
func ProfileFromConfig(cfg *config.Config) Profile {
	return Profile{
		MaxDimension:     int(cfg.Video.MaxDimension),
		TargetBitrateBps: int(cfg.Video.TargetBitrateBps),
		FrameRate:        int(cfg.Video.FrameRate),
	}
}

// Plan is the resolved geometry for one encode.
type Plan struct {
	Width  int
	Height int
	// Scaled is false when the source already fits inside MaxDimension and
	// ffmpeg keeps the original geometry.
	Scaled bool
}

// PlanFor computes output dimensions for a source. Videos are never upscaled
// and both dimensions are rounded down to even values, which the h264 encoder
// requires.
func (p Profile) PlanFor(width, height int) Plan {
	if width <= 0 || height <= 0 {
		return Plan{Width: width, Height: height}
	}

	longest := width
	if height > longest {
		longest = height
	}
	if p.MaxDimension <= 0 || longest <= p.MaxDimension {
		return Plan{Width: evenDown(width), Height: evenDown(height), Scaled: false}
	}

	factor := float64(p.MaxDimension) / float64(longest)
	return Plan{
		Width:  evenDown(int(float64(width) * factor)),
		Height: evenDown(int(float64(height) * factor)),
		Scaled: true,
	}
}

func evenDown(v int) int {
	if v <= 0 {
		return 0
	}
	return v - v%2
}

// String renders the plan geometry for logs.
func (p Plan) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}
