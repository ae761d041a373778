package slideshow

import (
	"time"

	"photoreel/config"
)

// ImagePolicy decides what a single bad image does to the load barrier.
type ImagePolicy string

const (
	// ImagePolicyAbort fails the whole job on the first decode failure.
	ImagePolicyAbort ImagePolicy = "abort"

	// ImagePolicySkip drops undecodable photos and renders the rest.
	ImagePolicySkip ImagePolicy = "skip"
)

// Config holds the per-job render settings. The zero value is usable;
// every unset field falls back to the package defaults in config.
type Config struct {
	Width  int
	Height int
	FPS    int

	PhotoDuration      time.Duration
	TransitionDuration time.Duration

	BitrateBps int
	Timeout    time.Duration

	// OnImageError selects the load-barrier failure policy. The default
	// is abort; the per-frame draw path always skips regardless.
	OnImageError ImagePolicy

	// OnProgress, when set, is called with a 0..100 percentage as
	// rendering advances. It reaches 100 exactly once, on the last frame.
	OnProgress func(percent int)
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = config.VideoWidth
	}
	if c.Height <= 0 {
		c.Height = config.VideoHeight
	}
	if c.FPS <= 0 {
		c.FPS = config.VideoFPS
	}
	if c.PhotoDuration <= 0 {
		c.PhotoDuration = config.PhotoDuration
	}
	if c.TransitionDuration <= 0 {
		c.TransitionDuration = config.TransitionDuration
	}
	if c.BitrateBps <= 0 {
		c.BitrateBps = config.VideoBitrateBps
	}
	if c.Timeout <= 0 {
		c.Timeout = config.RenderTimeout
	}
	if c.OnImageError == "" {
		c.OnImageError = ImagePolicyAbort
	}
	return c
}
