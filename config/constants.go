package config

import "time"

// Video Output Constants
const (
	// VideoWidth is the output video width (9:16 aspect ratio)
	VideoWidth = 1080

	// VideoHeight is the output video height (9:16 aspect ratio)
	VideoHeight = 1920

	// VideoFPS is the output frame rate
	VideoFPS = 30

	// VideoCodec is the video encoding codec
	VideoCodec = "libx264"

	// VideoPreset is the ffmpeg encoding speed preset
	VideoPreset = "fast"

	// VideoPixelFormat is the output pixel format (player compatibility)
	VideoPixelFormat = "yuv420p"

	// VideoBitrateBps is the target video bitrate in bits per second
	VideoBitrateBps = 5_000_000
)

// Timing Constants
const (
	// PhotoDuration is how long each photo is shown
	PhotoDuration = 2 * time.Second

	// TransitionDuration is the fade-in/fade-out window at the start and
	// end of each photo's display time
	TransitionDuration = 500 * time.Millisecond

	// RenderTimeout bounds a whole render session; a session that has not
	// finished by then resolves as timed out
	RenderTimeout = 60 * time.Second
)

// Overlay Constants
const (
	// BrandingText is the fixed string drawn in the bottom overlay
	BrandingText = "PhotoReel"

	// OutputSuffix is appended to the job number to name saved videos
	OutputSuffix = "_reel.mp4"

	// LabelFontSize is the point size of the category label text
	LabelFontSize = 56

	// FooterFontSize is the point size of the bottom overlay text
	FooterFontSize = 44
)

// Directory Constants
const (
	// InputDir is the directory containing job manifest JSON files
	InputDir = "input"

	// OutputDir is the directory for generated videos
	OutputDir = "output"
)
