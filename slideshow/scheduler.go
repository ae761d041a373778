package slideshow

import (
	"fmt"
	"image"
	"log"
	"math"

	"photoreel/types"
)

// timeline converts frame indices into photo indices and fade alphas.
// It is the virtual clock: time is a function of frame count and fps,
// never of measured wall time, so the output duration is deterministic
// regardless of host scheduling jitter.
type timeline struct {
	fps          int
	photoCount   int
	photoMs      float64
	transitionMs float64
	totalFrames  int
}

func newTimeline(photoCount int, cfg Config) timeline {
	photoMs := float64(cfg.PhotoDuration.Milliseconds())
	total := int(math.Round(float64(photoCount) * photoMs / 1000 * float64(cfg.FPS)))
	return timeline{
		fps:          cfg.FPS,
		photoCount:   photoCount,
		photoMs:      photoMs,
		transitionMs: float64(cfg.TransitionDuration.Milliseconds()),
		totalFrames:  total,
	}
}

// frameSpec describes a single frame to composite.
type frameSpec struct {
	Index      int
	PhotoIndex int
	Alpha      float64
}

func (t timeline) specAt(frame int) frameSpec {
	currentMs := float64(frame) / float64(t.fps) * 1000

	photoIndex := int(math.Floor(currentMs / t.photoMs))
	if photoIndex >= t.photoCount {
		photoIndex = t.photoCount - 1
	}

	progress := math.Mod(currentMs, t.photoMs) / t.photoMs
	fadeInEnd := t.transitionMs / t.photoMs
	fadeOutStart := 1 - fadeInEnd

	var alpha float64
	switch {
	case fadeInEnd <= 0:
		alpha = 1
	case progress < fadeInEnd:
		alpha = progress / fadeInEnd
	case progress > fadeOutStart:
		alpha = (1 - progress) / (1 - fadeOutStart)
	default:
		alpha = 1
	}
	alpha = math.Max(0, math.Min(1, alpha))

	return frameSpec{Index: frame, PhotoIndex: photoIndex, Alpha: alpha}
}

// renderLoop drives the virtual clock from frame 0 to totalFrames,
// compositing each frame and feeding it to the encoder. It stops early
// only when the completion guard has already resolved (timeout, encoder
// error, cancellation) or when the encoder refuses further frames.
//
// A fault while drawing one frame substitutes the last successfully
// drawn frame (a bare background frame before the first success), so
// every tick still emits exactly one frame and the stream stays
// totalFrames long. The counter advances and a single bad frame never
// aborts an otherwise-healthy job. This is deliberately looser than the
// load barrier's abort policy.
func renderLoop(sess *RenderSession, tl timeline, comp *Compositor, enc Encoder, info types.JobInfo, onProgress func(int)) {
	drawables := sess.Drawables()
	lastPercent := -1
	var lastGood *image.RGBA

	for i := 0; i < tl.totalFrames; i++ {
		select {
		case <-sess.guard.doneCh():
			return
		default:
		}

		frame, err := safeRender(comp, tl.specAt(i), drawables, info)
		if err != nil {
			log.Printf("[Scheduler] session %s: frame %d draw failed, holding previous frame: %v", sess.ID, i, err)
			frame = lastGood
			if frame == nil {
				frame = comp.blankFrame()
			}
		} else {
			lastGood = frame
		}

		if err := enc.WriteFrame(frame); err != nil {
			log.Printf("[Scheduler] session %s: encoder rejected frame %d: %v", sess.ID, i, err)
			return
		}
		sess.frameIndex.Store(int64(i + 1))

		if onProgress != nil {
			percent := ((i + 1) * 100) / tl.totalFrames
			if percent != lastPercent {
				lastPercent = percent
				onProgress(percent)
			}
		}
	}
}

// safeRender isolates per-frame faults: a panic inside the compositor is
// converted to an error so the scheduler can substitute the frame.
func safeRender(comp *Compositor, spec frameSpec, drawables []Drawable, info types.JobInfo) (frame *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("draw panicked: %v", r)
		}
	}()
	return comp.Render(spec, drawables, info)
}
