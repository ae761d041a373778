package slideshow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"photoreel/config"
	"photoreel/types"
)

// VideoOutput is the encoded result of one successful render. Ownership
// of Data transfers to the caller.
type VideoOutput struct {
	Data      []byte
	SessionID string
	JobNumber string
	Duration  time.Duration
}

// Save writes the blob to dir under the job-number-derived file name and
// returns the full path.
func (v *VideoOutput) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := v.JobNumber
	if name == "" {
		name = v.SessionID
	}
	path := filepath.Join(dir, name+config.OutputSuffix)
	if err := os.WriteFile(path, v.Data, 0o644); err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}
	return path, nil
}

// Generator is the pipeline's single entry point. One Generator can run
// any number of jobs; each call to Generate builds an independent
// RenderSession with its own surface and encoder, so concurrent jobs
// share nothing.
type Generator struct {
	cfg        Config
	newEncoder func(Config) Encoder
}

// New returns a Generator encoding through ffmpeg.
func New(cfg Config) *Generator {
	return NewWithEncoder(cfg, func(c Config) Encoder { return NewFFmpegEncoder(c) })
}

// NewWithEncoder substitutes the encoder sink; the scheduler and
// compositor are unaffected by the choice of sink.
func NewWithEncoder(cfg Config, factory func(Config) Encoder) *Generator {
	return &Generator{cfg: cfg.withDefaults(), newEncoder: factory}
}

// Generate renders the photo set into a single video blob. It validates
// input before allocating anything, then runs the load barrier, the
// frame loop and the encoder under one timeout. Whichever of the three
// completion signals (normal stop, encoder error, timeout/cancellation)
// arrives first resolves the session; the others become no-ops. Loaded
// drawables are released and the encoder stopped on every terminal path,
// exactly once.
func (g *Generator) Generate(ctx context.Context, photos []types.Photo, info types.JobInfo) (*VideoOutput, error) {
	out, _, err := g.generate(ctx, photos, info)
	return out, err
}

// generate is Generate with the session exposed for white-box tests.
func (g *Generator) generate(ctx context.Context, photos []types.Photo, info types.JobInfo) (*VideoOutput, *RenderSession, error) {
	if len(photos) == 0 {
		return nil, nil, ErrNoInput
	}
	cfg := g.cfg

	comp, err := NewCompositor(cfg)
	if err != nil {
		return nil, nil, err
	}

	sess := newRenderSession()
	log.Printf("[Generator] session %s: %d photos, job %q", sess.ID, len(photos), info.JobNumber)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	enc := g.newEncoder(cfg)
	if err := enc.Start(); err != nil {
		sess.guard.resolve(OutcomeFailed)
		return nil, sess, fmt.Errorf("%w: %v", ErrEncoder, err)
	}

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			enc.Stop()
			enc.Close()
			sess.release()
			cancel()
		})
	}
	defer cleanup()

	sess.setState(StateLoading)
	drawables, err := LoadPhotos(ctx, photos, cfg.OnImageError)
	if err != nil {
		if ctx.Err() != nil {
			return nil, sess, resolveInterrupted(sess, ctx.Err())
		}
		sess.guard.resolve(OutcomeFailed)
		return nil, sess, err
	}
	sess.setDrawables(drawables)

	tl := newTimeline(len(drawables), cfg)
	sess.totalFrames = tl.totalFrames
	sess.setState(StateRendering)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		renderLoop(sess, tl, comp, enc, info, cfg.OnProgress)
	}()

	select {
	case <-schedDone:
		// The render loop returns early when the encoder refuses a
		// frame; only a full frame count is a completed stream.
		if got := sess.FrameIndex(); got != tl.totalFrames {
			if ctx.Err() != nil {
				return nil, sess, resolveInterrupted(sess, ctx.Err())
			}
			sess.guard.resolve(OutcomeFailed)
			select {
			case err := <-enc.Errors():
				return nil, sess, fmt.Errorf("%w: %v", ErrEncoder, err)
			default:
			}
			return nil, sess, fmt.Errorf("%w: stream closed at frame %d of %d", ErrEncoder, got, tl.totalFrames)
		}

		// Normal path: the last frame has been written. Closing the
		// stream lets the encoder flush and finalize.
		enc.Stop()
		data, err := enc.Output(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, sess, resolveInterrupted(sess, ctx.Err())
			}
			sess.guard.resolve(OutcomeFailed)
			return nil, sess, fmt.Errorf("%w: %v", ErrEncoder, err)
		}
		sess.guard.resolve(OutcomeCompleted)
		log.Printf("[Generator] session %s: completed, %d bytes", sess.ID, len(data))
		return &VideoOutput{
			Data:      data,
			SessionID: sess.ID,
			JobNumber: info.JobNumber,
			Duration:  time.Duration(tl.totalFrames) * time.Second / time.Duration(cfg.FPS),
		}, sess, nil

	case err := <-enc.Errors():
		sess.guard.resolve(OutcomeFailed)
		log.Printf("[Generator] session %s: encoder error: %v", sess.ID, err)
		return nil, sess, fmt.Errorf("%w: %v", ErrEncoder, err)

	case <-ctx.Done():
		return nil, sess, resolveInterrupted(sess, ctx.Err())
	}
}

// resolveInterrupted maps a context failure onto the session outcome:
// the internal deadline resolves as timed out, a caller cancellation as
// failed. Both share this single path.
func resolveInterrupted(sess *RenderSession, ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		sess.guard.resolve(OutcomeTimedOut)
		log.Printf("[Generator] session %s: timed out at frame %d/%d", sess.ID, sess.FrameIndex(), sess.TotalFrames())
		return ErrTimedOut
	}
	sess.guard.resolve(OutcomeFailed)
	return ctxErr
}
