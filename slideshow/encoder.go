package slideshow

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"photoreel/config"
)

// Encoder is the sink side of the pipeline: it consumes composited RGBA
// frames and produces a single encoded video blob.
//
// Stop signals end of stream and must be idempotent: calling it after an
// error, a timeout, or a previous Stop has no further side effects.
// Fatal failures are published on Errors; Output blocks until the encoder
// has finalized and returns the finished blob. Close releases whatever
// the encoder holds on disk and is safe at any point, any number of
// times; after Output it has nothing left to do.
type Encoder interface {
	Start() error
	WriteFrame(frame *image.RGBA) error
	Stop()
	Errors() <-chan error
	Output(ctx context.Context) ([]byte, error)
	Close()
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process that
// encodes H.264/MP4 at the configured size, frame rate and bitrate.
type FFmpegEncoder struct {
	cfg     Config
	outPath string

	pr *io.PipeReader
	pw *io.PipeWriter

	errs chan error
	done chan struct{}

	started atomic.Bool
	stopped atomic.Bool
	runErr  error
}

// NewFFmpegEncoder prepares an encoder writing to a per-session temp
// file; the file is consumed and removed by Output.
func NewFFmpegEncoder(cfg Config) *FFmpegEncoder {
	return &FFmpegEncoder{
		cfg:     cfg,
		outPath: filepath.Join(os.TempDir(), fmt.Sprintf("%s%s", uuid.NewString(), config.OutputSuffix)),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the ffmpeg process and begins consuming frames from the
// internal pipe. Frames written before Start are rejected.
func (e *FFmpegEncoder) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("encoder already started")
	}
	e.pr, e.pw = io.Pipe()

	stream := ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", e.cfg.Width, e.cfg.Height),
		"framerate": e.cfg.FPS,
	}).Output(e.outPath, ffmpeg.KwArgs{
		"c:v":      config.VideoCodec,
		"pix_fmt":  config.VideoPixelFormat,
		"b:v":      e.cfg.BitrateBps,
		"preset":   config.VideoPreset,
		"movflags": "+faststart",
	}).OverWriteOutput().WithInput(e.pr)

	go func() {
		err := stream.Run()
		if err != nil {
			e.runErr = fmt.Errorf("ffmpeg failed: %w", err)
			// Unblock any writer stuck on the pipe.
			e.pr.CloseWithError(e.runErr)
			select {
			case e.errs <- e.runErr:
			default:
			}
		}
		close(e.done)
	}()
	return nil
}

// WriteFrame pushes one composited frame into the encode stream. The
// frame must span the full configured surface.
func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	if !e.started.Load() {
		return fmt.Errorf("encoder not started")
	}
	if want := e.cfg.Width * e.cfg.Height * 4; len(frame.Pix) != want || frame.Stride != e.cfg.Width*4 {
		return fmt.Errorf("frame is %dx%d, want %dx%d", frame.Rect.Dx(), frame.Rect.Dy(), e.cfg.Width, e.cfg.Height)
	}
	if _, err := e.pw.Write(frame.Pix); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Stop closes the frame stream so ffmpeg can flush and finalize the
// container. Safe to call any number of times, from any path.
func (e *FFmpegEncoder) Stop() {
	if !e.started.Load() {
		return
	}
	if e.stopped.CompareAndSwap(false, true) {
		e.pw.Close()
	}
}

// Errors reports fatal encoder failures. At most one error is published.
func (e *FFmpegEncoder) Errors() <-chan error {
	return e.errs
}

// Output waits for ffmpeg to finish and returns the encoded blob. The
// temp file is removed once read.
func (e *FFmpegEncoder) Output(ctx context.Context) ([]byte, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.runErr != nil {
		return nil, e.runErr
	}
	defer os.Remove(e.outPath)
	data, err := os.ReadFile(e.outPath)
	if err != nil {
		return nil, fmt.Errorf("read encoded output: %w", err)
	}
	return data, nil
}

// Close removes the temp file. On abort paths ffmpeg may already have
// finalized a partial file there; on the success path Output has
// consumed it and this is a no-op.
func (e *FFmpegEncoder) Close() {
	os.Remove(e.outPath)
}
