package slideshow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photoreel/types"
)

// fakeEncoder stands in for the ffmpeg sink so lifecycle behavior can be
// exercised without spawning processes.
type fakeEncoder struct {
	mu            sync.Mutex
	started       bool
	stopped       bool
	stopCalls     int
	closeCalls    int
	frames        int
	frameDelay    time.Duration
	startErr      error
	failOnFrame   int
	rejectOnFrame int
	failErr       error

	capture  bool
	captured []*image.RGBA

	errs     chan error
	done     chan struct{}
	doneOnce sync.Once
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
}

func (f *fakeEncoder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeEncoder) WriteFrame(frame *image.RGBA) error {
	if f.frameDelay > 0 {
		time.Sleep(f.frameDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return errors.New("not started")
	}
	if f.stopped {
		return errors.New("stream closed")
	}
	if f.failErr != nil {
		return f.failErr
	}
	if f.rejectOnFrame > 0 && f.frames+1 == f.rejectOnFrame {
		return errors.New("frame rejected")
	}
	f.frames++
	if f.capture {
		f.captured = append(f.captured, frame)
	}
	if f.failOnFrame > 0 && f.frames == f.failOnFrame {
		f.failErr = errors.New("encode fault")
		f.errs <- f.failErr
		f.doneOnce.Do(func() { close(f.done) })
		return f.failErr
	}
	return nil
}

func (f *fakeEncoder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.stopped = true
	f.doneOnce.Do(func() { close(f.done) })
}

func (f *fakeEncoder) Close() {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
}

func (f *fakeEncoder) Errors() <-chan error { return f.errs }

func (f *fakeEncoder) Output(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return []byte(fmt.Sprintf("mp4:%d-frames", f.frames)), nil
}

func (f *fakeEncoder) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *fakeEncoder) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

func (f *fakeEncoder) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func testPhotos(t *testing.T, n int) []types.Photo {
	t.Helper()
	photos := make([]types.Photo, n)
	for i := range photos {
		photos[i] = types.Photo{
			Data:     pngBytes(t, 8, 8),
			Category: types.Categories[i%len(types.Categories)],
			Sequence: i,
		}
	}
	return photos
}

func TestGenerateFivePhotoJob(t *testing.T) {
	enc := newFakeEncoder()
	cfg := testConfig()

	var mu sync.Mutex
	var percents []int
	cfg.OnProgress = func(p int) {
		mu.Lock()
		percents = append(percents, p)
		mu.Unlock()
	}

	gen := NewWithEncoder(cfg, func(Config) Encoder { return enc })
	out, sess, err := gen.generate(context.Background(), testPhotos(t, 5), types.JobInfo{CarModel: "GT-R", JobNumber: "A-1001"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if sess.TotalFrames() != 300 {
		t.Fatalf("totalFrames = %d; want 300", sess.TotalFrames())
	}
	if got := sess.FrameIndex(); got != 300 {
		t.Fatalf("frameIndex = %d; want 300", got)
	}
	if got := enc.frameCount(); got != 300 {
		t.Fatalf("encoder received %d frames; want 300", got)
	}
	if sess.Outcome() != OutcomeCompleted {
		t.Fatalf("outcome = %v; want completed", sess.Outcome())
	}
	if len(out.Data) == 0 {
		t.Fatal("no video data returned")
	}
	if out.Duration != 10*time.Second {
		t.Fatalf("duration = %v; want 10s", out.Duration)
	}
	if sess.Drawables() != nil {
		t.Fatal("drawables still reachable after completion")
	}
	if enc.closeCount() == 0 {
		t.Fatal("encoder not closed after completion")
	}

	mu.Lock()
	defer mu.Unlock()
	hundreds := 0
	last := -1
	for _, p := range percents {
		if p < last {
			t.Fatalf("progress went backwards: %v", percents)
		}
		if p == 100 {
			hundreds++
		}
		last = p
	}
	if hundreds != 1 {
		t.Fatalf("progress hit 100 %d times; want exactly once", hundreds)
	}
	if last != 100 {
		t.Fatalf("final progress = %d; want 100", last)
	}
}

func TestGenerateNoInput(t *testing.T) {
	factoryCalls := 0
	gen := NewWithEncoder(testConfig(), func(Config) Encoder {
		factoryCalls++
		return newFakeEncoder()
	})

	_, err := gen.Generate(context.Background(), nil, types.JobInfo{})
	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("err = %v; want ErrNoInput", err)
	}
	if factoryCalls != 0 {
		t.Fatal("encoder allocated despite empty input")
	}
}

func TestGenerateLoadFailureAbortsWholeJob(t *testing.T) {
	enc := newFakeEncoder()
	gen := NewWithEncoder(testConfig(), func(Config) Encoder { return enc })

	photos := testPhotos(t, 5)
	photos[2].Data = []byte("corrupt")

	out, sess, err := gen.generate(context.Background(), photos, types.JobInfo{})
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("err = %v; want ErrLoad", err)
	}
	if out != nil {
		t.Fatal("got partial output on load failure")
	}
	if got := enc.frameCount(); got != 0 {
		t.Fatalf("%d frames produced before load failure surfaced", got)
	}
	if sess.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", sess.Outcome())
	}
	if sess.Drawables() != nil {
		t.Fatal("drawables leaked on load failure")
	}
}

func TestGenerateTimesOut(t *testing.T) {
	enc := newFakeEncoder()
	enc.frameDelay = 20 * time.Millisecond

	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond

	gen := NewWithEncoder(cfg, func(Config) Encoder { return enc })
	out, sess, err := gen.generate(context.Background(), testPhotos(t, 5), types.JobInfo{})

	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v; want ErrTimedOut", err)
	}
	if out != nil {
		t.Fatal("got output despite timeout")
	}
	if sess.Outcome() != OutcomeTimedOut {
		t.Fatalf("outcome = %v; want timed_out", sess.Outcome())
	}
	if sess.FrameIndex() >= sess.TotalFrames() {
		t.Fatal("timeout test rendered the full job; lower the deadline")
	}
	if enc.stopCount() == 0 {
		t.Fatal("encoder not stopped on timeout")
	}
	if enc.closeCount() == 0 {
		t.Fatal("encoder not closed on timeout")
	}
	if sess.Drawables() != nil {
		t.Fatal("drawables leaked on timeout")
	}
}

func TestGenerateStartFailureResolvesFailed(t *testing.T) {
	enc := newFakeEncoder()
	enc.startErr = errors.New("no encoder binary")

	gen := NewWithEncoder(testConfig(), func(Config) Encoder { return enc })
	_, sess, err := gen.generate(context.Background(), testPhotos(t, 2), types.JobInfo{})

	if !errors.Is(err, ErrEncoder) {
		t.Fatalf("err = %v; want ErrEncoder", err)
	}
	if sess.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed, not pending", sess.Outcome())
	}
}

func TestGenerateRejectedFrameFailsJob(t *testing.T) {
	// The encoder refuses a frame without publishing on Errors; the early
	// render-loop return must not pass for completion.
	enc := newFakeEncoder()
	enc.rejectOnFrame = 10

	gen := NewWithEncoder(testConfig(), func(Config) Encoder { return enc })
	out, sess, err := gen.generate(context.Background(), testPhotos(t, 3), types.JobInfo{})

	if !errors.Is(err, ErrEncoder) {
		t.Fatalf("err = %v; want ErrEncoder", err)
	}
	if out != nil {
		t.Fatal("got output from a truncated stream")
	}
	if sess.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", sess.Outcome())
	}
	if sess.FrameIndex() == sess.TotalFrames() {
		t.Fatal("frame counter reports a full stream despite the rejection")
	}
}

func TestGenerateEncoderFailure(t *testing.T) {
	enc := newFakeEncoder()
	enc.failOnFrame = 10

	gen := NewWithEncoder(testConfig(), func(Config) Encoder { return enc })
	out, sess, err := gen.generate(context.Background(), testPhotos(t, 3), types.JobInfo{})

	if !errors.Is(err, ErrEncoder) {
		t.Fatalf("err = %v; want ErrEncoder", err)
	}
	if out != nil {
		t.Fatal("got output despite encoder failure")
	}
	if sess.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", sess.Outcome())
	}
}

func TestGenerateCallerCancellation(t *testing.T) {
	enc := newFakeEncoder()
	enc.frameDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	gen := NewWithEncoder(testConfig(), func(Config) Encoder { return enc })
	_, sess, err := gen.generate(ctx, testPhotos(t, 5), types.JobInfo{})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if sess.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", sess.Outcome())
	}
	if sess.Drawables() != nil {
		t.Fatal("drawables leaked on cancellation")
	}
}

func TestGenerateStopIsIdempotent(t *testing.T) {
	enc := newFakeEncoder()
	if err := enc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	enc.Stop()
	enc.Stop()
	enc.Stop()

	if got := enc.stopCount(); got != 3 {
		t.Fatalf("stop calls = %d", got)
	}
	// The stream is closed exactly once; output is still accessible.
	if _, err := enc.Output(context.Background()); err != nil {
		t.Fatalf("output after repeated stop: %v", err)
	}
}

func TestGenerateRaceHasExactlyOneOutcome(t *testing.T) {
	// Timeout tuned to land on top of natural completion; whichever
	// signal wins, the returned error and the recorded outcome must
	// agree, and there is never a second resolution.
	for i := 0; i < 30; i++ {
		enc := newFakeEncoder()
		enc.frameDelay = 3 * time.Millisecond

		cfg := testConfig()
		cfg.PhotoDuration = 100 * time.Millisecond
		cfg.FPS = 10 // 1 frame total
		cfg.Timeout = 3 * time.Millisecond

		gen := NewWithEncoder(cfg, func(Config) Encoder { return enc })
		out, sess, err := gen.generate(context.Background(), testPhotos(t, 1), types.JobInfo{})

		switch {
		case err == nil:
			if sess.Outcome() != OutcomeCompleted {
				t.Fatalf("iteration %d: nil error but outcome %v", i, sess.Outcome())
			}
			if out == nil {
				t.Fatalf("iteration %d: nil error but no output", i)
			}
		case errors.Is(err, ErrTimedOut):
			if sess.Outcome() != OutcomeTimedOut {
				t.Fatalf("iteration %d: timed-out error but outcome %v", i, sess.Outcome())
			}
			if out != nil {
				t.Fatalf("iteration %d: output returned alongside timeout", i)
			}
		default:
			t.Fatalf("iteration %d: unexpected error %v", i, err)
		}

		if sess.guard.resolve(OutcomeFailed) {
			t.Fatalf("iteration %d: guard still pending after Generate returned", i)
		}
	}
}

func faultLoopConfig() Config {
	cfg := testConfig()
	cfg.FPS = 10
	cfg.PhotoDuration = 500 * time.Millisecond
	cfg.TransitionDuration = 0 // alpha 1 everywhere, so the broken photo is always drawn
	return cfg
}

func runFaultLoop(t *testing.T, cfg Config, drawables []Drawable) (*RenderSession, *fakeEncoder) {
	t.Helper()
	comp, err := NewCompositor(cfg)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}

	sess := newRenderSession()
	sess.setDrawables(drawables)
	tl := newTimeline(len(drawables), cfg)
	sess.totalFrames = tl.totalFrames

	enc := newFakeEncoder()
	enc.capture = true
	if err := enc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	renderLoop(sess, tl, comp, enc, types.JobInfo{}, nil)
	return sess, enc
}

func TestRenderLoopSubstitutesBackgroundBeforeFirstGoodFrame(t *testing.T) {
	// First drawable is broken (nil surface); drawing it panics. With no
	// good frame yet, the scheduler must emit background frames so the
	// stream still carries one frame per tick.
	sess, enc := runFaultLoop(t, faultLoopConfig(), []Drawable{
		{Category: types.CategoryIntake},
		uniformDrawable(red, 8, 8),
	})

	if got := sess.FrameIndex(); got != 10 {
		t.Fatalf("frameIndex = %d; want 10", got)
	}
	if got := enc.frameCount(); got != 10 {
		t.Fatalf("encoder received %d frames; want one per tick", got)
	}
	if px := enc.captured[0].RGBAAt(54, 92); px != backgroundColor {
		t.Fatalf("substitute frame center = %v; want background %v", px, backgroundColor)
	}
	if !bytes.Equal(enc.captured[4].Pix, enc.captured[0].Pix) {
		t.Fatal("substitute frames differ within the faulty photo")
	}
	if px := enc.captured[5].RGBAAt(54, 92); px.R < 0xF0 {
		t.Fatalf("first healthy frame center = %v; want the red photo", px)
	}
}

func TestRenderLoopHoldsLastGoodFrameOnDrawFault(t *testing.T) {
	// Second drawable is broken; its frames must repeat the last frame
	// that drew successfully.
	sess, enc := runFaultLoop(t, faultLoopConfig(), []Drawable{
		uniformDrawable(red, 8, 8),
		{Category: types.CategoryIntake},
	})

	if got := sess.FrameIndex(); got != 10 {
		t.Fatalf("frameIndex = %d; want 10", got)
	}
	if got := enc.frameCount(); got != 10 {
		t.Fatalf("encoder received %d frames; want one per tick", got)
	}
	if !bytes.Equal(enc.captured[9].Pix, enc.captured[4].Pix) {
		t.Fatal("faulty photo's frames do not repeat the last good frame")
	}
	if px := enc.captured[9].RGBAAt(54, 92); px.R < 0xF0 {
		t.Fatalf("held frame center = %v; want the red photo", px)
	}
}

func TestRenderLoopStopsWhenGuardResolved(t *testing.T) {
	cfg := testConfig()
	comp, err := NewCompositor(cfg)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}

	sess := newRenderSession()
	sess.setDrawables([]Drawable{uniformDrawable(red, 4, 4)})
	tl := newTimeline(1, cfg)
	sess.totalFrames = tl.totalFrames
	sess.guard.resolve(OutcomeTimedOut)

	enc := newFakeEncoder()
	if err := enc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	renderLoop(sess, tl, comp, enc, types.JobInfo{}, nil)

	if got := enc.frameCount(); got != 0 {
		t.Fatalf("%d frames produced after terminal resolution", got)
	}
}

func TestVideoOutputSaveNamesFileFromJobNumber(t *testing.T) {
	dir := t.TempDir()
	out := &VideoOutput{Data: []byte("mp4"), JobNumber: "A-1001"}

	path, err := out.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(dir, "A-1001_reel.mp4"); path != want {
		t.Fatalf("path = %q; want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mp4" {
		t.Fatalf("saved file wrong: %q, %v", data, err)
	}
}
