package slideshow

import (
	"image"
	"os"
	"testing"
)

// These cover the encoder's pre-start contract only; the encode path
// itself needs an ffmpeg binary and is exercised by the batch CLI.

func TestFFmpegEncoderRejectsFramesBeforeStart(t *testing.T) {
	enc := NewFFmpegEncoder(testConfig())
	frame := image.NewRGBA(image.Rect(0, 0, 108, 192))
	if err := enc.WriteFrame(frame); err == nil {
		t.Fatal("expected error writing before Start")
	}
}

func TestFFmpegEncoderStopBeforeStartIsSafe(t *testing.T) {
	enc := NewFFmpegEncoder(testConfig())
	enc.Stop()
	enc.Stop()
}

func TestFFmpegEncoderCloseRemovesTempFile(t *testing.T) {
	enc := NewFFmpegEncoder(testConfig())

	// Stand in for a partial file left behind by an aborted encode.
	if err := os.WriteFile(enc.outPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("seed temp file: %v", err)
	}

	enc.Close()

	if _, err := os.Stat(enc.outPath); !os.IsNotExist(err) {
		t.Fatalf("temp file still present after Close (stat err: %v)", err)
	}

	// Close with nothing on disk is a no-op.
	enc.Close()
}
