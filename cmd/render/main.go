package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"photoreel/config"
	"photoreel/slideshow"
	"photoreel/types"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	input := flag.String("input", config.InputDir, "job manifest JSON file, or a directory of manifests")
	outDir := flag.String("out", config.OutputDir, "directory for generated videos")
	timeout := flag.Duration("timeout", config.RenderTimeout, "per-job render timeout")
	skipBad := flag.Bool("skip-bad-photos", false, "drop undecodable photos instead of failing the job")
	flag.Parse()

	// Ctrl-C cancels the in-flight render through the same path as the
	// internal timeout.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifests, err := collectManifests(*input)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if len(manifests) == 0 {
		log.Printf("No manifest JSON files found in %s", *input)
		return
	}
	log.Printf("Found %d job(s) to render", len(manifests))

	policy := slideshow.ImagePolicyAbort
	if *skipBad {
		policy = slideshow.ImagePolicySkip
	}

	failed := 0
	for i, path := range manifests {
		log.Printf("[%d/%d] Rendering: %s", i+1, len(manifests), filepath.Base(path))
		if err := renderJob(ctx, path, *outDir, *timeout, policy); err != nil {
			log.Printf("Failed to render %s: %v", path, err)
			failed++
		}
		if ctx.Err() != nil {
			log.Printf("Interrupted, stopping")
			break
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
	log.Println("All jobs rendered!")
}

func collectManifests(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	return filepath.Glob(filepath.Join(input, "*.json"))
}

func renderJob(ctx context.Context, manifestPath, outDir string, timeout time.Duration, policy slideshow.ImagePolicy) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest types.JobManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.JobNumber == "" {
		return fmt.Errorf("manifest has no job_number")
	}
	for _, p := range manifest.Photos {
		if !p.Category.Valid() {
			return fmt.Errorf("photo %s has unknown category %q", p.Source(), p.Category)
		}
	}

	// Manifest photo refs are relative to the manifest file.
	base := filepath.Dir(manifestPath)
	for i, p := range manifest.Photos {
		if p.Ref != "" && !filepath.IsAbs(p.Ref) && !isURL(p.Ref) {
			manifest.Photos[i].Ref = filepath.Join(base, p.Ref)
		}
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(fmt.Sprintf("Job %s", manifest.JobNumber)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	gen := slideshow.New(slideshow.Config{
		Timeout:      timeout,
		OnImageError: policy,
		OnProgress:   func(percent int) { _ = bar.Set(percent) },
	})

	out, err := gen.Generate(ctx, manifest.Photos, manifest.JobInfo)
	if err != nil {
		return err
	}

	path, err := out.Save(outDir)
	if err != nil {
		return err
	}
	log.Printf("Video created: %s (%d bytes, %s)", path, len(out.Data), out.Duration)
	return nil
}

func isURL(ref string) bool {
	return len(ref) > 7 && (ref[:7] == "http://" || (len(ref) > 8 && ref[:8] == "https://"))
}
