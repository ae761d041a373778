package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Category labels a photo with the stage of the job it documents.
// The set is fixed; callers assign one of these five values before
// photos reach the pipeline.
type Category string

const (
	CategoryIntake      Category = "intake"
	CategoryDisassembly Category = "disassembly"
	CategoryRepair      Category = "repair"
	CategoryPaint       Category = "paint"
	CategoryFinish      Category = "finish"
)

// Categories lists all valid labels in presentation order.
var Categories = []Category{
	CategoryIntake,
	CategoryDisassembly,
	CategoryRepair,
	CategoryPaint,
	CategoryFinish,
}

// Valid reports whether c is one of the five fixed labels.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Photo is a single input image. Exactly one of Ref or Data must be set:
// Ref is a file path or http(s) URL, Data holds already-read image bytes.
// Photos are immutable once handed to the pipeline and arrive pre-sorted
// by Sequence.
type Photo struct {
	Ref      string   `json:"ref,omitempty"`
	Data     []byte   `json:"-"`
	Category Category `json:"category"`
	Sequence int      `json:"sequence"`
}

// Source returns a short identifier for log lines and error messages.
func (p Photo) Source() string {
	if p.Ref != "" {
		return p.Ref
	}
	hash := sha256.Sum256(p.Data)
	return fmt.Sprintf("inline:%s", hex.EncodeToString(hash[:])[:12])
}

// JobInfo carries the metadata rendered into the overlay text. It is not
// validated by the pipeline beyond being copied onto frames.
type JobInfo struct {
	CarModel  string `json:"car_model"`
	JobNumber string `json:"job_number"`
}

// JobManifest is the on-disk input format consumed by the batch CLI:
// one job, its metadata and its ordered photo list.
type JobManifest struct {
	JobInfo
	Photos []Photo `json:"photos"`
}
