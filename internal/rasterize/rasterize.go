// Package rasterize turns one page of a source document into a single
// raster image by shelling out to an external converter. The pipeline
// treats it as an opaque page-to-image collaborator.
package rasterize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tlacroix/receiptledger/internal/common"
)

type Rasterizer struct {
	cfg    common.RasterConfig
	runner Runner
	log    *slog.Logger
}

func New(cfg common.RasterConfig, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{cfg: cfg, runner: execRunner{}, log: logger}
}

// NewWithRunner is the test seam.
func NewWithRunner(cfg common.RasterConfig, r Runner, logger *slog.Logger) *Rasterizer {
	raster := New(cfg, logger)
	raster.runner = r
	return raster
}

// PageToPNG renders page (1-based) of the document at path into a PNG in
// a fresh temp directory. The returned cleanup removes the temp output
// and must run once the image bytes have been consumed, including on
// cancellation.
func (r *Rasterizer) PageToPNG(ctx context.Context, path string, page int) (string, func(), error) {
	if page < 1 {
		return "", nil, common.NewValidationError("page", "must be >= 1")
	}

	// Images pass through untouched: the extractor consumes them as-is.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return path, func() {}, nil
	}

	tmpDir, err := os.MkdirTemp("", "rl-raster-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	dpi := r.cfg.DPI
	if dpi <= 0 {
		dpi = 200
	}

	var out string
	switch r.cfg.Tool {
	case "pdftoppm", "":
		// pdftoppm writes <prefix>-<page>.png
		prefix := filepath.Join(tmpDir, "page")
		p := strconv.Itoa(page)
		if _, errb, err2 := r.runner.Run(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(dpi), "-f", p, "-l", p, path, prefix); err2 != nil {
			cleanup()
			return "", nil, fmt.Errorf("pdftoppm failed: %w: %s", err2, truncate(string(errb), 512))
		}
		// pdftoppm zero-pads the page suffix depending on the page count,
		// so resolve the output by glob instead of reconstructing it.
		matches, _ := filepath.Glob(prefix + "-*.png")
		if len(matches) > 0 {
			out = matches[0]
		} else {
			out = prefix + "-" + p + ".png"
		}
	case "magick":
		out = filepath.Join(tmpDir, "page.png")
		src := fmt.Sprintf("%s[%d]", path, page-1)
		if _, errb, err2 := r.runner.Run(ctx, "magick", "-density", strconv.Itoa(dpi), src, out); err2 != nil {
			cleanup()
			return "", nil, fmt.Errorf("magick convert failed: %w: %s", err2, truncate(string(errb), 512))
		}
	default:
		cleanup()
		return "", nil, fmt.Errorf("rasterizer not supported: set RASTER_TOOL to one of: pdftoppm | magick")
	}

	if _, statErr := os.Stat(out); statErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("rasterization produced no output: %v", statErr)
	}
	return out, cleanup, nil
}
