package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	redactor "github.com/menta2k/image-redactor"
	"github.com/menta2k/image-redactor/internal/utils"
	"github.com/menta2k/image-redactor/pkg/session"
	"github.com/menta2k/image-redactor/pkg/types"
)

// NewRedactCmd creates the redact command
func NewRedactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redact",
		Short: "Flatten redaction boxes into an image and write a PNG",
		Long: `redact loads an image from a file, an http(s) URL or a data: URL, covers the
given boxes with rounded black rectangles and writes the result as PNG.

Boxes are x,y,w,h in normalized image coordinates. A script replays pointer
events against the editor, as if the boxes were placed and dragged by hand.

Examples:
  # Cover one region
  image-redactor redact -i shot.png --box 0.10,0.20,0.30,0.08

  # Boxes from a file, written as out/shot_redacted.png
  image-redactor redact -i shot.png --boxes boxes.yaml --out-dir out

  # Replay an editing script and also write the editor view as WebP
  image-redactor redact -i shot.png --script drag.yaml --overlay view.webp --preview

Existing output files are left alone unless --force is given.

Boxes file example:
  boxes:
    - {x: 0.10, y: 0.20, w: 0.30, h: 0.08}
    - {x: 0.55, y: 0.70, w: 0.25, h: 0.05}`,
		Args: cobra.NoArgs,
		RunE: runRedactCmd,
	}

	cmd.Flags().StringP("in", "i", "", "Input image path, http(s) URL or data: URL")
	cmd.Flags().StringP("out", "o", "", "Output PNG path (default: export.filename from the configuration)")
	cmd.Flags().String("out-dir", "", "Write <input name>_redacted.png into this directory")
	cmd.Flags().StringArrayP("box", "b", nil, "Redaction box as x,y,w,h (repeatable)")
	cmd.Flags().String("boxes", "", "YAML file listing redaction boxes")
	cmd.Flags().StringP("script", "s", "", "YAML editing script to replay")
	cmd.Flags().String("overlay", "", "Also write the editor view with box outlines to this path; the extension picks the format")
	cmd.Flags().Bool("preview", false, "Render the overlay in preview mode (opaque boxes)")
	cmd.Flags().Int("quality", 90, "Overlay quality for jpeg and webp (1-100)")
	cmd.Flags().Bool("lossless", false, "Write a webp overlay losslessly")
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing output files")
	cmd.Flags().DurationP("timeout", "t", 0, "Overall time limit (0 disables)")
	_ = cmd.MarkFlagRequired("in")
	cmd.MarkFlagsMutuallyExclusive("out", "out-dir")

	return cmd
}

// redactRequest holds the parsed redact flags
type redactRequest struct {
	in       string
	out      string
	outDir   string
	boxes    []types.Box
	script   *session.Script
	overlay  string
	preview  bool
	quality  int
	lossless bool
	force    bool
}

func runRedactCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	req, err := buildRedactRequest(cmd)
	if err != nil {
		return err
	}
	switch {
	case req.outDir != "":
		req.out = utils.GenerateOutputFilename(req.in, req.outDir, "_redacted")
	case req.out == "":
		req.out = cfg.Export.Filename
	}
	if err := checkOverwrite(req); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r := redactor.NewWithOptions(redactorOptions(cfg, logger))
	if err := runRedact(ctx, r, req, logger); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", req.out)
	return nil
}

func buildRedactRequest(cmd *cobra.Command) (*redactRequest, error) {
	req := &redactRequest{}
	req.in, _ = cmd.Flags().GetString("in")
	req.out, _ = cmd.Flags().GetString("out")
	req.outDir, _ = cmd.Flags().GetString("out-dir")
	req.overlay, _ = cmd.Flags().GetString("overlay")
	req.preview, _ = cmd.Flags().GetBool("preview")
	req.quality, _ = cmd.Flags().GetInt("quality")
	req.lossless, _ = cmd.Flags().GetBool("lossless")
	req.force, _ = cmd.Flags().GetBool("force")

	if req.overlay != "" && !utils.IsImageFile(req.overlay) {
		return nil, fmt.Errorf("overlay %s: unsupported image extension (want one of %s)",
			req.overlay, strings.Join(utils.ImageExtensions, ", "))
	}
	if req.quality < 1 || req.quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", req.quality)
	}

	values, _ := cmd.Flags().GetStringArray("box")
	for _, value := range values {
		b, err := parseBox(value)
		if err != nil {
			return nil, err
		}
		req.boxes = append(req.boxes, b)
	}

	if path, _ := cmd.Flags().GetString("boxes"); path != "" {
		boxes, err := loadBoxes(path)
		if err != nil {
			return nil, err
		}
		req.boxes = append(req.boxes, boxes...)
	}

	if path, _ := cmd.Flags().GetString("script"); path != "" {
		s, err := session.LoadScript(path)
		if err != nil {
			return nil, err
		}
		req.script = s
	}
	return req, nil
}

// checkOverwrite refuses to replace existing outputs unless forced
func checkOverwrite(req *redactRequest) error {
	if req.force {
		return nil
	}
	for _, path := range []string{req.out, req.overlay} {
		if path != "" && utils.FileExists(path) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return nil
}

// runRedact drives one editing session: load, place boxes, replay the
// script, then export
func runRedact(ctx context.Context, r *redactor.Redactor, req *redactRequest, logger *slog.Logger) error {
	img, info, err := r.Acquire(ctx, req.in)
	if err != nil {
		return err
	}
	logger.Info("image loaded", "source", req.in, "width", info.Width, "height", info.Height)

	exports := make(chan session.ExportResult, 1)
	loop := r.NewLoop(r.NewEditor(), session.LoopOptions{
		OnExport: func(res session.ExportResult) { exports <- res },
	})
	defer loop.Close()

	var loadErr error
	if err := loop.Do(func(e *session.Editor) {
		if loadErr = e.Load(img); loadErr != nil {
			return
		}
		for _, b := range req.boxes {
			e.AddBoxAt(b)
		}
	}); err != nil {
		return err
	}
	if loadErr != nil {
		return loadErr
	}

	if req.script != nil {
		if err := req.script.Play(loop); err != nil {
			return err
		}
		loop.Post(session.PointerUp{})
	}

	if req.overlay != "" {
		if err := writeOverlay(r, loop, req); err != nil {
			return err
		}
		logger.Info("overlay written", "path", req.overlay)
	}

	start := time.Now()
	loop.Export()
	select {
	case res := <-exports:
		if res.Err != nil {
			return fmt.Errorf("export failed: %w", res.Err)
		}
		if err := utils.WriteFile(req.out, res.Data); err != nil {
			return err
		}
		logger.Info("export written", "path", req.out, "size", utils.FormatFileSize(int64(len(res.Data))), "elapsed", time.Since(start))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeOverlay(r *redactor.Redactor, loop *session.Loop, req *redactRequest) error {
	var view image.Image
	var viewErr error
	if err := loop.Do(func(e *session.Editor) {
		if req.preview {
			e.SetPreview(true)
		}
		view, viewErr = e.Overlay()
	}); err != nil {
		return err
	}
	if viewErr != nil {
		return viewErr
	}
	if err := r.SaveImage(view, req.overlay, req.quality, req.lossless); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

// parseBox parses "x,y,w,h" in normalized coordinates
func parseBox(value string) (types.Box, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return types.Box{}, fmt.Errorf("invalid box %q: want x,y,w,h", value)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Box{}, fmt.Errorf("invalid box %q: %w", value, err)
		}
		v[i] = f
	}
	b := types.Box{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if !b.Finite() {
		return types.Box{}, fmt.Errorf("invalid box %q: coordinates must be finite numbers", value)
	}
	if b.W <= 0 || b.H <= 0 {
		return types.Box{}, fmt.Errorf("invalid box %q: width and height must be positive", value)
	}
	return b, nil
}

// loadBoxes reads a YAML boxes file
func loadBoxes(path string) ([]types.Box, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boxes file: %w", err)
	}
	var file struct {
		Boxes []types.Box `yaml:"boxes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse boxes file: %w", err)
	}
	for i, b := range file.Boxes {
		if !b.Finite() {
			return nil, fmt.Errorf("boxes file %s: box %d has a non-finite coordinate", path, i+1)
		}
		if b.W <= 0 || b.H <= 0 {
			return nil, fmt.Errorf("boxes file %s: box %d has no area", path, i+1)
		}
	}
	return file.Boxes, nil
}
