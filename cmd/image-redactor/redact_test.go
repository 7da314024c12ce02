package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/image-redactor/internal/config"
	"github.com/menta2k/image-redactor/pkg/types"
)

func TestParseBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    types.Box
		wantErr bool
	}{
		{"0.1,0.2,0.3,0.08", types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.08}, false},
		{" 0 , 0 , 1 , 1 ", types.Box{W: 1, H: 1}, false},
		{"0.1,0.2,0.3", types.Box{}, true},
		{"a,b,c,d", types.Box{}, true},
		{"0.1,0.2,0,0.1", types.Box{}, true},
		{"NaN,0.2,0.3,0.08", types.Box{}, true},
		{"0.1,0.2,NaN,0.08", types.Box{}, true},
		{"0.1,0.2,Inf,0.08", types.Box{}, true},
		{"0.1,-inf,0.3,0.08", types.Box{}, true},
	}
	for _, tt := range tests {
		got, err := parseBox(tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBox(%q) expected error", tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBox(%q) unexpected error: %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBox(%q) = %+v, want %+v", tt.value, got, tt.want)
		}
	}
}

func TestLoadBoxes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "boxes.yaml")
	writeFile(t, good, "boxes:\n  - {x: 0.1, y: 0.2, w: 0.3, h: 0.08}\n  - {x: 0.5, y: 0.5, w: 0.1, h: 0.1}\n")
	boxes, err := loadBoxes(good)
	if err != nil {
		t.Fatalf("loadBoxes failed: %v", err)
	}
	if len(boxes) != 2 || boxes[1].X != 0.5 {
		t.Errorf("unexpected boxes %+v", boxes)
	}

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "boxes:\n  - {x: 0.1, y: 0.2}\n")
	if _, err := loadBoxes(empty); err == nil || !strings.Contains(err.Error(), "no area") {
		t.Errorf("expected no area error, got %v", err)
	}

	for i, content := range []string{
		"boxes:\n  - {x: .nan, y: 0.2, w: 0.3, h: 0.08}\n",
		"boxes:\n  - {x: 0.1, y: 0.2, w: .inf, h: 0.08}\n",
		"boxes:\n  - {x: 0.1, y: 0.2, w: 0.3, h: .NaN}\n",
	} {
		path := filepath.Join(dir, fmt.Sprintf("nonfinite%d.yaml", i))
		writeFile(t, path, content)
		if _, err := loadBoxes(path); err == nil || !strings.Contains(err.Error(), "non-finite") {
			t.Errorf("case %d: expected non-finite error, got %v", i, err)
		}
	}

	if _, err := loadBoxes(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRedactCommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.Default().SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}

	in := filepath.Join(dir, "shot.png")
	writePNG(t, in, 200, 100)
	script := filepath.Join(dir, "drag.yaml")
	writeFile(t, script, `frame: {origin: {x: 0, y: 0}, width: 200, height: 100}
events:
  - {op: add, x: 0.5, y: 0.75}
  - {op: down, target: selected, x: 100, y: 75}
  - {op: move, x: 60, y: 75}
`)
	out := filepath.Join(dir, "out", "redacted.png")
	overlay := filepath.Join(dir, "out", "view.png")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{
		"redact", "-c", cfgPath,
		"-i", in, "-o", out,
		"--box", "0.1,0.1,0.3,0.08",
		"--script", script,
		"--overlay", overlay, "--preview",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("redact failed: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), out) {
		t.Errorf("expected output path in stdout, got %q", stdout.String())
	}

	img := readPNG(t, out)
	if !black(img.At(50, 14)) {
		t.Errorf("flag box not painted: %v", img.At(50, 14))
	}
	// scripted box: centered at (0.5, 0.75), then dragged 40px left
	if !black(img.At(60, 75)) {
		t.Errorf("scripted box not painted at its dragged position: %v", img.At(60, 75))
	}
	if black(img.At(125, 75)) {
		t.Error("scripted box still painted at its original right edge")
	}

	view := readPNG(t, overlay)
	if !black(view.At(50, 14)) {
		t.Errorf("preview overlay box not opaque: %v", view.At(50, 14))
	}
}

func TestRedactCommandOutputs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.Default().SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "My Shot.png")
	writePNG(t, in, 100, 50)
	outDir := filepath.Join(dir, "exports")
	overlay := filepath.Join(dir, "view.webp")

	run := func(args ...string) error {
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"redact", "-c", cfgPath, "-i", in, "--box", "0.1,0.1,0.3,0.3"}, args...))
		return cmd.Execute()
	}

	if err := run("--out-dir", outDir, "--overlay", overlay, "--quality", "80"); err != nil {
		t.Fatalf("redact failed: %v", err)
	}
	out := filepath.Join(outDir, "My Shot_redacted.png")
	if !black(readPNG(t, out).At(20, 10)) {
		t.Error("box not painted in --out-dir output")
	}
	data, err := os.ReadFile(overlay)
	if err != nil {
		t.Fatalf("webp overlay missing: %v", err)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Errorf("overlay is not a webp file")
	}

	err = run("--out-dir", outDir)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected overwrite refusal, got %v", err)
	}
	err = run("-o", filepath.Join(dir, "fresh.png"), "--overlay", overlay)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected overlay overwrite refusal, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "fresh.png")); !os.IsNotExist(err) {
		t.Error("refused run must not write any output")
	}
	if err := run("--out-dir", outDir, "--overlay", overlay, "--force", "--lossless"); err != nil {
		t.Errorf("--force should overwrite: %v", err)
	}
}

func TestRedactCommandErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.Default().SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "shot.png")
	writePNG(t, in, 20, 20)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input flag", []string{"redact", "-c", cfgPath}, "in"},
		{"bad box", []string{"redact", "-c", cfgPath, "-i", in, "--box", "1,2"}, "invalid box"},
		{"missing input file", []string{"redact", "-c", cfgPath, "-i", filepath.Join(dir, "nope.png")}, "failed to load image"},
		{"bad log level", []string{"redact", "-c", cfgPath, "-i", in, "--log-level", "loud"}, "unknown log level"},
		{"NaN box", []string{"redact", "-c", cfgPath, "-i", in, "--box", "0.1,0.1,NaN,0.1"}, "finite"},
		{"overlay extension", []string{"redact", "-c", cfgPath, "-i", in, "--overlay", filepath.Join(dir, "view.txt")}, "unsupported image extension"},
		{"quality range", []string{"redact", "-c", cfgPath, "-i", in, "--quality", "0"}, "quality"},
		{"out and out-dir", []string{"redact", "-c", cfgPath, "-i", in, "--out-dir", dir}, "out-dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append(tt.args, "-o", filepath.Join(dir, "out.png")))
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	return img
}

func black(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return r == 0 && g == 0 && b == 0 && a == 0xffff
}
