package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEdit(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	writePNG(t, source)

	scriptPath := filepath.Join(dir, "edits.yaml")
	if err := os.WriteFile(scriptPath, []byte("steps:\n  - op: format\n    format: bmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		Name     string
		Args     []string
		Expected string
		Format   string
	}{
		{"Exports without a script", nil, "photo.png", "png"},
		{"Exports after a script", []string{"--script", scriptPath}, "photo.bmp", "bmp"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			out := t.TempDir()

			var stdout bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&stdout)
			cmd.SetArgs(append([]string{"edit", source, "--out", out, "--log-level", "fatal"}, test.Args...))

			if err := cmd.ExecuteContext(context.Background()); err != nil {
				t.Fatal(err)
			}

			path := strings.TrimSpace(stdout.String())
			if path != filepath.Join(out, test.Expected) {
				t.Fatalf("wrong path %q", path)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			config, format, err := image.DecodeConfig(f)
			if err != nil {
				t.Fatal(err)
			}

			if format != test.Format {
				t.Errorf("wrong format %s", format)
			}

			if config.Width != 320 || config.Height != 240 {
				t.Errorf("wrong size %dx%d", config.Width, config.Height)
			}
		})
	}
}
