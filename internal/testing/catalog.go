package testing

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// PropertyFixture describes one property directory of a synthetic catalog.
type PropertyFixture struct {
	Name   string
	Values []string
	// Opaque layers fill the whole canvas; others paint a centered square
	// on a transparent background.
	Opaque bool
}

// GroupFixture describes one group directory of a synthetic catalog.
type GroupFixture struct {
	Name       string
	Properties []PropertyFixture
}

// LetterCatalog is the two-letter catalog used across the test suites:
// one opaque background layer and two transparent letter layers.
func LetterCatalog() []GroupFixture {
	return []GroupFixture{{
		Name: "parts",
		Properties: []PropertyFixture{
			{Name: "Background", Values: []string{"black", "blue", "green", "white"}, Opaque: true},
			{Name: "FirstLetter", Values: []string{"A", "B", "C", "H"}},
			{Name: "SecondLetter", Values: []string{"A", "R", "S"}},
		},
	}}
}

// WriteCatalog renders groups as PNG layers under root/<group>/<NN>_<property>/<value>.png
// and returns root. Each value gets a deterministic color derived from its path.
func WriteCatalog(t *testing.T, root string, w, h int, groups []GroupFixture) string {
	t.Helper()

	for _, g := range groups {
		for i, p := range g.Properties {
			dir := filepath.Join(root, g.Name, fmt.Sprintf("%02d_%s", i+1, p.Name))
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("Failed to create catalog dir: %v", err)
			}
			for _, v := range p.Values {
				img := Layer(w, h, ColorFor(g.Name+"/"+p.Name+"/"+v), p.Opaque)
				WritePNG(t, filepath.Join(dir, v+".png"), img)
			}
		}
	}
	return root
}

// Layer renders a w×h layer filled with c, either fully or as a centered square.
func Layer(w, h int, c color.NRGBA, opaque bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside := x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4
			if opaque || inside {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

// WritePNG encodes img to path.
func WritePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

// ColorFor derives a stable opaque color from key.
func ColorFor(key string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum32()
	return color.NRGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
}
