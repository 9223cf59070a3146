// Package compose renders attribute sets into images.
//
// Layers are stacked in canonical property order onto an opaque black
// canvas. Each layer is alpha-composited over what is already there, so a
// fully transparent pixel leaves the pixel below untouched. Layers smaller or
// larger than the canvas are anchored at the top-left corner and clipped.
package compose

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/trait"
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg or jpg, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", errors.NewConfigurationError("unsupported output format %q (want png or jpeg)", s)
}

// Ext returns the file extension written for the format.
func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return ".png"
}

// DefaultCacheSize bounds the number of decoded layers kept in memory.
const DefaultCacheSize = 256

// Options configures a Composer.
type Options struct {
	Width     int
	Height    int
	Format    Format
	Quality   int // JPEG quality 1-100
	OutDir    string
	CacheSize int
}

// Composer renders attribute sets using the assets of one catalog.
// It is safe for concurrent use; decoded layers are shared across workers.
type Composer struct {
	cat    *catalog.Catalog
	opts   Options
	layers *lru.Cache
	logger *zap.SugaredLogger
}

// New creates a Composer. The output directory is created if missing.
func New(cat *catalog.Catalog, opts Options, log *zap.SugaredLogger) (*Composer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.NewConfigurationError("canvas must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.Format == "" {
		opts.Format = PNG
	}
	if opts.Format != PNG && opts.Format != JPEG {
		return nil, errors.NewConfigurationError("unsupported output format %q", opts.Format)
	}
	if opts.Format == JPEG && (opts.Quality < 1 || opts.Quality > 100) {
		return nil, errors.NewConfigurationError("jpeg quality must be in 1..100, got %d", opts.Quality)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create layer cache")
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create output directory %s", opts.OutDir)
		}
	}
	return &Composer{cat: cat, opts: opts, layers: cache, logger: logger.OrNop(log)}, nil
}

// Ext returns the extension of the files the Composer writes.
func (c *Composer) Ext() string {
	return c.opts.Format.Ext()
}

// Render stacks the layers of set onto a fresh canvas.
func (c *Composer) Render(set trait.AttributeSet) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, c.opts.Width, c.opts.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for _, a := range set.Attrs {
		layer, err := c.layer(trait.Value{Group: set.Group, Property: a.Property, Value: a.Value})
		if err != nil {
			return nil, err
		}
		b := layer.Bounds()
		dst := image.Rect(0, 0, b.Dx(), b.Dy()).Intersect(canvas.Bounds())
		draw.Draw(canvas, dst, layer, b.Min, draw.Over)
	}
	return canvas, nil
}

// Compose renders set and writes it to the output directory as
// "{index}-{value1}-...{ext}".
func (c *Composer) Compose(index int, set trait.AttributeSet) (trait.Artifact, error) {
	img, err := c.Render(set)
	if err != nil {
		return trait.Artifact{}, errors.Wrapf(err, "failed to render artifact %d", index)
	}

	path := filepath.Join(c.opts.OutDir, trait.FileName(index, set, c.Ext()))
	if err := c.write(path, img); err != nil {
		return trait.Artifact{}, err
	}
	c.logger.Debugw("Wrote artifact",
		logger.FieldIndex, index,
		logger.FieldPath, path,
		logger.FieldGroup, set.Group)
	return trait.Artifact{Index: index, Path: path, Set: set}, nil
}

// write encodes img to a temporary file and renames it into place.
func (c *Composer) write(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".compose-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer os.Remove(tmp.Name())

	switch c.opts.Format {
	case JPEG:
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: c.opts.Quality})
	default:
		err = png.Encode(tmp, img)
	}
	if err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move %s into place", path)
	}
	return nil
}

// layer returns the decoded asset for v, decoding at most once while it stays cached.
func (c *Composer) layer(v trait.Value) (image.Image, error) {
	if img, ok := c.layers.Get(v); ok {
		return img.(image.Image), nil
	}

	path, ok := c.cat.AssetPath(v)
	if !ok {
		return nil, errors.NewCatalogGapError("no asset for %s", v)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open layer %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode layer %s", path)
	}
	c.layers.Add(v, img)
	return img, nil
}
