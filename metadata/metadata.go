// Package metadata writes one token metadata JSON document per artifact.
//
// Documents follow the common NFT metadata shape:
//
//	{"name": "Test NFT #7", "description": "...", "image": "...",
//	 "attributes": [{"trait_type": "Background", "value": "blue"}, ...]}
//
// Files are named by artifact index without an extension, so a metadata
// directory can be served directly as a token URI base.
package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"go.uber.org/zap"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/trait"
)

// Document is the metadata of one artifact.
type Document struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Attributes  []trait.Attribute `json:"attributes"`
}

// Options configures a Writer.
type Options struct {
	Dir         string
	Names       []string
	Description string
	// ImageBaseURL prefixes the artifact file name, e.g. "ipfs://<cid>".
	ImageBaseURL string
	// ImageCID is the CID of a directory holding every artifact.
	ImageCID string
	// ImageCIDs maps artifact file names to their individual CIDs and
	// takes precedence over ImageCID and ImageBaseURL.
	ImageCIDs map[string]string
}

// Chooser picks a uniform index in [0, n).
type Chooser interface {
	IntN(n int) int
}

// Writer builds and writes metadata documents.
type Writer struct {
	opts   Options
	dirCID string
	rng    Chooser
	logger *zap.SugaredLogger
}

// NewWriter validates opts. A CIDv0 ImageCID is converted to CIDv1 base32
// so it can be used as a gateway subdomain.
func NewWriter(opts Options, rng Chooser, log *zap.SugaredLogger) (*Writer, error) {
	if len(opts.Names) == 0 {
		return nil, errors.NewConfigurationError("metadata.names must list at least one name")
	}
	w := &Writer{opts: opts, rng: rng, logger: logger.OrNop(log)}
	if opts.ImageCID != "" {
		v1, err := CIDv1Base32(opts.ImageCID)
		if err != nil {
			return nil, err
		}
		w.dirCID = v1
	}
	return w, nil
}

// CIDv1Base32 parses a CID of either version and renders it as CIDv1 in base32.
func CIDv1Base32(s string) (string, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return "", errors.NewConfigurationError("invalid CID %q: %v", s, err)
	}
	if c.Version() == 0 {
		c = cid.NewCidV1(c.Type(), c.Hash())
	}
	out, err := c.StringOfBase(multibase.Base32)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode CID %s", s)
	}
	return out, nil
}

// GatewayURL is the subdomain gateway URL of cidV1, optionally with a path.
func GatewayURL(cidV1, file string) string {
	return "https://" + cidV1 + ".ipfs.dweb.link/" + file
}

// Image resolves the image URL of an artifact file.
func (w *Writer) Image(file string) (string, error) {
	if c, ok := w.opts.ImageCIDs[file]; ok {
		v1, err := CIDv1Base32(c)
		if err != nil {
			return "", err
		}
		return GatewayURL(v1, ""), nil
	}
	if w.dirCID != "" {
		return GatewayURL(w.dirCID, file), nil
	}
	if w.opts.ImageBaseURL != "" {
		return strings.TrimSuffix(w.opts.ImageBaseURL, "/") + "/" + file, nil
	}
	return file, nil
}

// Build returns the document of artifact a.
func (w *Writer) Build(a trait.Artifact) (Document, error) {
	image, err := w.Image(filepath.Base(a.Path))
	if err != nil {
		return Document{}, errors.Wrapf(err, "artifact %d", a.Index)
	}
	name := w.opts.Names[0]
	if len(w.opts.Names) > 1 {
		name = w.opts.Names[w.rng.IntN(len(w.opts.Names))]
	}
	attrs := make([]trait.Attribute, len(a.Set.Attrs))
	copy(attrs, a.Set.Attrs)
	return Document{
		Name:        name + " #" + strconv.Itoa(a.Index),
		Description: w.opts.Description,
		Image:       image,
		Attributes:  attrs,
	}, nil
}

// Write writes one document per artifact into the metadata directory and
// returns the written paths in artifact order.
func (w *Writer) Write(artifacts []trait.Artifact) ([]string, error) {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create metadata directory %s", w.opts.Dir)
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		doc, err := w.Build(a)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode metadata %d", a.Index)
		}
		path := filepath.Join(w.opts.Dir, strconv.Itoa(a.Index))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, errors.Wrapf(err, "failed to write metadata %s", path)
		}
		paths = append(paths, path)
	}
	w.logger.Infow("Wrote metadata", logger.FieldDir, w.opts.Dir, logger.FieldCount, len(paths))
	return paths, nil
}
