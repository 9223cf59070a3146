// Package publish pins artifacts and metadata to IPFS through Pinata.
//
// Each file is pinned with a single request. Retries and rate limiting are
// left to the operator; a failed pin is reported and the remaining files
// are skipped.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/version"
)

// DefaultEndpoint is Pinata's pinFileToIPFS endpoint.
const DefaultEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"

// PinResponse is the response from Pinata's pinFileToIPFS endpoint.
type PinResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int    `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// Client pins files with a Pinata JWT.
type Client struct {
	endpoint string
	jwt      string
	http     *http.Client
	logger   *zap.SugaredLogger
}

// NewClient creates a client. An empty endpoint uses DefaultEndpoint.
func NewClient(jwt, endpoint string, log *zap.SugaredLogger) (*Client, error) {
	if jwt == "" {
		return nil, errors.NewConfigurationError("publish.pinata_jwt not configured; set TRAITMINT_PINATA_JWT or publish.pinata_jwt in traitmint.toml")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		jwt:      jwt,
		http:     &http.Client{Timeout: 2 * time.Minute},
		logger:   logger.OrNop(log),
	}, nil
}

// PinFile pins content under filename and returns Pinata's response.
func (c *Client) PinFile(ctx context.Context, filename string, content []byte) (*PinResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create multipart file field")
	}
	if _, err := part.Write(content); err != nil {
		return nil, errors.Wrap(err, "failed to write content to multipart form")
	}
	meta, _ := json.Marshal(map[string]any{"name": filename})
	_ = writer.WriteField("pinataMetadata", string(meta))
	options, _ := json.Marshal(map[string]any{"cidVersion": 1})
	_ = writer.WriteField("pinataOptions", string(options))
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Pinata HTTP request")
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", version.Get().UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Pinata pin request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Pinata response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("Pinata returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var pinResp PinResponse
	if err := json.Unmarshal(respBody, &pinResp); err != nil {
		return nil, errors.Wrapf(err, "failed to parse Pinata response: %s", string(respBody))
	}
	c.logger.Debugw("Pinned file", logger.FieldPath, filename, "cid", pinResp.IpfsHash)
	return &pinResp, nil
}

// PinDir pins every regular file in dir accepted by match (nil accepts all),
// in name order, and returns file name → CID. Hidden files are skipped.
func (c *Client) PinDir(ctx context.Context, dir string, match func(name string) bool) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "" || name[0] == '.' {
			continue
		}
		if match != nil && !match(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	cids := make(map[string]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return cids, err
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return cids, errors.Wrapf(err, "failed to read %s", name)
		}
		resp, err := c.PinFile(ctx, name, content)
		if err != nil {
			return cids, errors.Wrapf(err, "failed to pin %s", name)
		}
		cids[name] = resp.IpfsHash
	}
	c.logger.Infow("Pinned directory", logger.FieldDir, dir, logger.FieldCount, len(cids))
	return cids, nil
}
