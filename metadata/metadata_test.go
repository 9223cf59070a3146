package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/trait"
)

type fixed int

func (f fixed) IntN(n int) int { return int(f) % n }

func v0CID(t *testing.T, data string) cid.Cid {
	t.Helper()
	c, err := cid.Prefix{Version: 0, Codec: cid.DagProtobuf, MhType: 0x12, MhLength: -1}.Sum([]byte(data))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(c.String(), "Qm"))
	return c
}

func artifact(index int, values ...string) trait.Artifact {
	set := trait.NewAttributeSet("parts", []string{"Background", "FirstLetter"}, values)
	return trait.Artifact{Index: index, Path: filepath.Join("images", trait.FileName(index, set, ".png")), Set: set}
}

func TestCIDv1Base32(t *testing.T) {
	v0 := v0CID(t, "hello")

	v1, err := CIDv1Base32(v0.String())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v1, "bafybei"), v1)

	parsed, err := cid.Decode(v1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), parsed.Version())
	assert.Equal(t, v0.Hash(), parsed.Hash())

	again, err := CIDv1Base32(v1)
	require.NoError(t, err)
	assert.Equal(t, v1, again)

	_, err = CIDv1Base32("not-a-cid")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestImage(t *testing.T) {
	dir := v0CID(t, "images")
	file := v0CID(t, "1-blue-A.png")
	dirV1, _ := CIDv1Base32(dir.String())
	fileV1, _ := CIDv1Base32(file.String())

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"plain file name", Options{}, "1-blue-A.png"},
		{"base url", Options{ImageBaseURL: "ipfs://root/"}, "ipfs://root/1-blue-A.png"},
		{"directory cid", Options{ImageCID: dir.String(), ImageBaseURL: "ignored"}, "https://" + dirV1 + ".ipfs.dweb.link/1-blue-A.png"},
		{"per-file cid", Options{ImageCID: dir.String(), ImageCIDs: map[string]string{"1-blue-A.png": file.String()}}, "https://" + fileV1 + ".ipfs.dweb.link/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Names = []string{"Test NFT"}
			w, err := NewWriter(tt.opts, fixed(0), nil)
			require.NoError(t, err)
			got, err := w.Image("1-blue-A.png")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metadata")
	w, err := NewWriter(Options{
		Dir:          dir,
		Names:        []string{"Alpha", "Beta"},
		Description:  "letters",
		ImageBaseURL: "https://example.test/images",
	}, fixed(1), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	paths, err := w.Write([]trait.Artifact{artifact(3, "blue", "A"), artifact(4, "green", "B")})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "3"), filepath.Join(dir, "4")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Beta #3", doc.Name)
	assert.Equal(t, "letters", doc.Description)
	assert.Equal(t, "https://example.test/images/3-blue-A.png", doc.Image)
	assert.Equal(t, []trait.Attribute{{Property: "Background", Value: "blue"}, {Property: "FirstLetter", Value: "A"}}, doc.Attributes)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	first := raw["attributes"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Background", first["trait_type"])
	assert.Equal(t, "blue", first["value"])
}

func TestNewWriter_Invalid(t *testing.T) {
	_, err := NewWriter(Options{}, fixed(0), nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = NewWriter(Options{Names: []string{"x"}, ImageCID: "zzz"}, fixed(0), nil)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
