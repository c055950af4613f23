package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want bool
	}{
		{"photo.png", KindImage, true},
		{"photo.JPG", KindImage, true},
		{"photo.jpeg", KindImage, true},
		{"anim.gif", KindImage, true},
		{"pic.webp", KindImage, true},
		{"notes.txt", KindImage, false},
		{"song.mp3", KindImage, false},
		{"noext", KindImage, false},
		{"trailingdot.", KindImage, false},
		{"song.mp3", KindAudio, true},
		{"song.WAV", KindAudio, true},
		{"song.ogg", KindAudio, true},
		{"song.flac", KindAudio, false},
		{"", KindAudio, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.name, tt.kind), "%s as %s", tt.name, tt.kind)
	}
}

func TestSecureFilename(t *testing.T) {
	tests := map[string]string{
		"My Photo.JPG":        "my-photo.jpg",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\pic.png`: "pic.png",
		"ünïcode.gif":         "unicode.gif",
		"Crème Brûlée.PNG":    "creme-brulee.png",
		"ﬁle№1.jpg":           "fileno1.jpg",
		"???.png":             "file.png",
		"song":                "song",
	}
	for in, want := range tests {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}

func TestStoredName(t *testing.T) {
	b := Blob{PageID: "abc", Slot: "g3", Filename: "Beach Day.png"}
	assert.Equal(t, "abc_g3_beach-day.png", b.StoredName())
}

func TestFileStorePut(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "")
	require.NoError(t, err)

	url, err := s.Put(context.Background(), Blob{
		PageID:   "page1",
		Slot:     "main",
		Filename: "Me.png",
		Kind:     KindImage,
		Body:     strings.NewReader("pixels"),
		Size:     6,
	})
	require.NoError(t, err)
	assert.Equal(t, "/generated/page1/assets/page1_main_me.png", url)

	data, err := os.ReadFile(filepath.Join(root, "page1", "assets", "page1_main_me.png"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	p, err := s.Path("page1", "page1_main_me.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "page1", "assets", "page1_main_me.png"), p)
}

func TestFileStorePathRejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/generated")
	require.NoError(t, err)

	for _, bad := range [][2]string{{"..", "x"}, {"id", "../manifest.json"}, {"id", ".hidden"}, {"", "x"}} {
		_, err := s.Path(bad[0], bad[1])
		assert.ErrorIs(t, err, ErrInvalidPath, "%v", bad)
	}
}

func TestFileStoreCanceledContext(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, Blob{PageID: "p", Slot: "main", Filename: "a.png", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(root, "p", "assets", "p_main_a.png"))
	assert.True(t, os.IsNotExist(statErr))
}

// captureStore records the last blob it was handed.
type captureStore struct {
	blob Blob
	data []byte
}

func (c *captureStore) Put(_ context.Context, b Blob) (string, error) {
	c.blob = b
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(b.Body); err != nil {
		return "", err
	}
	c.data = buf.Bytes()
	return "/stored/" + b.StoredName(), nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResizingDownscalesLargePNG(t *testing.T) {
	next := &captureStore{}
	s := Resizing(next, 100)

	_, err := s.Put(context.Background(), Blob{
		PageID: "p", Slot: "main", Filename: "wide.png", Kind: KindImage,
		Body: bytes.NewReader(encodePNG(t, 400, 200)),
	})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(next.data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
	assert.Equal(t, int64(len(next.data)), next.blob.Size)
}

func TestResizingTallJPEG(t *testing.T) {
	var src bytes.Buffer
	require.NoError(t, jpeg.Encode(&src, image.NewRGBA(image.Rect(0, 0, 60, 300)), nil))

	next := &captureStore{}
	_, err := Resizing(next, 150).Put(context.Background(), Blob{
		PageID: "p", Slot: "g0", Filename: "tall.jpeg", Kind: KindImage, Body: &src,
	})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(next.data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
	assert.Equal(t, "tall.jpg", next.blob.Filename)
}

func TestResizingLeavesSmallImagesAlone(t *testing.T) {
	orig := encodePNG(t, 50, 40)
	next := &captureStore{}
	_, err := Resizing(next, 100).Put(context.Background(), Blob{
		PageID: "p", Slot: "main", Filename: "small.png", Kind: KindImage, Body: bytes.NewReader(orig),
	})
	require.NoError(t, err)
	assert.Equal(t, orig, next.data)
}

func TestResizingPassesThroughGIFAudioAndGarbage(t *testing.T) {
	var g bytes.Buffer
	require.NoError(t, gif.Encode(&g, image.NewPaletted(image.Rect(0, 0, 500, 500), []color.Color{color.Black}), nil))
	gifData := g.Bytes()

	cases := []Blob{
		{PageID: "p", Slot: "g0", Filename: "anim.gif", Kind: KindImage, Body: bytes.NewReader(gifData)},
		{PageID: "p", Slot: "music", Filename: "song.mp3", Kind: KindAudio, Body: strings.NewReader("ID3")},
		{PageID: "p", Slot: "main", Filename: "broken.png", Kind: KindImage, Body: strings.NewReader("not an image")},
	}
	want := [][]byte{gifData, []byte("ID3"), []byte("not an image")}
	for i, b := range cases {
		next := &captureStore{}
		_, err := Resizing(next, 10).Put(context.Background(), b)
		require.NoError(t, err)
		assert.Equal(t, want[i], next.data, b.Filename)
		assert.Equal(t, b.Filename, next.blob.Filename)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w×h grayscale
// image with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestResizingRejectsOversizedDimensions(t *testing.T) {
	next := &captureStore{}
	_, err := Resizing(next, 1600).Put(context.Background(), Blob{
		PageID: "p", Slot: "main", Filename: "huge.png", Kind: KindImage,
		Body: bytes.NewReader(pngHeader(12000, 12000)),
	})
	require.ErrorIs(t, err, ErrImageTooLarge)
	assert.Nil(t, next.data, "nothing stored")
}

func TestResizingPixelCapIsConfigurable(t *testing.T) {
	src := encodePNG(t, 400, 200)

	_, err := Resizing(&captureStore{}, 100, WithMaxPixels(400*200-1)).Put(context.Background(), Blob{
		PageID: "p", Slot: "main", Filename: "wide.png", Kind: KindImage, Body: bytes.NewReader(src),
	})
	require.ErrorIs(t, err, ErrImageTooLarge)

	next := &captureStore{}
	_, err = Resizing(next, 100, WithMaxPixels(400*200)).Put(context.Background(), Blob{
		PageID: "p", Slot: "main", Filename: "wide.png", Kind: KindImage, Body: bytes.NewReader(src),
	})
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(next.data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestResizingDisabled(t *testing.T) {
	next := &captureStore{}
	assert.Same(t, Store(next), Resizing(next, 0))
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(3000, 1, 100)
	assert.Equal(t, 100, w)
	assert.Equal(t, 1, h)
}
