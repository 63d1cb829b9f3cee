package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDetectType(t *testing.T) {
	ct, err := DetectType(encodeJPEG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, MimeJPEG, ct)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	ct, err = DetectType(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, MimePNG, ct)

	_, err = DetectType([]byte("GIF89a........"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNormalizeDownscales(t *testing.T) {
	out, err := Normalize(encodeJPEG(t, 400, 200), 100)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	in := encodeJPEG(t, 40, 20)
	out, err := Normalize(in, 100)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOrient(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	red := color.RGBA{R: 255, A: 255}
	src.Set(0, 0, red)

	rotated := Orient(src, 6)
	assert.Equal(t, 2, rotated.Bounds().Dx())
	assert.Equal(t, 3, rotated.Bounds().Dy())
	assert.Equal(t, red, rotated.At(1, 0))

	flipped := Orient(src, 3)
	assert.Equal(t, red, flipped.At(2, 1))

	assert.Same(t, src, Orient(src, 1))
}

func TestGPSWithoutExif(t *testing.T) {
	_, _, ok := GPS(encodeJPEG(t, 2, 2))
	assert.False(t, ok)
	assert.Equal(t, 1, Orientation(encodeJPEG(t, 2, 2)))
}
