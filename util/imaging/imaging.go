package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"

	DefaultMaxDimension = 1920
	jpegQuality         = 85
)

var ErrUnsupportedType = errors.New("only JPEG and PNG images are allowed")

// DetectType sniffs the content type and rejects anything but JPEG or PNG.
func DetectType(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	switch ct {
	case MimeJPEG, MimePNG:
		return ct, nil
	default:
		return "", ErrUnsupportedType
	}
}

// Orientation extracts the EXIF orientation tag, 1 when absent.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// GPS returns the EXIF position of a photo when the camera recorded one.
func GPS(data []byte) (lat, lng float64, ok bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	lat, lng, err = x.LatLong()
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// Orient applies an EXIF orientation to img.
func Orient(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	swap := orientation >= 5
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if swap {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// Normalize corrects orientation and scales the image so neither side
// exceeds maxDim. Images already upright and small enough are returned as-is.
func Normalize(data []byte, maxDim int) ([]byte, error) {
	ct, err := DetectType(data)
	if err != nil {
		return nil, err
	}

	orientation := 1
	if ct == MimeJPEG {
		orientation = Orientation(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	b := img.Bounds()
	if orientation == 1 && b.Dx() <= maxDim && b.Dy() <= maxDim {
		return data, nil
	}

	img = Orient(img, orientation)
	img = Downscale(img, maxDim)

	var buf bytes.Buffer
	if ct == MimePNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, errors.Wrap(err, "encode image")
	}

	log.WithFields(log.Fields{
		"orientation": orientation,
		"before":      len(data),
		"after":       buf.Len(),
	}).Debug("image normalized")
	return buf.Bytes(), nil
}

// Downscale shrinks img to fit a maxDim square, keeping the aspect ratio.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(w)
	if s := float64(maxDim) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
