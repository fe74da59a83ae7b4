// Package normalizer converts intake images to a single canonical JPEG.
package normalizer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/jdeng/goheif"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/markdave123-py/docrag/internal/core"
)

// Class is how the router treats an intake key.
type Class int

const (
	ClassOther Class = iota
	ClassRejected
	ClassConvertible
	ClassPassThrough
)

func (c Class) String() string {
	switch c {
	case ClassRejected:
		return "rejected"
	case ClassConvertible:
		return "convertible"
	case ClassPassThrough:
		return "passthrough"
	default:
		return "other"
	}
}

// JPEGQuality is the fixed re-encode quality.
const JPEGQuality = 95

var rejected = map[string]bool{
	".textclipping": true,
	".ds_store":     true,
	".webloc":       true,
}

var convertible = map[string]bool{
	".heic": true, ".heif": true,
	".tiff": true, ".tif": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// Ext returns the lower-cased extension of key, including the dot.
func Ext(key string) string {
	base := path.Base(key)
	if strings.EqualFold(base, ".ds_store") {
		return ".ds_store"
	}
	return strings.ToLower(path.Ext(base))
}

// Classify decides the intake route from the key extension alone.
func Classify(key string) Class {
	ext := Ext(key)
	switch {
	case rejected[ext]:
		return ClassRejected
	case convertible[ext]:
		return ClassConvertible
	case ext == ".jpg" || ext == ".jpeg":
		return ClassPassThrough
	default:
		return ClassOther
	}
}

// DecodeFunc decodes the primary frame of an image.
type DecodeFunc func(r io.Reader) (image.Image, error)

func decodeStd(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// Result is a normalized object ready to be written to the processed area.
type Result struct {
	Key         string
	Data        []byte
	ContentType string
}

type Normalizer struct {
	flatten  bool
	decoders map[string]DecodeFunc
}

type Option func(*Normalizer)

// WithDecoder overrides the decoder used for one extension.
func WithDecoder(ext string, fn DecodeFunc) Option {
	return func(n *Normalizer) { n.decoders[strings.ToLower(ext)] = fn }
}

// New builds a Normalizer. flatten drops the directory part of destination keys.
func New(flatten bool, opts ...Option) *Normalizer {
	n := &Normalizer{
		flatten: flatten,
		decoders: map[string]DecodeFunc{
			".heic": goheif.Decode,
			".heif": goheif.Decode,
		},
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// DestinationKey is the processed-area key for an intake key. Convertible
// keys get a .jpg extension; the directory is kept unless flattening.
func (n *Normalizer) DestinationKey(key string) string {
	dst := key
	if n.flatten {
		dst = path.Base(key)
	}
	if Classify(key) != ClassConvertible {
		return dst
	}
	return strings.TrimSuffix(dst, path.Ext(dst)) + ".jpg"
}

// Normalize decodes data, keeps frame 0, flattens it to opaque RGB and
// re-encodes it as JPEG.
func (n *Normalizer) Normalize(key string, data []byte) (*Result, error) {
	switch Classify(key) {
	case ClassRejected:
		return nil, fmt.Errorf("normalize %s: %w", key, core.ErrUnsupportedFormat)
	case ClassOther:
		return nil, fmt.Errorf("normalize %s: not an image type: %w", key, core.ErrUnsupportedFormat)
	}

	decode, ok := n.decoders[Ext(key)]
	if !ok {
		decode = decodeStd
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, toRGB(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}

	return &Result{
		Key:         n.DestinationKey(key),
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
	}, nil
}

// toRGB composites img over white so alpha, palette, gray and CMYK sources
// all end up as opaque RGB.
func toRGB(img image.Image) image.Image {
	if y, ok := img.(*image.YCbCr); ok {
		return y
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
