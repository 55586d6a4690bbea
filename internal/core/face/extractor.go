// Package face turns a photograph into a fixed-length feature vector.
//
// The pipeline is: grayscale, detect exactly one face region, crop, resize
// to the format's canonical square, flatten row-major. Every parameter that
// affects the output comes from domain.TemplateFormat so that vectors taken
// at enrollment and at login stay comparable.
package face

import (
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
)

// Extractor implements ports.FeatureExtractor.
type Extractor struct {
	detector ports.RegionDetector
	format   domain.TemplateFormat
}

func NewExtractor(detector ports.RegionDetector, format domain.TemplateFormat) *Extractor {
	return &Extractor{detector: detector, format: format}
}

// Format returns the template format vectors are produced for.
func (e *Extractor) Format() domain.TemplateFormat {
	return e.format
}

// Extract decodes r and reduces it to a feature vector.
func (e *Extractor) Extract(r io.Reader) (domain.FeatureVector, error) {
	img, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return e.ExtractImage(img)
}

// ExtractImage reduces an already decoded image to a feature vector.
func (e *Extractor) ExtractImage(img image.Image) (domain.FeatureVector, error) {
	gray := Grayscale(img)

	rects, err := e.detector.Detect(gray, e.format.Detector)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	// Zero or several candidates are both rejected; an ambiguous image is
	// never guessed at.
	if len(rects) != 1 {
		return nil, fmt.Errorf("%w: %d candidate regions", domain.ErrNotDetected, len(rects))
	}

	region := rects[0].Intersect(gray.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("%w: region outside image", domain.ErrNotDetected)
	}

	canon := Canonicalize(gray.SubImage(region), e.format.Size)
	return Flatten(canon), nil
}

// Grayscale converts img to a single-channel image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Canonicalize scales src to a size x size grayscale square.
func Canonicalize(src image.Image, size int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Flatten reads g row by row into a vector.
func Flatten(g *image.Gray) domain.FeatureVector {
	b := g.Bounds()
	v := make(domain.FeatureVector, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]
		for _, p := range row {
			v = append(v, float32(p))
		}
	}
	return v
}
