package ports

import (
	"image"
	"io"

	"github.com/facegate/facegate/internal/core/domain"
)

// RegionDetector proposes candidate face rectangles on a grayscale image.
type RegionDetector interface {
	Detect(img *image.Gray, params domain.DetectorParams) ([]image.Rectangle, error)
}

// FeatureExtractor reduces an image to a fixed-length vector. It returns
// domain.ErrNotDetected when the image does not contain exactly one face.
type FeatureExtractor interface {
	Extract(r io.Reader) (domain.FeatureVector, error)
}
