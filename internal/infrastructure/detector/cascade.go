// Package detector provides the OpenCV-backed face region detector.
package detector

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/facegate/facegate/internal/core/domain"
)

// Well-known install locations of the OpenCV haar data, tried in order when
// the configured path cannot be loaded.
var cascadeDirs = []string{
	"/usr/share/opencv4/haarcascades",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
	"/usr/local/share/opencv/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

var ErrCascadeNotLoaded = errors.New("face cascade classifier could not be loaded")

// Cascade detects frontal faces with a Haar cascade. A classifier instance is
// not safe for concurrent detection, so calls are serialised.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	path       string
}

// NewCascade loads the classifier from path or, failing that, from the same
// file name under the standard OpenCV data directories.
func NewCascade(path string) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	for _, candidate := range candidatePaths(path) {
		if classifier.Load(candidate) {
			return &Cascade{classifier: classifier, path: candidate}, nil
		}
	}
	_ = classifier.Close()
	return nil, fmt.Errorf("%w: %s", ErrCascadeNotLoaded, path)
}

// Path returns the file the classifier was loaded from.
func (c *Cascade) Path() string {
	return c.path
}

// Detect returns the candidate face rectangles in img, in img's coordinates.
func (c *Cascade) Detect(img *image.Gray, params domain.DetectorParams) ([]image.Rectangle, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	minSize := image.Pt(params.MinSize, params.MinSize)

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(mat, params.ScaleFactor, params.MinNeighbors, 0, minSize, image.Point{})
	c.mu.Unlock()

	offset := img.Bounds().Min
	for i := range rects {
		rects[i] = rects[i].Add(offset)
	}
	return rects, nil
}

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}

func candidatePaths(path string) []string {
	if path == "" {
		path = "haarcascade_frontalface_default.xml"
	}
	paths := []string{path}
	name := filepath.Base(path)
	for _, dir := range cascadeDirs {
		if p := filepath.Join(dir, name); p != path {
			paths = append(paths, p)
		}
	}
	return paths
}
