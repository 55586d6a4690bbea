package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotDetected           = errors.New("no face detected")
	ErrDimensionMismatch     = errors.New("template dimension mismatch")
	ErrUnknownTemplateFormat = errors.New("unknown template format")
	ErrInvalidImage          = errors.New("invalid image")
	ErrCorruptTemplate       = errors.New("corrupt template")
)

// FeatureVector is a flattened, row-major grid of grayscale intensities in the
// 0-255 range. Its length is fixed by the active TemplateFormat.
type FeatureVector []float32

// SampleKind is the on-disk numeric width of a single vector sample.
type SampleKind string

const (
	SampleUint8   SampleKind = "u8"
	SampleFloat32 SampleKind = "f32le"
)

// Width returns the number of bytes one sample occupies.
func (k SampleKind) Width() int {
	switch k {
	case SampleUint8:
		return 1
	case SampleFloat32:
		return 4
	default:
		return 0
	}
}

// DetectorParams are the face detector settings. They are part of the
// template format because vectors produced under different settings are not
// comparable.
type DetectorParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// TemplateFormat pins everything that must stay identical between enrollment
// and login: sample width, canonical size, detector settings and the
// acceptance threshold.
type TemplateFormat struct {
	Version   int
	Sample    SampleKind
	Size      int
	Threshold float64
	Detector  DetectorParams
}

var defaultDetector = DetectorParams{ScaleFactor: 1.1, MinNeighbors: 5, MinSize: 30}

var formats = map[int]TemplateFormat{
	1: {Version: 1, Sample: SampleUint8, Size: 100, Threshold: 2500, Detector: defaultDetector},
	2: {Version: 2, Sample: SampleFloat32, Size: 100, Threshold: 2500, Detector: defaultDetector},
}

// LookupFormat returns the registered format with the given version.
func LookupFormat(version int) (TemplateFormat, error) {
	f, ok := formats[version]
	if !ok {
		return TemplateFormat{}, fmt.Errorf("%w: version %d", ErrUnknownTemplateFormat, version)
	}
	return f, nil
}

// VectorLen is the number of samples in every vector of this format.
func (f TemplateFormat) VectorLen() int {
	return f.Size * f.Size
}

// BlobLen is the exact byte length of an encoded template.
func (f TemplateFormat) BlobLen() int {
	return f.VectorLen() * f.Sample.Width()
}

// Encode serializes v into the format's fixed byte layout.
func (f TemplateFormat) Encode(v FeatureVector) ([]byte, error) {
	if len(v) != f.VectorLen() {
		return nil, fmt.Errorf("%w: vector has %d samples, want %d", ErrDimensionMismatch, len(v), f.VectorLen())
	}

	for i, s := range v {
		if !isFinite(s) {
			return nil, fmt.Errorf("%w: sample %d is not finite", ErrCorruptTemplate, i)
		}
	}

	buf := make([]byte, f.BlobLen())
	switch f.Sample {
	case SampleUint8:
		for i, s := range v {
			buf[i] = clampByte(s)
		}
	case SampleFloat32:
		for i, s := range v {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		}
	default:
		return nil, fmt.Errorf("%w: sample kind %q", ErrUnknownTemplateFormat, f.Sample)
	}
	return buf, nil
}

// Decode parses a stored template. A blob of the wrong length yields
// ErrDimensionMismatch; a NaN or infinite sample yields ErrCorruptTemplate.
func (f TemplateFormat) Decode(blob []byte) (FeatureVector, error) {
	if len(blob) != f.BlobLen() {
		return nil, fmt.Errorf("%w: blob has %d bytes, want %d", ErrDimensionMismatch, len(blob), f.BlobLen())
	}

	v := make(FeatureVector, f.VectorLen())
	switch f.Sample {
	case SampleUint8:
		for i, b := range blob {
			v[i] = float32(b)
		}
	case SampleFloat32:
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
			if !isFinite(v[i]) {
				return nil, fmt.Errorf("%w: sample %d is not finite", ErrCorruptTemplate, i)
			}
		}
	default:
		return nil, fmt.Errorf("%w: sample kind %q", ErrUnknownTemplateFormat, f.Sample)
	}
	return v, nil
}

func isFinite(s float32) bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampByte(s float32) byte {
	switch {
	case s <= 0:
		return 0
	case s >= 255:
		return 255
	default:
		return byte(math.Round(float64(s)))
	}
}

// Template is one enrolled vector together with its owner.
type Template struct {
	Email  string
	Vector FeatureVector
}

// StoredTemplate is a template as read from the account store, before decoding.
// Err is set when the record itself could not be read; Blob and Version are
// then meaningless.
type StoredTemplate struct {
	Email   string
	Blob    []byte
	Version int
	Err     error
}
