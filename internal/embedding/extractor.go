package embedding

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/disintegration/imaging"
)

// Dim is the dlib ResNet descriptor length.
const Dim = 128

// ErrNoFace is returned when no face is found in the image.
var ErrNoFace = errors.New("no face detected")

// ErrBadImage is returned when the image bytes cannot be decoded.
var ErrBadImage = errors.New("image cannot be decoded")

// Vector is a face embedding.
type Vector []float32

// Extractor turns an image into a face embedding.
type Extractor interface {
	Extract(imageData []byte) (Vector, error)
}

// DlibExtractor wraps a go-face recognizer. The dlib models are loaded once at
// process start; the recognizer is shared across requests behind a mutex since
// extraction is CPU-bound and dlib state is not safe for concurrent calls.
type DlibExtractor struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibExtractor loads the dlib model files from modelDir.
func NewDlibExtractor(modelDir string) (*DlibExtractor, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelDir, err)
	}
	return &DlibExtractor{rec: rec}, nil
}

// Extract computes the embedding for the single face in imageData.
func (e *DlibExtractor) Extract(imageData []byte) (Vector, error) {
	jpegData, err := toJPEG(imageData)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	f, err := e.rec.RecognizeSingle(jpegData)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if f == nil {
		return nil, ErrNoFace
	}

	vec := make(Vector, Dim)
	copy(vec, f.Descriptor[:])
	return vec, nil
}

// Warmup runs one extraction so the first real request does not pay the
// model's cold-start cost. A blank frame with no face is expected.
func (e *DlibExtractor) Warmup() error {
	blank := imaging.New(160, 160, color.White)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, blank, imaging.JPEG); err != nil {
		return err
	}
	if _, err := e.Extract(buf.Bytes()); err != nil && !errors.Is(err, ErrNoFace) {
		return err
	}
	return nil
}

// Close frees the dlib recognizer.
func (e *DlibExtractor) Close() {
	e.rec.Close()
}

// Mirror returns imageData flipped horizontally, re-encoded as JPEG. Used to
// derive the augmented sibling photo at enrollment time.
func Mirror(imageData []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.FlipH(img), imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toJPEG normalizes arbitrary camera frames (PNG, JPEG, ...) to JPEG, which is
// the only format dlib accepts here.
func toJPEG(imageData []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
