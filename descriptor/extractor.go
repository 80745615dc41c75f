package descriptor

import (
	"errors"
	"image"

	"github.com/hupe1980/behold/model"
)

// ErrNilImage is returned when Describe is called without an image.
var ErrNilImage = errors.New("descriptor: nil image")

// Extractor computes a descriptor matrix and its keypoints for an image.
// An image without usable keypoints yields an empty matrix and no error.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Describe(img image.Image) (model.Matrix, []model.Keypoint, error)
}

// Func adapts a function to the Extractor interface.
type Func func(img image.Image) (model.Matrix, []model.Keypoint, error)

// Describe implements Extractor.
func (f Func) Describe(img image.Image) (model.Matrix, []model.Keypoint, error) {
	return f(img)
}
