package descriptor

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"

	"github.com/hupe1980/behold/distance"
	"github.com/hupe1980/behold/model"
)

// Dim is the column count of Corners descriptors.
const Dim = 64

const (
	patchRadius = 8 // 16x16 patch
	cellSize    = 4
	gridSize    = 4
	// border keeps the patch and the Sobel taps inside the image.
	border = patchRadius + 1
	// windowRadius is the structure tensor summation radius (5x5 window).
	windowRadius = 2
)

// Options configures Corners.
type Options struct {
	// MaxKeypoints caps the rows per image, strongest corners first. Default 500.
	MaxKeypoints int
	// MaxDimension downscales larger images before detection. 0 disables. Default 640.
	MaxDimension int
	// HarrisK is the Harris sensitivity constant. Default 0.04.
	HarrisK float64
	// QualityLevel rejects corners weaker than this fraction of the strongest. Default 0.01.
	QualityLevel float64
}

// DefaultOptions returns the default Corners options.
func DefaultOptions() Options {
	return Options{
		MaxKeypoints: 500,
		MaxDimension: 640,
		HarrisK:      0.04,
		QualityLevel: 0.01,
	}
}

// Corners is the built-in Extractor.
type Corners struct {
	opts Options
}

// NewCorners creates a Corners extractor.
func NewCorners(optFns ...func(*Options)) *Corners {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxKeypoints <= 0 {
		opts.MaxKeypoints = 500
	}
	return &Corners{opts: opts}
}

type corner struct {
	x, y int
	r    float64
}

// Describe implements Extractor.
func (c *Corners) Describe(img image.Image) (model.Matrix, []model.Keypoint, error) {
	if img == nil {
		return model.Matrix{}, nil, ErrNilImage
	}

	empty := model.Matrix{Cols: Dim, Kind: model.KindFloat32}

	gray, scale := c.grayscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w < 2*border+1 || h < 2*border+1 {
		return empty, nil, nil
	}

	lum := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x, v := range row {
			lum[y*w+x] = float32(v) / 255
		}
	}

	dx, dy := sobel(lum, w, h)
	corners := c.detect(dx, dy, w, h)
	if len(corners) == 0 {
		return empty, nil, nil
	}

	data := make([]float32, 0, len(corners)*Dim)
	kps := make([]model.Keypoint, 0, len(corners))
	var desc [Dim]float32
	for _, cr := range corners {
		describe(dx, dy, w, cr.x, cr.y, desc[:])
		if !distance.NormalizeL2InPlace(desc[:]) {
			continue
		}
		data = append(data, desc[:]...)
		kps = append(kps, model.Keypoint{
			X:        float32(cr.x) * scale,
			Y:        float32(cr.y) * scale,
			Size:     2 * patchRadius * scale,
			Response: float32(cr.r),
		})
	}

	if len(kps) == 0 {
		return empty, nil, nil
	}

	return model.Matrix{Rows: len(kps), Cols: Dim, Kind: model.KindFloat32, Data: data}, kps, nil
}

// grayscale converts img to an 8-bit luminance plane, downscaling when it
// exceeds MaxDimension. scale maps plane coordinates back to img coordinates.
func (c *Corners) grayscale(img image.Image) (*image.Gray, float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	longest := max(w, h)
	if c.opts.MaxDimension > 0 && longest > c.opts.MaxDimension {
		f := float64(c.opts.MaxDimension) / float64(longest)
		sw := max(1, int(math.Round(float64(w)*f)))
		sh := max(1, int(math.Round(float64(h)*f)))
		dst := image.NewGray(image.Rect(0, 0, sw, sh))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, img, b, draw.Src, nil)
		return dst, float32(w) / float32(sw)
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst, 1
}

func sobel(lum []float32, w, h int) ([]float32, []float32) {
	dx := make([]float32, w*h)
	dy := make([]float32, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			tl, tc, tr := lum[i-w-1], lum[i-w], lum[i-w+1]
			ml, mr := lum[i-1], lum[i+1]
			bl, bc, br := lum[i+w-1], lum[i+w], lum[i+w+1]
			dx[i] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			dy[i] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return dx, dy
}

// detect returns Harris corners after non-maximum suppression, strongest
// first, ties broken by position.
func (c *Corners) detect(dx, dy []float32, w, h int) []corner {
	resp := make([]float64, w*h)
	peak := 0.0
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			var sxx, syy, sxy float64
			for v := -windowRadius; v <= windowRadius; v++ {
				for u := -windowRadius; u <= windowRadius; u++ {
					i := (y+v)*w + x + u
					gx, gy := float64(dx[i]), float64(dy[i])
					sxx += gx * gx
					syy += gy * gy
					sxy += gx * gy
				}
			}
			tr := sxx + syy
			r := sxx*syy - sxy*sxy - c.opts.HarrisK*tr*tr
			resp[y*w+x] = r
			peak = max(peak, r)
		}
	}

	if peak <= 1e-9 {
		return nil
	}
	threshold := peak * c.opts.QualityLevel

	var out []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			r := resp[y*w+x]
			if r <= threshold || !isPeak(resp, w, x, y) {
				continue
			}
			out = append(out, corner{x: x, y: y, r: r})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].r != out[j].r {
			return out[i].r > out[j].r
		}
		if out[i].y != out[j].y {
			return out[i].y < out[j].y
		}
		return out[i].x < out[j].x
	})

	if len(out) > c.opts.MaxKeypoints {
		out = out[:c.opts.MaxKeypoints]
	}
	return out
}

// isPeak reports whether (x, y) is the 3x3 maximum. Plateaus keep only their
// first pixel in raster order.
func isPeak(resp []float64, w, x, y int) bool {
	r := resp[y*w+x]
	for v := -1; v <= 1; v++ {
		for u := -1; u <= 1; u++ {
			if u == 0 && v == 0 {
				continue
			}
			n := resp[(y+v)*w+x+u]
			if n > r {
				return false
			}
			if n == r && (v < 0 || (v == 0 && u < 0)) {
				return false
			}
		}
	}
	return true
}

func describe(dx, dy []float32, w, cx, cy int, out []float32) {
	clear(out)
	x0, y0 := cx-patchRadius, cy-patchRadius
	for py := 0; py < 2*patchRadius; py++ {
		for px := 0; px < 2*patchRadius; px++ {
			i := (y0+py)*w + x0 + px
			gx, gy := dx[i], dy[i]
			cell := ((py/cellSize)*gridSize + px/cellSize) * 4
			out[cell] += gx
			out[cell+1] += gy
			out[cell+2] += float32(math.Abs(float64(gx)))
			out[cell+3] += float32(math.Abs(float64(gy)))
		}
	}
}
