package fallback

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/hupe1980/behold/distance"
)

const (
	// Bins is the histogram length: 4 levels per RGB channel.
	Bins = 64

	hashWidth  = 9
	hashHeight = 8
	histSide   = 64
)

// Signature is the whole-image fingerprint of one image.
type Signature struct {
	DHash     uint64
	Histogram [Bins]float32
}

// NewSignature computes the signature of img.
func NewSignature(img image.Image) Signature {
	var sig Signature
	b := img.Bounds()
	if b.Empty() {
		return sig
	}

	thumb := image.NewGray(image.Rect(0, 0, hashWidth, hashHeight))
	draw.BiLinear.Scale(thumb, thumb.Rect, img, b, draw.Src, nil)
	bit := 0
	for y := 0; y < hashHeight; y++ {
		row := thumb.Pix[y*thumb.Stride:]
		for x := 0; x < hashWidth-1; x++ {
			if row[x] < row[x+1] {
				sig.DHash |= 1 << bit
			}
			bit++
		}
	}

	small := image.NewRGBA(image.Rect(0, 0, histSide, histSide))
	draw.ApproxBiLinear.Scale(small, small.Rect, img, b, draw.Src, nil)
	const n = histSide * histSide
	for i := 0; i < len(small.Pix); i += 4 {
		r, g, bl := small.Pix[i]>>6, small.Pix[i+1]>>6, small.Pix[i+2]>>6
		sig.Histogram[int(r)<<4|int(g)<<2|int(bl)]++
	}
	for i := range sig.Histogram {
		sig.Histogram[i] /= n
	}
	return sig
}

// Similarity returns how alike a and b are, in [0, 1].
// Identical signatures score 1.
func Similarity(a, b Signature) float64 {
	hashSim := 1 - float64(distance.Hamming64(a.DHash, b.DHash))/64
	histSim := float64(distance.Intersection(a.Histogram[:], b.Histogram[:]))
	s := 0.5*hashSim + 0.5*histSim
	return min(max(s, 0), 1)
}
