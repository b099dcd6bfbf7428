package ocr

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// PreprocessOptions tunes the page cleanup applied before recognition.
type PreprocessOptions struct {
	DenoiseStrength float64 // h; 0 disables denoising
	BlockSize       int     // adaptive threshold window, odd; default 31
	C               float64 // subtracted from the local weighted mean; 0 is a valid offset
	UpscaleBelow    int     // pages narrower than this are upscaled to it; 0 disables
}

// DefaultPreprocessOptions is the cleanup tuned for filled forms.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{DenoiseStrength: 15, BlockSize: 31, C: 15}
}

func (o PreprocessOptions) withDefaults() PreprocessOptions {
	if o.BlockSize < 3 {
		o.BlockSize = 31
	}
	if o.BlockSize%2 == 0 {
		o.BlockSize++
	}
	if o.DenoiseStrength < 0 {
		o.DenoiseStrength = 0
	}
	return o
}

// Preprocess converts a page to a binary image: grayscale, edge-preserving
// denoise, Gaussian adaptive threshold, then one 2x2 dilation. The input is
// never modified and equal inputs give equal outputs.
func Preprocess(src image.Image, opts PreprocessOptions) *image.Gray {
	opts = opts.withDefaults()

	gray := toGray(src)
	if opts.UpscaleBelow > 0 && gray.Rect.Dx() > 0 && gray.Rect.Dx() < opts.UpscaleBelow {
		gray = upscale(gray, opts.UpscaleBelow)
	}
	if opts.DenoiseStrength > 0 {
		gray = denoise(gray, opts.DenoiseStrength)
	}
	bin := adaptiveThreshold(gray, opts.BlockSize, opts.C)
	return dilate2x2(bin)
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			dst.Pix[y*dst.Stride+x] = c.Y
		}
	}
	return dst
}

func upscale(g *image.Gray, width int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	nh := int(math.Round(float64(h) * float64(width) / float64(w)))
	if nh < 1 {
		nh = 1
	}
	dst := image.NewGray(image.Rect(0, 0, width, nh))
	draw.CatmullRom.Scale(dst, dst.Rect, g, g.Rect, draw.Src, nil)
	return dst
}

// denoise is a 5x5 range-weighted average: neighbours whose intensity is far
// from the centre pixel (relative to h) contribute little, so strokes keep
// their edges while speckle is flattened.
func denoise(g *image.Gray, h float64) *image.Gray {
	const r = 2
	w, ht := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(g.Rect)

	var weights [256]float64
	h2 := h * h
	for d := range weights {
		weights[d] = math.Exp(-float64(d*d) / h2)
	}

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			p := int(g.Pix[y*g.Stride+x])
			var sum, norm float64
			for dy := -r; dy <= r; dy++ {
				yy := clampInt(y+dy, 0, ht-1)
				row := yy * g.Stride
				for dx := -r; dx <= r; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					q := int(g.Pix[row+xx])
					d := p - q
					if d < 0 {
						d = -d
					}
					wt := weights[d]
					sum += wt * float64(q)
					norm += wt
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return dst
}

// adaptiveThreshold sets a pixel white when it is brighter than its
// Gaussian-weighted neighbourhood mean minus c. Borders replicate edge pixels.
func adaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	kernel := gaussianKernel(block)
	r := block / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * g.Stride
		for x := 0; x < w; x++ {
			var s float64
			for k := -r; k <= r; k++ {
				s += kernel[k+r] * float64(g.Pix[row+clampInt(x+k, 0, w-1)])
			}
			tmp[y*w+x] = s
		}
	}

	dst := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for k := -r; k <= r; k++ {
				mean += kernel[k+r] * tmp[clampInt(y+k, 0, h-1)*w+x]
			}
			if float64(g.Pix[y*g.Stride+x]) > math.Round(mean)-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// gaussianKernel returns a normalized 1-D kernel with the sigma OpenCV derives
// from the window size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	r := size / 2
	k := make([]float64, size)
	var sum float64
	for i := -r; i <= r; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// dilate2x2 takes the max over the pixel, its left, upper and upper-left
// neighbours. Out-of-bounds neighbours are ignored.
func dilate2x2(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := g.Pix[y*g.Stride+x]
			if x > 0 {
				m = max(m, g.Pix[y*g.Stride+x-1])
			}
			if y > 0 {
				m = max(m, g.Pix[(y-1)*g.Stride+x])
				if x > 0 {
					m = max(m, g.Pix[(y-1)*g.Stride+x-1])
				}
			}
			dst.Pix[y*dst.Stride+x] = m
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
