package filter

import (
	"image"
	"math"
)

// BlurMultiplier scales the blur slider value into a box blur radius.
// A box blur looks weaker than the gaussian used for preview.
const BlurMultiplier = 3

// Number of box blur passes approximating a gaussian
const blurPasses = 3

// BlurRadius returns the box blur radius for the blur value of a state
func BlurRadius(s State) int {
	return int(math.Round(s.Blur * BlurMultiplier))
}

// RasterizeLocalBlur blurs the pixels of img in place, alpha included.
// A radius of zero or less leaves the image untouched.
func RasterizeLocalBlur(img *image.NRGBA, radius int) {
	if img == nil || radius <= 0 {
		return
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return
	}

	// Work on a tightly packed copy, img may be a sub image with a larger stride
	rowLength := width * 4
	buf := make([]uint8, rowLength*height)
	tmp := make([]uint8, len(buf))
	for y := 0; y < height; y++ {
		offset := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf[y*rowLength:(y+1)*rowLength], img.Pix[offset:offset+rowLength])
	}

	for _, size := range boxSizes(float64(radius), blurPasses) {
		r := (size - 1) / 2
		if r <= 0 {
			continue
		}
		boxBlurHorizontal(buf, tmp, width, height, r)
		boxBlurVertical(tmp, buf, width, height, r)
	}

	for y := 0; y < height; y++ {
		offset := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(img.Pix[offset:offset+rowLength], buf[y*rowLength:(y+1)*rowLength])
	}
}

// boxSizes returns the odd box widths whose successive application approximates a gaussian of sigma
func boxSizes(sigma float64, n int) []int {
	ideal := math.Sqrt(12*sigma*sigma/float64(n) + 1)
	lower := int(math.Floor(ideal))
	if lower%2 == 0 {
		lower--
	}
	upper := lower + 2

	mIdeal := (12*sigma*sigma - float64(n*lower*lower) - float64(4*n*lower) - float64(3*n)) / float64(-4*lower-4)
	m := int(math.Round(mIdeal))

	sizes := make([]int, n)
	for i := range sizes {
		if i < m {
			sizes[i] = lower
		} else {
			sizes[i] = upper
		}
	}

	return sizes
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// boxBlurHorizontal averages every pixel with its r neighbours on each side of the row, edges extended
func boxBlurHorizontal(src, dst []uint8, width, height, r int) {
	window := 2*r + 1
	half := window / 2

	for y := 0; y < height; y++ {
		row := y * width * 4

		for c := 0; c < 4; c++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += int(src[row+clampIndex(k, width)*4+c])
			}

			for x := 0; x < width; x++ {
				dst[row+x*4+c] = uint8((sum + half) / window)

				add := clampIndex(x+r+1, width)
				remove := clampIndex(x-r, width)
				sum += int(src[row+add*4+c]) - int(src[row+remove*4+c])
			}
		}
	}
}

// boxBlurVertical averages every pixel with its r neighbours on each side of the column, edges extended
func boxBlurVertical(src, dst []uint8, width, height, r int) {
	window := 2*r + 1
	half := window / 2
	stride := width * 4

	for x := 0; x < width; x++ {
		column := x * 4

		for c := 0; c < 4; c++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += int(src[clampIndex(k, height)*stride+column+c])
			}

			for y := 0; y < height; y++ {
				dst[y*stride+column+c] = uint8((sum + half) / window)

				add := clampIndex(y+r+1, height)
				remove := clampIndex(y-r, height)
				sum += int(src[add*stride+column+c]) - int(src[remove*stride+column+c])
			}
		}
	}
}
