package filter

import (
	"image"
)

// Bake rasterizes the state into img in place.
// Blur is applied as a local box blur first, then the image is drawn over
// itself through the commit chain.
func Bake(img *image.NRGBA, s State) error {
	if img == nil {
		return nil
	}

	RasterizeLocalBlur(img, BlurRadius(s))

	chain, err := ParseChain(CommitChain(s))
	if err != nil {
		return err
	}

	if chain.IsIdentity() {
		return nil
	}

	out := image.NewNRGBA(img.Bounds())
	if err := chain.Draw(out, img); err != nil {
		return err
	}

	b := img.Bounds()
	rowLength := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		copy(img.Pix[img.PixOffset(b.Min.X, y):][:rowLength], out.Pix[out.PixOffset(b.Min.X, y):][:rowLength])
	}

	return nil
}
