package template

import (
	"bytes"
	"image"
	"image/draw"

	// Template images are PNG in practice, but the collector occasionally
	// saves JPEG crops.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"
)

// Unsharp mask parameters for the post-downscale sharpening pass.
const (
	sharpenSigma  = 1.0
	sharpenAmount = 0.6
)

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// normalizeImage rescales a decoded template to the working resize factor and
// sharpens it to keep edges crisp after resampling. A factor of 1.0 only
// flattens the image into RGBA.
func normalizeImage(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	if factor > 0 && !equalScale(factor, 1.0) {
		w := int(float64(b.Dx())*factor + 0.5)
		if w < 1 {
			w = 1
		}
		g := gift.New(
			gift.Resize(w, 0, gift.LanczosResampling),
			gift.UnsharpMask(sharpenSigma, sharpenAmount, 0),
		)
		dst := image.NewRGBA(g.Bounds(b))
		g.Draw(dst, img)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// toGrayMat converts a decoded image into a single-channel grayscale Mat.
func toGrayMat(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	return gray, nil
}

// Downscale shrinks a grayscale Mat by the given scale and applies an
// unsharp mask to compensate for detail lost to the resampling. The caller
// owns the returned Mat unless it came from a template's scale cache.
func Downscale(src gocv.Mat, scale float64) gocv.Mat {
	scaled := gocv.NewMat()
	gocv.Resize(src, &scaled, image.Point{}, scale, scale, gocv.InterpolationArea)

	sharpened := Sharpen(scaled)
	scaled.Close()
	return sharpened
}

// Rescale resizes a grayscale Mat by the given factor and sharpens the
// result. Area resampling for shrinking, cubic for enlarging.
func Rescale(src gocv.Mat, factor float64) gocv.Mat {
	if factor <= 0 || equalScale(factor, 1.0) {
		return src.Clone()
	}

	interp := gocv.InterpolationArea
	if factor > 1.0 {
		interp = gocv.InterpolationCubic
	}
	scaled := gocv.NewMat()
	gocv.Resize(src, &scaled, image.Point{}, factor, factor, interp)

	sharpened := Sharpen(scaled)
	scaled.Close()
	return sharpened
}

// Sharpen applies an unsharp mask: dst = (1+amount)*src - amount*blur(src).
func Sharpen(src gocv.Mat) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(0, 0), sharpenSigma, sharpenSigma, gocv.BorderDefault)

	dst := gocv.NewMat()
	gocv.AddWeighted(src, 1+sharpenAmount, blurred, -sharpenAmount, 0, &dst)
	return dst
}
