// Package testdata builds synthetic frames and icons for tests so match
// positions are exact and no image files need shipping.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var boardBackground = color.RGBA{R: 96, G: 96, B: 96, A: 255}

// NewIcon returns a grayscale icon with a deterministic high-variance
// pattern. The seed varies the pattern so distinct icons do not correlate.
func NewIcon(w, h int, seed uint8) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetUCharAt(y, x, iconPixel(x, y, seed))
		}
	}
	return m
}

// NewBoard returns a BGR frame filled with a flat background.
func NewBoard(w, h int) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&m, image.Rect(0, 0, w, h), boardBackground, -1)
	return m
}

// Stamp draws a grayscale icon onto a BGR board with its top-left corner at
// pt, replicating the gray value into all three channels.
func Stamp(board *gocv.Mat, icon gocv.Mat, pt image.Point) {
	for y := 0; y < icon.Rows(); y++ {
		for x := 0; x < icon.Cols(); x++ {
			by, bx := pt.Y+y, pt.X+x
			if by < 0 || bx < 0 || by >= board.Rows() || bx >= board.Cols() {
				continue
			}
			v := icon.GetUCharAt(y, x)
			board.SetUCharAt(by, bx*3, v)
			board.SetUCharAt(by, bx*3+1, v)
			board.SetUCharAt(by, bx*3+2, v)
		}
	}
}

// StampScaled draws the icon resized by the given factor.
func StampScaled(board *gocv.Mat, icon gocv.Mat, pt image.Point, factor float64) {
	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(icon, &scaled, image.Point{}, factor, factor, gocv.InterpolationLinear)
	Stamp(board, scaled, pt)
}

// IconImage renders the same pattern as NewIcon into an image.Gray, for
// tests that need to write template files to disk.
func IconImage(w, h int, seed uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = iconPixel(x, y, seed)
		}
	}
	return img
}

func iconPixel(x, y int, seed uint8) uint8 {
	// Checkerboard modulated by a diagonal gradient; sharp structure in
	// both axes keeps the normalized correlation peak narrow.
	v := uint8((x*7 + y*13) % 251)
	if (x/4+y/4)%2 == 0 {
		v = 255 - v
	}
	return v ^ seed
}
