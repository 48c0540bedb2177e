package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// previewMaxSize bounds the longest edge of annotated preview frames so
// SSE payloads stay small.
const previewMaxSize = 640

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// annotateFrame draws a box around every detected face and returns the
// frame re-encoded as JPEG, downscaled for preview.
func annotateFrame(frame []byte, boxes [][]float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, bbox := range boxes {
		if len(bbox) != 4 {
			continue
		}
		drawBox(dst, int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3]))
	}

	resized := resizePreview(dst, previewMaxSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox draws a 2px rectangle outline on the image.
func drawBox(dst *image.RGBA, x1, y1, x2, y2 int) {
	for t := 0; t < 2; t++ {
		drawHLine(dst, x1, x2, y1+t)
		drawHLine(dst, x1, x2, y2-t)
		drawVLine(dst, y1, y2, x1+t)
		drawVLine(dst, y1, y2, x2-t)
	}
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int) {
	bounds := dst.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			dst.Set(x, y, boxColor)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int) {
	bounds := dst.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			dst.Set(x, y, boxColor)
		}
	}
}

// resizePreview scales an image to fit within maxSize while maintaining
// aspect ratio.
func resizePreview(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		if width <= maxSize {
			return img
		}
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		if height <= maxSize {
			return img
		}
		newHeight = maxSize
		newWidth = width * maxSize / height
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
