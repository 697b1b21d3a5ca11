package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/user/dnstun/internal/logger"
)

const iconSize = 32

// GetIcon returns PNG icon data for the given tunnel state.
func GetIcon(state string) []byte {
	switch state {
	case "active":
		return GenerateIcon(color.NRGBA{30, 200, 90, 255}) // green
	case "permission_pending", "establishing", "stopping":
		return GenerateIcon(color.NRGBA{240, 190, 30, 255}) // amber
	case "attention":
		return GenerateIcon(color.NRGBA{60, 130, 240, 255}) // blue
	case "error":
		return GenerateIcon(color.NRGBA{220, 55, 55, 255}) // red
	default:
		return GenerateIcon(color.NRGBA{160, 160, 160, 255}) // gray, idle
	}
}

// GenerateIcon renders a ring with a centered dot, anti-aliased on a
// transparent background.
func GenerateIcon(c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize-1) / 2

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			d := math.Hypot(float64(x)-center, float64(y)-center)
			// ring between radius 10 and 14, dot up to radius 5
			cover := math.Max(band(d, 10, 14), band(d, -1, 5))
			if cover <= 0 {
				continue
			}
			img.SetNRGBA(x, y, color.NRGBA{c.R, c.G, c.B, uint8(float64(c.A) * cover)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Error("Icon encode failed: %v", err)
		return nil
	}
	return buf.Bytes()
}

// band returns the coverage of a pixel at distance d for the annulus
// [inner, outer], with a one pixel soft edge.
func band(d, inner, outer float64) float64 {
	return clamp01(math.Min(d-inner+0.5, outer-d+0.5))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
