package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/yllada/ncconnect/common"
)

// iconPalette colors one tray icon state.
type iconPalette struct {
	fill   color.RGBA
	border color.RGBA
	accent color.RGBA
	symbol color.RGBA
}

var (
	paletteConnected = iconPalette{
		fill:   color.RGBA{56, 142, 60, 255},
		border: color.RGBA{76, 175, 80, 255},
		accent: color.RGBA{200, 230, 201, 255},
		symbol: color.RGBA{255, 255, 255, 255},
	}
	paletteDisconnected = iconPalette{
		fill:   color.RGBA{117, 117, 117, 255},
		border: color.RGBA{158, 158, 158, 255},
		accent: color.RGBA{189, 189, 189, 255},
		symbol: color.RGBA{255, 255, 255, 255},
	}
)

// TrayIcon renders the PNG tray icon for a tunnel state: a shield with a
// checkmark when connected, with a padlock otherwise.
func TrayIcon(connected bool) []byte {
	if connected {
		return renderIcon(common.TrayIconSize, paletteConnected, drawCheckmark)
	}
	return renderIcon(common.TrayIconSize, paletteDisconnected, drawLock)
}

func renderIcon(size int, p iconPalette, glyph func(*image.RGBA, color.RGBA)) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	drawShield(img, p)
	glyph(img, p.symbol)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		common.LogError("Icons: encoding tray icon: %v", err)
		return nil
	}
	return buf.Bytes()
}

// inShield reports whether (x, y) lies inside a shield inscribed in a
// size×size square.
func inShield(size int, x, y float64) bool {
	top, bottom := 1.0, float64(size)-2
	width := float64(size) - 4
	center := float64(size) / 2

	rel := (y - top) / (bottom - top)
	if rel < 0 || rel > 1 {
		return false
	}

	var half float64
	if rel < 0.5 {
		half = width/2 - rel*0.5
	} else {
		t := (rel - 0.5) * 2
		half = (width/2 - 0.25) * (1 - t*t)
	}
	return x >= center-half && x <= center+half
}

func drawShield(img *image.RGBA, p iconPalette) {
	size := img.Bounds().Dx()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !inShield(size, fx, fy) {
				continue
			}

			edge := !inShield(size, fx-1, fy) || !inShield(size, fx+1, fy) ||
				!inShield(size, fx, fy-1) || !inShield(size, fx, fy+1)
			switch {
			case edge:
				img.Set(x, y, p.border)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, p.accent)
			default:
				img.Set(x, y, p.fill)
			}
		}
	}
}

func drawCheckmark(img *image.RGBA, c color.RGBA) {
	points := [][2]int{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	}
	b := img.Bounds()
	for _, pt := range points {
		if image.Pt(pt[0], pt[1]).In(b) {
			img.Set(pt[0], pt[1], c)
		}
	}
}

func drawLock(img *image.RGBA, c color.RGBA) {
	// Body.
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				img.Set(x, y, c)
			}
		}
	}
	// Shackle.
	for y := 6; y <= 8; y++ {
		img.Set(9, y, c)
		img.Set(13, y, c)
	}
	for x := 9; x <= 13; x++ {
		img.Set(x, 6, c)
	}
}
