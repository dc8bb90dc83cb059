package imaging

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spaces successive palette hues so neighbours stay distinct.
const goldenAngle = 137.508

// Palette assigns a stable colour to each distinct key in order of first
// appearance.
type Palette struct {
	colors map[string]color.RGBA
	next   int
}

// NewPalette returns an empty palette.
func NewPalette() *Palette {
	return &Palette{colors: make(map[string]color.RGBA)}
}

// Color returns the colour for key, assigning a new one on first use.
func (p *Palette) Color(key string) color.RGBA {
	if c, ok := p.colors[key]; ok {
		return c
	}
	c := paletteColor(p.next)
	p.colors[key] = c
	p.next++
	return c
}

// Len reports how many keys have been assigned a colour.
func (p *Palette) Len() int { return len(p.colors) }

func paletteColor(i int) color.RGBA {
	hue := math.Mod(float64(i)*goldenAngle, 360)
	r, g, b := colorful.Hsv(hue, 0.75, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// textColorFor picks black or white text for legibility on bg.
func textColorFor(bg color.RGBA) color.RGBA {
	c, _ := colorful.MakeColor(bg)
	l, _, _ := c.Lab()
	if l > 0.6 {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{255, 255, 255, 255}
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" (the "#" is optional).
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
