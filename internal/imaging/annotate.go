package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls how Annotate draws boxes and labels.
type Style struct {
	// Name identifies the style in logs.
	Name string

	// Color is the fixed box and text colour. Ignored when UsePalette is set.
	Color color.RGBA

	// UsePalette gives every distinct phrase its own colour.
	UsePalette bool

	// Thickness is the rectangle stroke width in pixels.
	Thickness int

	// ShowScore appends the confidence to the label ("cat 0.87").
	ShowScore bool

	// FilledLabel draws the label on a box-coloured background directly
	// above the rectangle. Otherwise the text is drawn LabelOffset pixels
	// above the top edge with no background.
	FilledLabel bool
	LabelOffset int
}

var (
	// PaletteStyle is used when phrases come from real text grounding.
	PaletteStyle = Style{
		Name:        "palette",
		UsePalette:  true,
		Thickness:   2,
		ShowScore:   true,
		FilledLabel: true,
	}

	// PlainStyle is used with placeholder labels.
	PlainStyle = Style{
		Name:        "plain",
		Color:       mustParseHex("#00FF00"),
		Thickness:   2,
		LabelOffset: 10,
	}
)

// Label is one box to draw.
type Label struct {
	// Box is normalized (cx, cy, w, h).
	Box    [4]float64
	Phrase string
	Score  float64
}

// PixelRect converts a normalized (cx, cy, w, h) box to pixel corners for an
// image of width x height, clamped to the image.
func PixelRect(box [4]float64, width, height int) image.Rectangle {
	cx, cy, bw, bh := box[0], box[1], box[2], box[3]
	x1 := int((cx - bw/2) * float64(width))
	y1 := int((cy - bh/2) * float64(height))
	x2 := int((cx + bw/2) * float64(width))
	y2 := int((cy + bh/2) * float64(height))
	return image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, width, height))
}

// Annotate returns a copy of src with a rectangle and text label drawn for
// each entry of labels, in order. src is not modified.
func Annotate(src image.Image, labels []Label, style Style) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	w, h := bounds(dst)
	palette := NewPalette()
	thickness := style.Thickness
	if thickness < 1 {
		thickness = 1
	}

	for _, l := range labels {
		col := style.Color
		if style.UsePalette {
			col = palette.Color(l.Phrase)
		}

		r := PixelRect(l.Box, w, h)
		if r.Empty() {
			continue
		}
		drawRect(dst, r, col, thickness)

		text := l.Phrase
		if style.ShowScore {
			text = fmt.Sprintf("%s %.2f", l.Phrase, l.Score)
		}
		if style.FilledLabel {
			drawFilledLabel(dst, r, text, col)
		} else {
			drawPlainLabel(dst, r, text, col, style.LabelOffset)
		}
	}

	return dst
}

// drawRect strokes r inward with the given thickness.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		x1, y1, x2, y2 := r.Min.X+t, r.Min.Y+t, r.Max.X-1-t, r.Max.Y-1-t
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			img.SetRGBA(x, y1, c)
			img.SetRGBA(x, y2, c)
		}
		for y := y1; y <= y2; y++ {
			img.SetRGBA(x1, y, c)
			img.SetRGBA(x2, y, c)
		}
	}
}

var labelFace = basicfont.Face7x13

func drawText(img *image.RGBA, x, baseline int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return font.MeasureString(labelFace, text).Ceil()
}

// drawFilledLabel puts text on a bg-coloured strip just above r, or just
// inside its top edge when there is no room above.
func drawFilledLabel(img *image.RGBA, r image.Rectangle, text string, bg color.RGBA) {
	const pad = 2
	m := labelFace.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	lh := ascent + descent + 2*pad

	top := r.Min.Y - lh
	if top < 0 {
		top = r.Min.Y
	}
	strip := image.Rect(r.Min.X, top, r.Min.X+textWidth(text)+2*pad, top+lh).Intersect(img.Bounds())
	draw.Draw(img, strip, image.NewUniform(bg), image.Point{}, draw.Src)
	drawText(img, r.Min.X+pad, top+pad+ascent, text, textColorFor(bg))
}

// drawPlainLabel draws text with its baseline offset pixels above r. When
// that would clip the top of the image, the baseline moves inside the box.
func drawPlainLabel(img *image.RGBA, r image.Rectangle, text string, c color.RGBA, offset int) {
	ascent := labelFace.Metrics().Ascent.Ceil()
	baseline := r.Min.Y - offset
	if baseline-ascent < 0 {
		baseline = r.Min.Y + ascent + offset
	}
	drawText(img, r.Min.X, baseline, text, c)
}

func mustParseHex(hex string) color.RGBA {
	c, err := ParseHexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}
