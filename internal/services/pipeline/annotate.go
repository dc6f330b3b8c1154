package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/services/compliance"
)

var (
	colorOK      = color.RGBA{0, 200, 0, 255}
	colorMissing = color.RGBA{220, 0, 0, 255}
	colorNA      = color.RGBA{230, 200, 0, 255}
	colorBox     = color.RGBA{255, 165, 0, 255}
	colorText    = color.RGBA{255, 255, 255, 255}
	colorShade   = color.RGBA{0, 0, 0, 160}
)

const (
	lineHeight = 16
	margin     = 8
)

var statusText = map[compliance.ItemStatus]struct {
	text string
	c    color.RGBA
}{
	compliance.StatusPresent:       {"OK", colorOK},
	compliance.StatusMissing:       {"MISSING", colorMissing},
	compliance.StatusNotApplicable: {"N/A", colorNA},
}

type Overlay struct {
	PersonLabel string
	Detections  []models.Detection
	Outcome     compliance.Outcome
	Recording   bool
}

// Annotate draws the overlay onto a copy of frame; frame is not modified.
func Annotate(frame image.Image, ov Overlay) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)

	for _, d := range ov.Detections {
		if !d.HasBox() {
			continue
		}

		rect := image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3])).Intersect(out.Bounds())
		if rect.Empty() {
			continue
		}

		c := colorBox
		if d.Class == ov.PersonLabel {
			c = colorOK
			if len(ov.Outcome.Missing) > 0 {
				c = colorMissing
			}
		}
		drawRect(out, rect, c, 2)

		pt := image.Pt(rect.Min.X, rect.Min.Y-4)
		if pt.Y-lineHeight < 0 {
			pt = image.Pt(rect.Min.X+2, rect.Min.Y+lineHeight)
		}
		drawLabel(out, fmt.Sprintf("%s %.2f", d.Class, d.Score), pt, c)
	}

	y := margin + lineHeight
	if len(ov.Detections) == 0 {
		drawLabel(out, "No relevant objects detected", image.Pt(margin, y), colorText)
	} else {
		drawLabel(out, fmt.Sprintf("Detections: %d", len(ov.Detections)), image.Pt(margin, y), colorText)

		for _, item := range ov.Outcome.Items {
			y += lineHeight
			st := statusText[item.Status]
			drawLabel(out, fmt.Sprintf("%s: %s", item.DisplayName, st.text), image.Pt(margin, y), st.c)
		}
	}

	if ov.Outcome.Summary != "" {
		banner := image.Rect(0, out.Bounds().Dy()-lineHeight-margin, out.Bounds().Dx(), out.Bounds().Dy())
		draw.Draw(out, banner, image.NewUniform(colorMissing), image.Point{}, draw.Over)
		drawText(out, "ALERT: "+ov.Outcome.Summary, image.Pt(margin, out.Bounds().Dy()-margin/2-2), colorText)
	}

	if ov.Recording {
		w := out.Bounds().Dx()
		dot := image.Rect(w-52, margin+4, w-42, margin+14)
		draw.Draw(out, dot, image.NewUniform(colorMissing), image.Point{}, draw.Src)
		drawLabel(out, "REC", image.Pt(w-38, margin+lineHeight-3), colorMissing)
	}

	return out
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	u := image.NewUniform(c)
	for i := 0; i < thickness; i++ {
		draw.Draw(img, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y), u, image.Point{}, draw.Src)
	}
}

// drawLabel draws text over a shaded box; pt is the text baseline origin.
func drawLabel(img *image.RGBA, text string, pt image.Point, c color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	bg := image.Rect(pt.X-2, pt.Y-face.Ascent-1, pt.X+width+2, pt.Y+face.Descent+1)
	draw.Draw(img, bg, image.NewUniform(colorShade), image.Point{}, draw.Over)

	drawText(img, text, pt, c)
}

func drawText(img *image.RGBA, text string, pt image.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}
