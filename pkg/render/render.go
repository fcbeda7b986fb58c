// Package render draws reduced light curves as stacked panels with the
// fitted model, residuals and region markers.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"lcreduce/pkg/lcreduce"
)

// ErrNothingToDraw is returned when no curve in the pass has data.
var ErrNothingToDraw = errors.New("render: no curves with data")

// Options control the plot layout.
type Options struct {
	Width, Height int
	Title         string
	XLabel        string
	Residuals     bool
	Markers       bool
	// BinWidth overlays time-binned points when positive (in x units).
	BinWidth float64
}

// DefaultOptions is an 1000x700 plot with residuals and markers.
func DefaultOptions() Options {
	return Options{Width: 1000, Height: 700, XLabel: "BJD_TDB", Residuals: true, Markers: true}
}

var palette = []color.RGBA{
	{80, 160, 255, 255},
	{255, 120, 80, 255},
	{120, 220, 120, 255},
	{230, 200, 60, 255},
	{200, 120, 240, 255},
	{80, 220, 220, 255},
}

const (
	marginLeft   = 70
	marginRight  = 20
	marginTop    = 30
	marginBottom = 40
	legendW      = 230
)

// WriteFile renders the pass to path as JPEG or PNG depending on the extension.
func WriteFile(pass *lcreduce.PassResult, opts Options, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return Encode(f, pass, opts, FormatPNG)
	}
	return Encode(f, pass, opts, FormatJPEG)
}

// Format selects the image encoding.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

// Encode renders the pass and writes it in the given format.
func Encode(w io.Writer, pass *lcreduce.PassResult, opts Options, format Format) error {
	img, err := Render(pass, opts)
	if err != nil {
		return err
	}
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("render: unknown format %d", format)
	}
}

// Bytes renders the pass as JPEG bytes.
func Bytes(pass *lcreduce.PassResult, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, pass, opts, FormatJPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// axis maps data values to pixels.
type axis struct {
	lo, hi   float64
	p0, p1   int
	inverted bool
}

func (a axis) px(v float64) int {
	t := (v - a.lo) / (a.hi - a.lo)
	if a.inverted {
		t = 1 - t
	}
	return a.p0 + int(math.Round(t*float64(a.p1-a.p0)))
}

// span returns the finite range of the given slices, padded by 5%.
func span(series ...[]float64) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= lcreduce.DivideByZeroSentinel {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, false
	}
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad, true
}

// Render draws every OK curve of the pass into one image.
func Render(pass *lcreduce.PassResult, opts Options) (*image.RGBA, error) {
	if pass == nil {
		return nil, errors.New("render: nil pass")
	}
	if opts.Width < 200 || opts.Height < 150 {
		return nil, fmt.Errorf("render: image %dx%d too small", opts.Width, opts.Height)
	}
	var curves []lcreduce.CurveResult
	for _, c := range pass.Curves {
		if c.Status == lcreduce.StatusOK && len(c.Y) > 0 {
			curves = append(curves, c)
		}
	}
	if len(curves) == 0 {
		return nil, ErrNothingToDraw
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	face := basicfont.Face7x13
	plotR := opts.Width - marginRight - legendW
	plotB := opts.Height - marginBottom

	var xs [][]float64
	for _, c := range curves {
		xs = append(xs, c.X, c.ModelX)
	}
	xlo, xhi, _ := span(xs...)
	xa := axis{lo: xlo, hi: xhi, p0: marginLeft, p1: plotR}

	frame := color.RGBA{160, 160, 160, 255}
	drawRect(img, marginLeft, marginTop, plotR, plotB, frame)
	drawCenteredText(img, face, opts.Title, opts.Width/2, 18, color.RGBA{255, 255, 255, 255})
	drawCenteredText(img, face, opts.XLabel, (marginLeft+plotR)/2, opts.Height-8, frame)
	drawText(img, face, fmt.Sprintf("%.4f", xlo), marginLeft, plotB+16, frame)
	hiLabel := fmt.Sprintf("%.4f", xhi)
	drawText(img, face, hiLabel, plotR-font.MeasureString(face, hiLabel).Round(), plotB+16, frame)

	panelH := (plotB - marginTop) / len(curves)
	for k, c := range curves {
		col := palette[k%len(palette)]
		top := marginTop + k*panelH
		bottom := top + panelH
		dataB := bottom
		if opts.Residuals && c.Residual != nil {
			dataB = top + panelH*3/4
		}
		if k > 0 {
			drawHLine(img, marginLeft, plotR, top, frame)
		}

		ylo, yhi, ok := span(c.Y, c.ModelY)
		if !ok {
			continue
		}
		ya := axis{lo: ylo, hi: yhi, p0: top + 4, p1: dataB - 4, inverted: true}
		var bars []float64
		if c.HasErr {
			bars = c.YErr
		}
		drawPoints(img, xa, ya, c.X, c.Y, bars, col, 1)
		if opts.BinWidth > 0 {
			bx, by, be := lcreduce.BinByWidth(c.X, c.Y, c.YErr, opts.BinWidth)
			if !c.HasErr {
				be = nil
			}
			drawPoints(img, xa, ya, bx, by, be, color.RGBA{255, 255, 255, 255}, 3)
		}
		drawPolyline(img, xa, ya, c.ModelX, c.ModelY, color.RGBA{255, 60, 60, 255})
		drawText(img, face, fmt.Sprintf("%.4g", yhi), 4, top+14, frame)
		drawText(img, face, fmt.Sprintf("%.4g", ylo), 4, dataB-2, frame)

		if dataB != bottom {
			rlo, rhi, ok := span(c.Residual)
			if ok {
				ra := axis{lo: rlo, hi: rhi, p0: dataB + 2, p1: bottom - 2, inverted: true}
				zero := ra.px(0)
				if zero > dataB && zero < bottom {
					drawDashedHLine(img, marginLeft, plotR, zero, frame)
				}
				drawPoints(img, xa, ra, c.X, c.Residual, nil, col, 1)
			}
		}
		drawLegend(img, face, c, col, plotR+10, top+14)
	}

	if opts.Markers {
		m := pass.Markers
		inner := color.RGBA{255, 80, 80, 255}
		outer := color.RGBA{80, 200, 255, 255}
		drawMarker(img, xa, m.InnerLeft, marginTop, plotB, inner)
		drawMarker(img, xa, m.InnerRight, marginTop, plotB, inner)
		if m.UseLeft {
			drawMarker(img, xa, m.Left, marginTop, plotB, outer)
		}
		if m.UseRight {
			drawMarker(img, xa, m.Right, marginTop, plotB, outer)
		}
		if m.MeridianFlip > xa.lo && m.MeridianFlip < xa.hi {
			px := xa.px(m.MeridianFlip)
			flip := color.RGBA{255, 255, 0, 255}
			drawLine(img, px, marginTop+2, px, marginTop+30, flip)
			drawArrowHead(img, px, marginTop+2, px, marginTop+30, flip)
			drawText(img, face, "flip", px+4, marginTop+14, flip)
		}
	}
	return img, nil
}

// drawLegend writes the curve id and its statistics in sorted key order.
func drawLegend(img *image.RGBA, face font.Face, c lcreduce.CurveResult, col color.RGBA, x, y int) {
	drawText(img, face, c.ID, x, y, col)
	stats := c.Stats.Display()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	text := color.RGBA{220, 220, 220, 255}
	for i, k := range keys {
		if i >= 8 {
			break
		}
		drawText(img, face, k+": "+stats[k], x, y+14*(i+1), text)
	}
}

func inside(img *image.RGBA, x, y int) bool {
	return image.Pt(x, y).In(img.Bounds())
}

func drawPoints(img *image.RGBA, xa, ya axis, x, y, yErr []float64, c color.RGBA, radius int) {
	for i := range y {
		if i >= len(x) || math.IsNaN(x[i]) || math.IsNaN(y[i]) || y[i] < ya.lo || y[i] > ya.hi {
			continue
		}
		px, py := xa.px(x[i]), ya.px(y[i])
		if i < len(yErr) && !math.IsNaN(yErr[i]) && yErr[i] > 0 {
			e0 := ya.px(math.Min(y[i]+yErr[i], ya.hi))
			e1 := ya.px(math.Max(y[i]-yErr[i], ya.lo))
			dim := color.RGBA{c.R / 2, c.G / 2, c.B / 2, 255}
			for yy := e0; yy <= e1; yy++ {
				if inside(img, px, yy) {
					img.Set(px, yy, dim)
				}
			}
		}
		if radius <= 1 {
			if inside(img, px, py) {
				img.Set(px, py, c)
				img.Set(px+1, py, c)
			}
			continue
		}
		drawCircle(img, px, py, radius, c)
	}
}

func drawPolyline(img *image.RGBA, xa, ya axis, x, y []float64, c color.RGBA) {
	havePrev := false
	var px0, py0 int
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			havePrev = false
			continue
		}
		px, py := xa.px(x[i]), ya.px(math.Max(ya.lo, math.Min(ya.hi, y[i])))
		if havePrev {
			drawLine(img, px0, py0, px, py, c)
		}
		px0, py0, havePrev = px, py, true
	}
}

func drawMarker(img *image.RGBA, xa axis, x float64, top, bottom int, c color.RGBA) {
	if x <= xa.lo || x >= xa.hi {
		return
	}
	px := xa.px(x)
	for y := top; y < bottom; y++ {
		if (y/4)%2 == 0 {
			img.Set(px, y, c)
		}
	}
}

func drawRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	drawHLine(img, x0, x1, y0, c)
	drawHLine(img, x0, x1, y1, c)
	for y := y0; y <= y1; y++ {
		img.Set(x0, y, c)
		img.Set(x1, y, c)
	}
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func drawDashedHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		if (x/4)%2 == 0 {
			img.Set(x, y, c)
		}
	}
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCenteredText draws a string centered at (cx, cy).
func drawCenteredText(img *image.RGBA, face font.Face, s string, cx, cy int, c color.RGBA) {
	advance := font.MeasureString(face, s)
	drawText(img, face, s, cx-advance.Round()/2, cy, c)
}

// drawCircle draws a circle outline using the midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.Set(cx+x, cy+y, c)
		img.Set(cx+y, cy+x, c)
		img.Set(cx-y, cy+x, c)
		img.Set(cx-x, cy+y, c)
		img.Set(cx-x, cy-y, c)
		img.Set(cx-y, cy-x, c)
		img.Set(cx+y, cy-x, c)
		img.Set(cx+x, cy-y, c)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// drawLine draws a 2px line between two points using Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		img.Set(x0, y0+1, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawArrowHead draws two wings at (x1, y1) pointing along the segment.
func drawArrowHead(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := float64(x1 - x0)
	dy := float64(y1 - y0)
	length := math.Sqrt(dx*dx + dy*dy)
	if length < 1 {
		return
	}
	dx /= length
	dy /= length

	const sz = 8.0
	px := float64(x1) - dx*sz
	py := float64(y1) - dy*sz
	drawLine(img, x1, y1, int(px+dy*sz*0.4), int(py-dx*sz*0.4), c)
	drawLine(img, x1, y1, int(px-dy*sz*0.4), int(py+dx*sz*0.4), c)
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
