/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"scenarioconv/internal/diagram"
)

// PNGOptions controls PNG export behavior.
// - Scale: output pixels per layout unit; defaults to 1.5.
// - NoLabels: omit node text.
type PNGOptions struct {
	Scale    float64
	NoLabels bool
}

// DiagramPNG rasterizes doc. Labels use the fixed 7x13 bitmap face, which
// covers ASCII; other characters are skipped.
func DiagramPNG(doc diagram.Document, opt PNGOptions) ([]byte, error) {
	scale := opt.Scale
	if scale <= 0 {
		scale = 1.5
	}
	w, h, dx, dy := canvas(doc)
	px := func(v float64) int { return int(math.Round(v * scale)) }
	pixW, pixH := px(w), px(h)
	if pixW <= 0 || pixH <= 0 || pixW*pixH > 64<<20 {
		return nil, fmt.Errorf("png size %dx%d out of range", pixW, pixH)
	}

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	for _, e := range doc.Edges {
		src, ok1 := doc.Node(e.Source)
		dst, ok2 := doc.Node(e.Target)
		if !ok1 || !ok2 {
			continue
		}
		x0, y0, x1, y1 := anchors(src.Bounds, dst.Bounds)
		drawLine(img, px(x0+dx), px(y0+dy), px(x1+dx), px(y1+dy), edgeColor)
	}

	face := basicfont.Face7x13
	for _, n := range doc.Nodes {
		r := n.Bounds
		x0, y0 := px(r.X+dx), px(r.Y+dy)
		x1, y1 := px(r.Right()+dx)-1, px(r.Bottom()+dy)-1
		fill, stroke := nodeColors(n.Kind)
		switch n.Kind {
		case diagram.KindScene:
			fillRect(img, x0, y0, x1, y1, fill)
			strokeRect(img, x0, y0, x1, y1, stroke)
		default:
			fillDiamond(img, x0, y0, x1, y1, fill, stroke)
		}
		if opt.NoLabels {
			continue
		}
		// Title only; bitmap text has no room for preview lines at small scales.
		maxChars := (x1 - x0 - 4) / face.Advance
		label := clipRunes(n.Title, maxChars)
		tw := font.MeasureString(face, label).Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(textColor),
			Face: face,
			Dot:  fixed.P((x0+x1-tw)/2, (y0+y1)/2+face.Ascent/2),
		}
		d.DrawString(label)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n <= 2 {
		return string(r[:n])
	}
	return string(r[:n-2]) + ".."
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	// top and bottom
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	// left and right
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// fillDiamond fills the rhombus inscribed in the box and outlines its edge.
func fillDiamond(img *image.RGBA, x0, y0, x1, y1 int, fill, stroke color.RGBA) {
	cx, cy := float64(x0+x1)/2, float64(y0+y1)/2
	hw, hh := float64(x1-x0)/2, float64(y1-y0)/2
	if hw <= 0 || hh <= 0 {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := math.Abs(float64(x)-cx)/hw + math.Abs(float64(y)-cy)/hh
			switch {
			case d <= 1-1.5/math.Min(hw, hh):
				img.SetRGBA(x, y, fill)
			case d <= 1:
				img.SetRGBA(x, y, stroke)
			}
		}
	}
}

// drawLine draws a 1px line with Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
