/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image/color"

	"scenarioconv/internal/diagram"
)

// Colors of the preview renderers, matching the draw.io styles.
var (
	sceneFill   = color.RGBA{0xda, 0xe8, 0xfc, 0xff}
	sceneStroke = color.RGBA{0x6c, 0x8e, 0xbf, 0xff}
	choiceFill  = color.RGBA{0xff, 0xf2, 0xcc, 0xff}
	choiceStrk  = color.RGBA{0xd6, 0xb6, 0x56, 0xff}
	edgeColor   = color.RGBA{0x33, 0x33, 0x33, 0xff}
	textColor   = color.RGBA{0x00, 0x00, 0x00, 0xff}
	background  = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// previewMargin surrounds the diagram extent in every preview.
const previewMargin = 40.0

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func nodeColors(k diagram.Kind) (fill, stroke color.RGBA) {
	if k == diagram.KindScene {
		return sceneFill, sceneStroke
	}
	return choiceFill, choiceStrk
}

// canvas returns the drawing area of doc: the node extent grown by the margin.
// Coordinates are shifted so the area starts at the origin.
func canvas(doc diagram.Document) (w, h, dx, dy float64) {
	ext := doc.Extent()
	w = ext.W + 2*previewMargin
	h = ext.H + 2*previewMargin
	dx = previewMargin - ext.X
	dy = previewMargin - ext.Y
	return w, h, dx, dy
}

// anchors returns the edge endpoints: bottom-center of the source and
// top-center of the target, or the side centers when the target lies above.
func anchors(src, dst diagram.Rect) (x0, y0, x1, y1 float64) {
	sx, _ := src.Center()
	tx, _ := dst.Center()
	if dst.Y >= src.Bottom() {
		return sx, src.Bottom(), tx, dst.Y
	}
	return src.Right(), src.Y + src.H/2, dst.Right(), dst.Y + dst.H/2
}
