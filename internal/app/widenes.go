package app

// wideCanvasCols/wideCanvasRows size the mosaic at the PPU's own 2x2
// nametable layout (each nametable quadrant is one NES screen).
const (
	wideCanvasCols = 2
	wideCanvasRows = 2
	wideCanvasW    = 256 * wideCanvasCols
	wideCanvasH    = 240 * wideCanvasRows
)

// WideCompositor stitches consecutive frames into a persistent mosaic
// that extends the visible playfield beyond one screen, gated by
// EmulationConfig.WideNES. Each frame is painted into the quadrant
// addressed by the PPU's current nametable index, so a game that
// scrolls between nametables slowly reveals the full mosaic rather than
// only ever showing the current 256x240 window.
type WideCompositor struct {
	canvas  [wideCanvasW * wideCanvasH]uint32
	painted [wideCanvasCols * wideCanvasRows]bool
}

// NewWideCompositor creates an empty mosaic.
func NewWideCompositor() *WideCompositor {
	return &WideCompositor{}
}

// Composite paints frame into the mosaic quadrant selected by
// nametable (0=top-left, 1=top-right, 2=bottom-left, 3=bottom-right).
func (w *WideCompositor) Composite(frame [256 * 240]uint32, nametable int) {
	nametable &= 0x03
	originX := (nametable & 1) * 256
	originY := ((nametable >> 1) & 1) * 240

	for y := 0; y < 240; y++ {
		srcRow := y * 256
		dstRow := (originY+y)*wideCanvasW + originX
		copy(w.canvas[dstRow:dstRow+256], frame[srcRow:srcRow+256])
	}
	w.painted[nametable] = true
}

// Canvas returns the accumulated mosaic frame buffer.
func (w *WideCompositor) Canvas() [wideCanvasW * wideCanvasH]uint32 {
	return w.canvas
}

// Dimensions returns the mosaic's pixel width and height.
func (w *WideCompositor) Dimensions() (width, height int) {
	return wideCanvasW, wideCanvasH
}

// Reset clears the mosaic, e.g. on ROM load.
func (w *WideCompositor) Reset() {
	for i := range w.canvas {
		w.canvas[i] = 0
	}
	for i := range w.painted {
		w.painted[i] = false
	}
}
