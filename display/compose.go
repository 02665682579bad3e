package display

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/overlay"
	"essaim.dev/kinectview/skeleton"
)

// Compose draws the current state of the window into dst, which should be
// Width x Height: the video with its overlay on the left, the depth image with
// its overlay on the right and the number of tracked skeletons on top.
func (w *Window) Compose(dst *image.RGBA) {
	w.composeMu.Lock()
	defer w.composeMu.Unlock()

	w.mu.Lock()
	w.videoBuf = copyView(w.videoBuf, w.video)
	w.depthBuf = copyView(w.depthBuf, w.depth)
	videoScene, depthScene := w.videoScene, w.depthScene
	w.mu.Unlock()

	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	w.composeView(dst, videoView.Add(dst.Bounds().Min), w.videoBuf, videoScene)
	w.composeView(dst, depthView.Add(dst.Bounds().Min), w.depthBuf, depthScene)

	hud := fmt.Sprintf("tracked: %d", depthScene.Skeletons)
	overlay.Label(dst, hud, hudDot.Add(dst.Bounds().Min), hudColor)
}

// composeView paints scene over view, then fits view into r of dst. The
// overlay is mirrored along with the image.
func (w *Window) composeView(dst *image.RGBA, r image.Rectangle, view *image.RGBA, scene skeleton.Scene) {
	w.painter.Draw(view, scene)
	if w.mirror {
		depth.HorizontalFlip(view)
	}

	if view.Bounds().Size() == r.Size() {
		draw.Draw(dst, r, view, view.Bounds().Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, view, view.Bounds(), draw.Src, nil)
}

// copyView copies src into dst, reallocating dst when needed. Without a
// source image the view is a black image of the default view size.
func copyView(dst, src *image.RGBA) *image.RGBA {
	r := image.Rect(0, 0, ViewWidth, ViewHeight)
	if src != nil {
		r = src.Bounds()
	}
	if dst == nil || dst.Bounds() != r {
		dst = image.NewRGBA(r)
	}

	if src == nil {
		draw.Draw(dst, r, image.Black, image.Point{}, draw.Src)
		return dst
	}
	copy(dst.Pix, src.Pix)

	return dst
}
