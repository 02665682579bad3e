// Package display shows the video and depth images side by side, with the
// skeleton overlays, in a desktop window.
package display

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/draw"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/size"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/overlay"
	"essaim.dev/kinectview/skeleton"
)

const (
	ViewWidth  = 640
	ViewHeight = 480

	Width  = 2 * ViewWidth
	Height = ViewHeight
)

var (
	videoView = image.Rect(0, 0, ViewWidth, ViewHeight)
	depthView = videoView.Add(image.Pt(ViewWidth, 0))

	hudDot   = image.Pt(8, 20)
	hudColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Window keeps the latest images and overlays handed over by the viewer and
// redraws itself whenever one changes.
type Window struct {
	title  string
	mirror bool
	log    *slog.Logger

	mu           sync.Mutex
	video        *image.RGBA
	depth        *image.RGBA
	videoScene   skeleton.Scene
	depthScene   skeleton.Scene
	events       screen.EventDeque
	closePending bool

	// Only used while composing.
	painter   *overlay.Painter
	videoBuf  *image.RGBA
	depthBuf  *image.RGBA
	composeMu sync.Mutex

	refresh chan struct{}
	done    chan struct{}
	err     error
}

func New(title string, mirror bool, log *slog.Logger) *Window {
	return &Window{
		title:   title,
		mirror:  mirror,
		log:     log,
		painter: overlay.NewPainter(overlay.DefaultStyle()),
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (w *Window) UpdateVideo(img *depth.BGRX) {
	w.mu.Lock()
	w.video = copyBGRX(w.video, img)
	w.mu.Unlock()

	w.requestRefresh()
}

func (w *Window) UpdateDepth(img *depth.BGRX) {
	w.mu.Lock()
	w.depth = copyBGRX(w.depth, img)
	w.mu.Unlock()

	w.requestRefresh()
}

func (w *Window) UpdateColorOverlay(scene skeleton.Scene) {
	w.mu.Lock()
	w.videoScene = scene
	w.mu.Unlock()

	w.requestRefresh()
}

func (w *Window) UpdateDepthOverlay(scene skeleton.Scene) {
	w.mu.Lock()
	w.depthScene = scene
	w.mu.Unlock()

	w.requestRefresh()
}

// Done is closed once the window is gone.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that closed the window, if any. Only valid after Done.
func (w *Window) Err() error {
	return w.err
}

// Close asks the window to close.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.events == nil {
		w.closePending = true
		return nil
	}
	w.events.Send(closeEvent{})

	return nil
}

func (w *Window) requestRefresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
		// A refresh is already queued.
	}
}

// Display runs the window until it is closed. It is meant to be passed to
// driver.Main.
func (w *Window) Display(s screen.Screen) {
	defer close(w.done)

	win, err := s.NewWindow(&screen.NewWindowOptions{
		Title:  w.title,
		Width:  Width,
		Height: Height,
	})
	if err != nil {
		w.err = fmt.Errorf("could not create window: %w", err)
		return
	}
	defer win.Release()

	tex, err := s.NewTexture(image.Pt(Width, Height))
	if err != nil {
		w.err = fmt.Errorf("could not create texture: %w", err)
		return
	}
	defer tex.Release()

	buf, err := s.NewBuffer(image.Pt(Width, Height))
	if err != nil {
		w.err = fmt.Errorf("could not create buffer: %w", err)
		return
	}
	defer buf.Release()

	w.mu.Lock()
	w.events = win
	closePending := w.closePending
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.events = nil
		w.closePending = true
		w.mu.Unlock()
	}()
	if closePending {
		return
	}

	stopRefresh := make(chan struct{})
	defer close(stopRefresh)
	go publishRefreshEvent(win, w.refresh, stopRefresh)

	w.log.Info("window opened", "width", Width, "height", Height, "mirror", w.mirror)

	sizeEvent := size.Event{}
	for {
		event := win.NextEvent()

		switch e := event.(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}

		case key.Event:
			if e.Code == key.CodeEscape {
				return
			}

		case closeEvent:
			return

		case size.Event:
			sizeEvent = e

		case uploadEvent:
			w.Compose(buf.RGBA())
			tex.Upload(image.Point{}, buf, buf.Bounds())
		}

		win.Scale(sizeEvent.Bounds(), tex, tex.Bounds(), draw.Src, nil)
		win.Publish()
	}
}

func publishRefreshEvent(q screen.EventDeque, refresh <-chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-refresh:
			q.Send(uploadEvent{})
		case <-stop:
			return
		}
	}
}

type uploadEvent struct{}

type closeEvent struct{}

// copyBGRX converts img into dst, reallocating dst when the size changed.
func copyBGRX(dst *image.RGBA, img *depth.BGRX) *image.RGBA {
	r := image.Rectangle{Max: img.Bounds().Size()}
	if dst == nil || dst.Bounds() != r {
		dst = image.NewRGBA(r)
	}
	img.CopyToRGBA(dst)

	return dst
}
