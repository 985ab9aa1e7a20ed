package camera

import (
	"image"

	"golang.org/x/image/draw"
)

// PreviewLayer renders the session's live frames into a fixed-size surface,
// scaled to fill it and cropped around the center.
type PreviewLayer struct {
	session *Session
	bounds  image.Rectangle
}

// NewPreviewLayer binds a preview surface of width x height to s.
func NewPreviewLayer(s *Session, width, height int) *PreviewLayer {
	return &PreviewLayer{session: s, bounds: image.Rect(0, 0, width, height)}
}

// Bounds returns the surface size.
func (l *PreviewLayer) Bounds() image.Rectangle { return l.bounds }

// Frame returns the current preview, or nil when the session is not running.
func (l *PreviewLayer) Frame() image.Image {
	if !l.session.Running() {
		return nil
	}
	dev := l.session.Input()
	if dev == nil {
		return nil
	}
	return ScaleToFill(dev.PreviewFrame(), l.bounds.Dx(), l.bounds.Dy())
}

// ScaleToFill scales src to width x height, cropping to keep its aspect ratio.
// It returns nil for a nil src.
func ScaleToFill(src image.Image, width, height int) image.Image {
	if src == nil {
		return nil
	}
	r := image.Rect(0, 0, width, height)
	dst := image.NewRGBA(r)
	draw.ApproxBiLinear.Scale(dst, r, src, aspectFillRect(src.Bounds(), r), draw.Src, nil)
	return dst
}

// aspectFillRect returns the centered part of src with dst's aspect ratio.
func aspectFillRect(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw == 0 || sh == 0 || dw == 0 || dh == 0 {
		return src
	}
	// Compare sw/sh against dw/dh without floats.
	if sw*dh > dw*sh {
		w := sh * dw / dh
		x0 := src.Min.X + (sw-w)/2
		return image.Rect(x0, src.Min.Y, x0+w, src.Max.Y)
	}
	h := sw * dh / dw
	y0 := src.Min.Y + (sh-h)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+h)
}
