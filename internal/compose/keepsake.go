// Package compose builds shareable keepsake images from the rendered frame.
//
// The simulation and the frame buffer live in camera coordinates. The live
// preview is mirrored by the host for a selfie view, so a keepsake is mirrored
// exactly once here to match what the user saw. Decorations are drawn after
// mirroring so text reads correctly.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/garden"
)

// ErrEmptyFrame is returned when there is nothing to compose.
var ErrEmptyFrame = errors.New("empty frame")

// Options controls the keepsake decoration.
type Options struct {
	Title       string
	FlowerCount int
	Theme       garden.Theme
	TakenAt     time.Time

	// Border is the frame width in pixels; zero uses a size-relative default.
	Border int
}

// Keepsake returns a mirrored, decorated copy of frame. The input is not
// modified. The caller owns the returned Mat.
func Keepsake(frame *gocv.Mat, opts Options) (gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	out := gocv.NewMat()
	if err := gocv.Flip(*frame, &out, 1); err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("mirror frame: %w", err)
	}

	decorate(&out, opts)
	return out, nil
}

func decorate(m *gocv.Mat, opts Options) {
	w, h := m.Cols(), m.Rows()
	accent := opts.Theme.Palette().Accent

	border := opts.Border
	if border <= 0 {
		border = max(4, min(w, h)/60)
	}
	gocv.Rectangle(m, image.Rect(border/2, border/2, w-border/2, h-border/2), accent, border)

	bannerH := max(28, h/12)
	banner := image.Rect(border, h-border-bannerH, w-border, h-border)
	if banner.Dy() <= 0 || banner.Dx() <= 0 {
		return
	}
	shadeRegion(m, banner, 0.55)

	scale := float64(bannerH) / 48
	baseline := banner.Max.Y - bannerH/3

	title := opts.Title
	if title == "" {
		title = "My Bloom Garden"
	}
	gocv.PutText(m, title, image.Pt(banner.Min.X+12, baseline), gocv.FontHersheySimplex, scale, accent, 2)

	info := flowerLabel(opts.FlowerCount)
	if !opts.TakenAt.IsZero() {
		info += "  " + opts.TakenAt.Format("2006-01-02 15:04")
	}
	size := gocv.GetTextSize(info, gocv.FontHersheySimplex, scale*0.7, 1)
	gocv.PutText(m, info, image.Pt(banner.Max.X-12-size.X, baseline), gocv.FontHersheySimplex, scale*0.7, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)
}

func flowerLabel(n int) string {
	if n == 1 {
		return "1 flower"
	}
	return fmt.Sprintf("%d flowers", n)
}

// shadeRegion darkens rect by mixing it toward black.
func shadeRegion(m *gocv.Mat, rect image.Rectangle, alpha float64) {
	roi := m.Region(rect)
	defer roi.Close()
	dark := gocv.NewMatWithSize(roi.Rows(), roi.Cols(), roi.Type())
	defer dark.Close()
	dark.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.AddWeighted(dark, alpha, roi, 1-alpha, 0, &roi)
}

// EncodePNG encodes m as PNG.
func EncodePNG(m gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, m)
}

// EncodeJPEG encodes m as JPEG.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	return encode(gocv.JPEGFileExt, m)
}

func encode(ext gocv.FileExt, m gocv.Mat) ([]byte, error) {
	if m.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(ext, m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Save writes m to path, choosing the format from the extension (.png, .jpg).
func Save(path string, m gocv.Mat) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		data, err = EncodeJPEG(m)
	case ".png", "":
		data, err = EncodePNG(m)
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create keepsake directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write keepsake: %w", err)
	}
	return nil
}
