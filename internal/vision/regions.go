package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vb/internal/config"
	"github.com/your-org/vb/internal/geom"
)

// RegionSource turns frames into privacy regions. It owns one detector
// per enabled model (faces, license plates) and applies the per-class
// shaping rules before anything reaches the tracker.
type RegionSource struct {
	faces    *Detector
	plates   *Detector
	rotation int // clockwise degrees the source is rotated by: 0, 90, 180, 270
	minSize  float64
}

const (
	// faceModelClasses: 0 = person (full body), 1 = face.
	faceModelClasses  = 2
	plateModelClasses = 1

	classPerson = 0
)

func NewRegionSource(cfg config.DetectConfig) (*RegionSource, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	rs := &RegionSource{
		rotation: ((cfg.Rotation % 360) + 360) % 360,
		minSize:  cfg.MinDetectionSize,
	}
	if rs.rotation%90 != 0 {
		return nil, fmt.Errorf("rotation must be a multiple of 90, got %d", cfg.Rotation)
	}

	if cfg.FacesEnabled() {
		path := filepath.Join(cfg.ModelsDir, "faces.onnx")
		slog.Info("loading face model", "path", path)
		rs.faces, err = NewDetector(path, float32(cfg.Confidence), faceModelClasses, opts)
		if err != nil {
			return nil, fmt.Errorf("load face model: %w", err)
		}
	}
	if cfg.PlatesEnabled() {
		path := filepath.Join(cfg.ModelsDir, "plates.onnx")
		slog.Info("loading plate model", "path", path)
		rs.plates, err = NewDetector(path, float32(cfg.Confidence), plateModelClasses, opts)
		if err != nil {
			if rs.faces != nil {
				rs.faces.Close()
			}
			return nil, fmt.Errorf("load plate model: %w", err)
		}
	}

	return rs, nil
}

// DetectRegions runs all enabled models on the frame and returns raw
// privacy regions in the frame's own coordinates. A person detection is
// reduced to the head area: the top half of the body box, widened by 10%
// of the body width per side. Face and plate detections pass through.
func (rs *RegionSource) DetectRegions(img image.Image) ([]geom.Box, error) {
	work := img
	if rs.rotation != 0 {
		work = rotateImage(img, rs.rotation)
	}

	b := work.Bounds()
	origW, origH := b.Dx(), b.Dy()

	var regions []geom.Box

	if rs.faces != nil {
		input := preprocessFrame(work, rs.faces.inputW, rs.faces.inputH)
		dets, err := rs.faces.Detect(input, origW, origH)
		if err != nil {
			return nil, fmt.Errorf("detect faces: %w", err)
		}
		for _, d := range dets {
			box := d.Box
			if d.Class == classPerson {
				box = headRegion(box)
			}
			regions = append(regions, box)
		}
	}

	if rs.plates != nil {
		input := preprocessFrame(work, rs.plates.inputW, rs.plates.inputH)
		dets, err := rs.plates.Detect(input, origW, origH)
		if err != nil {
			return nil, fmt.Errorf("detect plates: %w", err)
		}
		for _, d := range dets {
			regions = append(regions, d.Box)
		}
	}

	kept := regions[:0]
	for _, r := range regions {
		if r.Width() < rs.minSize && r.Height() < rs.minSize {
			continue
		}
		kept = append(kept, r)
	}

	if rs.rotation != 0 {
		for i := range kept {
			kept[i] = unrotateBox(kept[i], rs.rotation, origW, origH)
		}
	}

	return kept, nil
}

func (rs *RegionSource) Close() {
	if rs.faces != nil {
		rs.faces.Close()
	}
	if rs.plates != nil {
		rs.plates.Close()
	}
}

// headRegion reduces a full-body box to its likely head area: top half,
// widened by 10% of the body width on each side.
func headRegion(body geom.Box) geom.Box {
	margin := body.Width() * 0.1
	return geom.Box{
		X1: body.X1 - margin,
		Y1: body.Y1,
		X2: body.X2 + margin,
		Y2: body.Y1 + body.Height()*0.5,
	}
}

// rotateImage rotates clockwise by a multiple of 90 degrees.
func rotateImage(img image.Image, degrees int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	switch degrees {
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	default:
		return img
	}
	return dst
}

// unrotateBox maps a box from the rotated frame back into the source
// frame's coordinates. rotW/rotH are the rotated frame's dimensions.
func unrotateBox(box geom.Box, degrees, rotW, rotH int) geom.Box {
	switch degrees {
	case 90:
		// (x, y) in rotated came from (y, rotW-1-x) in source
		return geom.Box{
			X1: box.Y1,
			Y1: float64(rotW) - box.X2,
			X2: box.Y2,
			Y2: float64(rotW) - box.X1,
		}
	case 180:
		return geom.Box{
			X1: float64(rotW) - box.X2,
			Y1: float64(rotH) - box.Y2,
			X2: float64(rotW) - box.X1,
			Y2: float64(rotH) - box.Y1,
		}
	case 270:
		return geom.Box{
			X1: float64(rotH) - box.Y2,
			Y1: box.X1,
			X2: float64(rotH) - box.Y1,
			Y2: box.X2,
		}
	default:
		return box
	}
}
