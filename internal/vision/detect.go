package vision

import (
	"fmt"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vb/internal/geom"
)

// Detection is one region proposed by a model, in source pixel coordinates.
type Detection struct {
	Box        geom.Box
	Class      int
	Confidence float32
}

// Detector runs a YOLO-family ONNX model (v8/v11 export layout) with
// ONNX Runtime. Input and output tensors are allocated once and reused
// across frames.
type Detector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
	numClasses   int
	inputW       int
	inputH       int
}

// yolo v8/v11 exports at 640x640 predict over strides 8, 16, 32:
// 80*80 + 40*40 + 20*20 = 8400 candidate boxes.
const yoloCandidates = 8400

// NewDetector loads a YOLO ONNX model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewDetector(modelPath string, threshold float32, numClasses int, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// output0 layout: [1, 4+numClasses, 8400] — rows are cx, cy, w, h
	// followed by one score row per class.
	outputShape := ort.NewShape(1, int64(4+numClasses), yoloCandidates)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
		numClasses:   numClasses,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Detect runs the model on a preprocessed image.
// imgData must be CHW [3, inputH, inputW], pixel values scaled to [0,1].
// origW/origH are the original image dimensions for coordinate scaling.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	detections := d.parseDetections(origW, origH)
	detections = nms(detections, 0.5)

	return detections, nil
}

// parseDetections decodes the [4+nc, 8400] output into pixel boxes.
func (d *Detector) parseDetections(origW, origH int) []Detection {
	out := d.outputTensor.GetData()

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	var detections []Detection
	for i := 0; i < yoloCandidates; i++ {
		best := -1
		var score float32
		for c := 0; c < d.numClasses; c++ {
			s := out[(4+c)*yoloCandidates+i]
			if s > score {
				score = s
				best = c
			}
		}
		if best < 0 || score < d.threshold {
			continue
		}

		cx := out[0*yoloCandidates+i]
		cy := out[1*yoloCandidates+i]
		w := out[2*yoloCandidates+i]
		h := out[3*yoloCandidates+i]

		box := geom.Box{
			X1: float64((cx - w/2) * scaleW),
			Y1: float64((cy - h/2) * scaleH),
			X2: float64((cx + w/2) * scaleW),
			Y2: float64((cy + h/2) * scaleH),
		}.Clamp(float64(origW), float64(origH))
		if !box.Valid() {
			continue
		}

		detections = append(detections, Detection{
			Box:        box,
			Class:      best,
			Confidence: score,
		})
	}

	return detections
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float64) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if geom.IoU(detections[i].Box, detections[j].Box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, det := range detections {
		if keep[i] {
			result = append(result, det)
		}
	}
	return result
}
