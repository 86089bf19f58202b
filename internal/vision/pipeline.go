package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vb/internal/blur"
	"github.com/your-org/vb/internal/config"
	"github.com/your-org/vb/internal/models"
	"github.com/your-org/vb/internal/observability"
	"github.com/your-org/vb/internal/queue"
	"github.com/your-org/vb/internal/storage"
)

// Pipeline is the worker-side orchestrator: it loads raw frames from
// MinIO, detects privacy regions, runs them through the per-job frame
// pipeline and stores the blurred result.
type Pipeline struct {
	regions  *RegionSource
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	cfg      *config.Config

	mu        sync.Mutex
	pipelines map[uuid.UUID]*FramePipeline
}

// NewPipeline initialises the detection models and returns a ready pipeline.
func NewPipeline(
	cfg *config.Config,
	db *storage.PostgresStore,
	minio *storage.MinIOStore,
	producer *queue.Producer,
) (*Pipeline, error) {
	regions, err := NewRegionSource(cfg.Detect)
	if err != nil {
		return nil, fmt.Errorf("init region source: %w", err)
	}

	slog.Info("blur pipeline ready",
		"faces", cfg.Detect.FacesEnabled(), "plates", cfg.Detect.PlatesEnabled())

	return &Pipeline{
		regions:   regions,
		db:        db,
		minio:     minio,
		producer:  producer,
		cfg:       cfg,
		pipelines: make(map[uuid.UUID]*FramePipeline),
	}, nil
}

// jobParams is the per-job override surface embedded in Job.Params.
type jobParams struct {
	Strength int    `json:"strength,omitempty"`
	Type     string `json:"type,omitempty"`
}

// ProcessFrame handles one frame task: load, detect, track, blur, store.
func (p *Pipeline) ProcessFrame(ctx context.Context, task models.FrameTask) error {
	jobID := task.JobID.String()

	frameData, err := p.minio.GetObject(ctx, task.FrameRef)
	if err != nil {
		return fmt.Errorf("load frame: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", task.Index, err)
	}

	started := time.Now()

	detectStart := time.Now()
	detections, err := p.regions.DetectRegions(img)
	if err != nil {
		return fmt.Errorf("detect regions: %w", err)
	}
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())

	fp := p.pipelineFor(ctx, task.JobID)

	blurStart := time.Now()
	droppedBefore := fp.DroppedDetections()
	frame, blurred := fp.Process(img, detections)
	dropped := fp.DroppedDetections() - droppedBefore
	observability.StageDuration.WithLabelValues("blur").Observe(time.Since(blurStart).Seconds())

	storeStart := time.Now()
	outKey := storage.ProcessedFrameKey(task.JobID, task.Index)
	if err := p.minio.PutObject(ctx, outKey, encodeJPEG(frame, 90), "image/jpeg"); err != nil {
		return fmt.Errorf("store frame: %w", err)
	}
	observability.StageDuration.WithLabelValues("store").Observe(time.Since(storeStart).Seconds())

	observability.FramesProcessed.WithLabelValues(jobID).Inc()
	observability.RegionsBlurred.WithLabelValues(jobID).Add(float64(len(blurred)))
	if dropped > 0 {
		observability.DetectionsDropped.WithLabelValues(jobID).Add(float64(dropped))
	}
	observability.ActiveTracks.WithLabelValues(jobID).Set(float64(fp.ActiveTracks()))

	result := models.BlurResult{
		JobID:      task.JobID,
		FrameID:    task.FrameID,
		Index:      task.Index,
		Timestamp:  task.Timestamp,
		Regions:    len(blurred),
		Tracks:     fp.TrackIDs(),
		FrameKey:   outKey,
		DurationMS: float64(time.Since(started).Microseconds()) / 1000.0,
	}
	if err := p.producer.PublishResult(ctx, jobID, result); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	return nil
}

// pipelineFor returns the job's frame pipeline, creating it on first use
// with the job's blur overrides applied over the configured defaults.
func (p *Pipeline) pipelineFor(ctx context.Context, jobID uuid.UUID) *FramePipeline {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fp, ok := p.pipelines[jobID]; ok {
		return fp
	}

	strength := p.cfg.Blur.Strength
	variant := blur.Variant(p.cfg.Blur.Type)

	if job, err := p.db.GetJob(ctx, jobID); err != nil {
		slog.Warn("load job params", "job", jobID, "error", err)
	} else if job != nil && len(job.Params) > 0 {
		var params jobParams
		if err := json.Unmarshal(job.Params, &params); err != nil {
			slog.Warn("parse job params", "job", jobID, "error", err)
		} else {
			if params.Strength > 0 {
				strength = params.Strength
			}
			if params.Type != "" {
				variant = blur.Variant(params.Type)
			}
		}
	}

	engine := blur.NewEngine(strength, variant).WithPadding(p.cfg.Blur.ROIPadding)
	fp := NewFramePipeline(p.cfg.Tracking, engine, p.cfg.Pipeline.MaxDetectionRatio)
	p.pipelines[jobID] = fp
	return fp
}

// ReleaseJob drops the tracker state for a finished or stopped job.
func (p *Pipeline) ReleaseJob(jobID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pipelines[jobID]; ok {
		delete(p.pipelines, jobID)
		observability.ActiveTracks.DeleteLabelValues(jobID.String())
	}
}

// Close releases the ONNX sessions.
func (p *Pipeline) Close() {
	if p.regions != nil {
		p.regions.Close()
	}
}

// --- Image helpers ---

// preprocessFrame converts an image to CHW float32 scaled to [0,1],
// resized to the model input with nearest-neighbour (fast, good enough
// for detector input).
func preprocessFrame(img image.Image, targetW, targetH int) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			idx := y*w + x
			data[0*h*w+idx] = float32(r>>8) / 255.0
			data[1*h*w+idx] = float32(g>>8) / 255.0
			data[2*h*w+idx] = float32(b>>8) / 255.0
		}
	}

	return data
}

func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

// encodeJPEG encodes an image as JPEG with the given quality.
func encodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}
