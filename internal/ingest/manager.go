package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vb/internal/config"
	"github.com/your-org/vb/internal/models"
	"github.com/your-org/vb/internal/observability"
	"github.com/your-org/vb/internal/queue"
	"github.com/your-org/vb/internal/storage"
)

// JobCommand represents a start/stop command from the API.
type JobCommand struct {
	Action string `json:"action"` // start, stop
	JobID  string `json:"job_id"`
}

type activeJob struct {
	cancel    context.CancelFunc
	extractor *FFmpegExtractor
}

// Manager owns the ingestion side of the job lifecycle: it pulls frames
// out of the source with ffmpeg, stores them raw and publishes one frame
// task per frame. File jobs also get their frame count recorded so the
// assembler knows when every frame came back blurred.
type Manager struct {
	producer *queue.Producer
	minio    *storage.MinIOStore
	db       *storage.PostgresStore
	cfg      *config.Config

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

func NewManager(producer *queue.Producer, minio *storage.MinIOStore, db *storage.PostgresStore, cfg *config.Config) *Manager {
	return &Manager{
		producer: producer,
		minio:    minio,
		db:       db,
		cfg:      cfg,
		jobs:     make(map[string]*activeJob),
	}
}

// HandleCommand processes a job control command.
func (m *Manager) HandleCommand(ctx context.Context, cmd JobCommand) error {
	switch cmd.Action {
	case "start":
		return m.startJob(ctx, cmd.JobID)
	case "stop":
		return m.stopJob(cmd.JobID)
	default:
		return fmt.Errorf("unknown action: %s", cmd.Action)
	}
}

// claimJob reserves the job slot. Check and insert happen under one
// lock hold so concurrent starts for the same job cannot both win.
func (m *Manager) claimJob(jobID string, aj *activeJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[jobID]; exists {
		return false
	}
	m.jobs[jobID] = aj
	return true
}

func (m *Manager) releaseJob(jobID string) {
	m.mu.Lock()
	delete(m.jobs, jobID)
	m.mu.Unlock()
}

func (m *Manager) startJob(ctx context.Context, jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	extractor := &FFmpegExtractor{FFmpegPath: m.cfg.Encode.FFmpegPath}

	if !m.claimJob(jobID, &activeJob{cancel: cancel, extractor: extractor}) {
		cancel()
		return fmt.Errorf("job %s already running", jobID)
	}

	job, err := m.db.GetJob(ctx, id)
	if err != nil {
		m.releaseJob(jobID)
		cancel()
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		m.releaseJob(jobID)
		cancel()
		return fmt.Errorf("job %s not found", jobID)
	}

	observability.ActiveSources.Inc()
	m.updateStatus(id, models.JobStatusStarting, "")

	slog.Info("starting job ingestion", "job_id", jobID, "type", job.SourceType)

	go func() {
		defer func() {
			m.releaseJob(jobID)
			observability.ActiveSources.Dec()
			slog.Info("job ingestion stopped", "job_id", jobID)
		}()

		if job.SourceType.Live() {
			m.runLive(jobCtx, job, extractor)
		} else {
			m.runFile(jobCtx, job, extractor)
		}
	}()

	return nil
}

// runFile extracts every frame of an uploaded file at native fps and
// dimensions, then records the frame count for the assembler.
func (m *Manager) runFile(ctx context.Context, job *models.Job, extractor *FFmpegExtractor) {
	local, err := m.fetchSource(ctx, job)
	if err != nil {
		m.updateStatus(job.ID, models.JobStatusError, err.Error())
		return
	}
	defer os.Remove(local)

	info, err := Probe(ctx, "", local)
	if err != nil {
		m.updateStatus(job.ID, models.JobStatusError, err.Error())
		return
	}

	fps := info.FPS
	if fps <= 0 {
		fps = m.cfg.Pipeline.DefaultFPS
	}
	if err := m.setFPS(ctx, job, fps); err != nil {
		m.updateStatus(job.ID, models.JobStatusError, err.Error())
		return
	}

	m.updateStatus(job.ID, models.JobStatusRunning, "")

	total := 0
	err = extractor.StartExtraction(ctx, local, ExtractOptions{}, func(index int, frameData []byte) error {
		if err := m.publishFrame(ctx, job, index, frameData, info); err != nil {
			return err
		}
		total = index + 1
		return nil
	})

	if ctx.Err() != nil {
		m.updateStatus(job.ID, models.JobStatusStopped, "")
		return
	}
	if err != nil {
		m.updateStatus(job.ID, models.JobStatusError, err.Error())
		return
	}

	// Workers and the assembler take it from here.
	if err := m.db.SetJobFramesTotal(ctx, job.ID, total); err != nil {
		slog.Error("record frame count", "job_id", job.ID, "error", err)
	}
	slog.Info("extraction complete", "job_id", job.ID, "frames", total)
}

// runLive ingests an open-ended stream at the configured preview rate,
// with exponential-backoff retries. YouTube URLs are re-resolved on
// retry because they expire.
func (m *Manager) runLive(ctx context.Context, job *models.Job, extractor *FFmpegExtractor) {
	sourceURL := job.SourceURL
	if job.SourceType == models.SourceTypeYouTube {
		resolved, err := ResolveYouTubeURL(ctx, job.SourceURL, m.cfg.Pipeline.FrameWidth)
		if err != nil {
			m.updateStatus(job.ID, models.JobStatusError, fmt.Sprintf("resolve youtube url: %v", err))
			return
		}
		sourceURL = resolved
		slog.Info("resolved youtube url", "job_id", job.ID)
	}

	fps := job.FPS
	if fps <= 0 {
		fps = m.cfg.Pipeline.DefaultFPS
	}
	if fps > m.cfg.Pipeline.MaxFPS {
		fps = m.cfg.Pipeline.MaxFPS
	}

	m.updateStatus(job.ID, models.JobStatusRunning, "")

	opts := ExtractOptions{FPS: fps, Width: m.cfg.Pipeline.FrameWidth}

	const maxRetries = 3
	index := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)) * time.Second // 2s, 4s, 8s
			slog.Warn("retrying stream extraction", "job_id", job.ID, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				m.updateStatus(job.ID, models.JobStatusStopped, "")
				return
			case <-time.After(delay):
			}

			if job.SourceType == models.SourceTypeYouTube {
				resolved, err := ResolveYouTubeURL(ctx, job.SourceURL, m.cfg.Pipeline.FrameWidth)
				if err != nil {
					slog.Warn("youtube re-resolve failed", "job_id", job.ID, "error", err)
					continue
				}
				sourceURL = resolved
			}

			// Need a fresh extractor for retry
			extractor = &FFmpegExtractor{FFmpegPath: m.cfg.Encode.FFmpegPath}
		}

		err := extractor.StartExtraction(ctx, sourceURL, opts, func(_ int, frameData []byte) error {
			if err := m.publishFrame(ctx, job, index, frameData, VideoInfo{Width: opts.Width}); err != nil {
				return err
			}
			index++

			// Rolling retention for previews; raw frames are transient.
			if m.cfg.Storage.FrameRetention > 0 && index%m.cfg.Storage.FrameRetention == 0 {
				rawPrefix := fmt.Sprintf("frames/raw/%s/", job.ID)
				if err := m.minio.PruneFrames(ctx, rawPrefix, m.cfg.Storage.FrameRetention); err != nil {
					slog.Warn("prune raw frames", "job_id", job.ID, "error", err)
				}
				outPrefix := fmt.Sprintf("frames/out/%s/", job.ID)
				if err := m.minio.PruneFrames(ctx, outPrefix, m.cfg.Storage.FrameRetention); err != nil {
					slog.Warn("prune preview frames", "job_id", job.ID, "error", err)
				}
			}
			return nil
		})

		if err == nil || ctx.Err() != nil {
			// Clean exit or user stop
			m.updateStatus(job.ID, models.JobStatusStopped, "")
			return
		}

		slog.Error("stream extraction failed", "job_id", job.ID, "attempt", attempt, "error", err)
	}

	m.updateStatus(job.ID, models.JobStatusError, "stream failed after retries")
}

func (m *Manager) publishFrame(ctx context.Context, job *models.Job, index int, frameData []byte, info VideoInfo) error {
	key := storage.RawFrameKey(job.ID, index)
	if err := m.minio.PutObject(ctx, key, frameData, "image/jpeg"); err != nil {
		return fmt.Errorf("upload frame: %w", err)
	}

	task := models.FrameTask{
		JobID:     job.ID,
		FrameID:   uuid.New(),
		Index:     index,
		Timestamp: time.Now(),
		FrameRef:  key,
		Width:     info.Width,
		Height:    info.Height,
	}
	if err := m.producer.PublishFrame(ctx, job.ID.String(), task); err != nil {
		return fmt.Errorf("publish frame task: %w", err)
	}
	return nil
}

// fetchSource downloads the uploaded source object to a temp file.
func (m *Manager) fetchSource(ctx context.Context, job *models.Job) (string, error) {
	if job.SourceKey == "" {
		return "", fmt.Errorf("file job %s has no source object", job.ID)
	}
	local := filepath.Join(os.TempDir(), fmt.Sprintf("vb-src-%s%s", job.ID, filepath.Ext(job.SourceKey)))
	if err := m.minio.FGetObject(ctx, job.SourceKey, local); err != nil {
		return "", err
	}
	return local, nil
}

func (m *Manager) setFPS(ctx context.Context, job *models.Job, fps int) error {
	if job.FPS == fps {
		return nil
	}
	job.FPS = fps
	return m.db.SetJobFPS(ctx, job.ID, fps)
}

func (m *Manager) stopJob(jobID string) error {
	m.mu.RLock()
	aj, exists := m.jobs[jobID]
	m.mu.RUnlock()

	if !exists {
		return nil // Already stopped
	}

	aj.extractor.Stop()
	aj.cancel()

	slog.Info("stop command sent", "job_id", jobID)
	return nil
}

func (m *Manager) updateStatus(jobID uuid.UUID, status models.JobStatus, errMsg string) {
	if err := m.db.UpdateJobStatus(context.Background(), jobID, status, errMsg); err != nil {
		slog.Error("update job status", "job_id", jobID, "error", err)
	}
}

// ActiveCount returns the number of currently running ingestions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// StopAll stops all running ingestions.
func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.stopJob(id)
	}
}

// ParseCommand parses a NATS message into a JobCommand.
func ParseCommand(data []byte) (JobCommand, error) {
	var cmd JobCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}
