package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vb/internal/config"
	"github.com/your-org/vb/internal/models"
	"github.com/your-org/vb/internal/observability"
	"github.com/your-org/vb/internal/storage"
)

// Assembler turns a fully blurred file job back into a video: the
// processed frames are piped into ffmpeg for encoding, then the source
// audio is extracted, optionally pitch-shifted, and merged back in.
type Assembler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	cfg   *config.Config
}

func NewAssembler(db *storage.PostgresStore, minio *storage.MinIOStore, cfg *config.Config) *Assembler {
	return &Assembler{db: db, minio: minio, cfg: cfg}
}

// Run polls for jobs whose every frame has been blurred and assembles
// them one at a time. Blocks until the context is cancelled.
func (a *Assembler) Run(ctx context.Context) {
	poll := a.cfg.Storage.AssemblePoll
	if poll <= 0 {
		poll = 5 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jobs, err := a.db.AssemblableJobs(ctx)
		if err != nil {
			slog.Error("list assemblable jobs", "error", err)
			continue
		}

		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			slog.Info("assembling job", "job_id", job.ID, "frames", job.FramesTotal)
			if err := a.assemble(ctx, &job); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("assemble job", "job_id", job.ID, "error", err)
				a.updateStatus(job.ID, models.JobStatusError, err.Error())
				observability.JobsAssembled.WithLabelValues("error").Inc()
				continue
			}
			observability.JobsAssembled.WithLabelValues("ok").Inc()
			slog.Info("job assembled", "job_id", job.ID)
		}
	}
}

func (a *Assembler) assemble(ctx context.Context, job *models.Job) error {
	if err := a.db.UpdateJobStatus(ctx, job.ID, models.JobStatusAssembling, ""); err != nil {
		return fmt.Errorf("mark assembling: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "vb-assemble-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	silent := filepath.Join(tmpDir, "silent.mp4")
	if err := a.encodeVideo(ctx, job, silent); err != nil {
		return fmt.Errorf("encode video: %w", err)
	}

	final, err := a.mergeAudio(ctx, job, tmpDir, silent)
	if err != nil {
		return fmt.Errorf("merge audio: %w", err)
	}

	outKey := storage.OutputKey(job.ID)
	if err := a.minio.FPutObject(ctx, outKey, final, "video/mp4"); err != nil {
		return fmt.Errorf("upload output: %w", err)
	}

	if err := a.db.SetJobOutput(ctx, job.ID, outKey); err != nil {
		return fmt.Errorf("record output: %w", err)
	}

	// Intermediate frames are no longer needed.
	for _, prefix := range []string{
		fmt.Sprintf("frames/raw/%s/", job.ID),
		fmt.Sprintf("frames/out/%s/", job.ID),
	} {
		if err := a.minio.DeletePrefix(ctx, prefix); err != nil {
			slog.Warn("cleanup frames", "job_id", job.ID, "prefix", prefix, "error", err)
		}
	}

	return nil
}

// encodeVideo pipes the blurred JPEG frames, in index order, into a
// single libx264 encode. CRF and pixel format follow the original
// "web-safe mp4" recipe: yuv420p with the moov atom up front.
func (a *Assembler) encodeVideo(ctx context.Context, job *models.Job, outPath string) error {
	keys, err := a.minio.ListObjects(ctx, fmt.Sprintf("frames/out/%s/", job.ID))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no processed frames for job %s", job.ID)
	}

	fps := job.FPS
	if fps <= 0 {
		fps = a.cfg.Pipeline.DefaultFPS
	}
	crf := a.cfg.Encode.CRF
	if crf <= 0 {
		crf = 16
	}

	cmd := exec.CommandContext(ctx, a.ffmpeg(),
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(crf),
		"-threads", "0",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	// Keys are zero-padded by index, so listing order is frame order.
	for _, key := range keys {
		obj, err := a.minio.GetStream(ctx, key)
		if err != nil {
			stdin.Close()
			_ = cmd.Wait()
			return err
		}
		_, err = io.Copy(stdin, obj)
		obj.Close()
		if err != nil {
			stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("pipe frame %s: %w", key, err)
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	return nil
}

// mergeAudio extracts the source audio track, optionally pitch-shifts
// it, and muxes it onto the encoded video. A source without audio
// returns the silent video as-is.
func (a *Assembler) mergeAudio(ctx context.Context, job *models.Job, tmpDir, silent string) (string, error) {
	if job.SourceKey == "" {
		return silent, nil
	}

	source := filepath.Join(tmpDir, "source"+filepath.Ext(job.SourceKey))
	if err := a.minio.FGetObject(ctx, job.SourceKey, source); err != nil {
		return "", err
	}

	info, err := Probe(ctx, "", source)
	if err != nil {
		return "", err
	}
	if !info.HasAudio {
		return silent, nil
	}

	final := filepath.Join(tmpDir, "final.mp4")

	// No pitch shift and no forced re-encode: mux the original audio
	// track untouched.
	if math.Abs(a.cfg.Encode.PitchShift) < 0.1 && !a.cfg.Encode.Reencode {
		if err := a.runFFmpeg(ctx,
			"-i", silent,
			"-i", source,
			"-c:v", "copy",
			"-c:a", "copy",
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-shortest",
			"-y", final,
		); err != nil {
			return "", fmt.Errorf("mux audio: %w", err)
		}
		return final, nil
	}

	wav := filepath.Join(tmpDir, "audio.wav")
	if err := a.runFFmpeg(ctx,
		"-i", source,
		"-vn", "-acodec", "pcm_s16le",
		"-y", wav,
	); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}

	audio := wav
	if math.Abs(a.cfg.Encode.PitchShift) >= 0.1 {
		shifted := filepath.Join(tmpDir, "audio.shifted.wav")
		if err := a.pitchShift(ctx, wav, shifted); err != nil {
			return "", err
		}
		audio = shifted
	}

	if err := a.runFFmpeg(ctx,
		"-i", silent,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-y", final,
	); err != nil {
		return "", fmt.Errorf("mux audio: %w", err)
	}
	return final, nil
}

// pitchShift applies the configured semitone shift with rubberband,
// falling back to asetrate resampling when the filter is unavailable.
func (a *Assembler) pitchShift(ctx context.Context, in, out string) error {
	ratio := math.Pow(2, a.cfg.Encode.PitchShift/12.0)

	err := a.runFFmpeg(ctx,
		"-i", in,
		"-af", fmt.Sprintf("rubberband=pitch=%.6f", ratio),
		"-y", out,
	)
	if err == nil {
		return nil
	}
	slog.Warn("rubberband pitch shift failed, falling back to asetrate", "error", err)

	// Resample trick: raise the rate by the pitch ratio, resample back,
	// and stretch tempo to restore the duration.
	filter := fmt.Sprintf("asetrate=44100*%.6f,aresample=44100,atempo=%.6f", ratio, 1/ratio)
	if err := a.runFFmpeg(ctx, "-i", in, "-af", filter, "-y", out); err != nil {
		return fmt.Errorf("pitch shift fallback: %w", err)
	}
	return nil
}

func (a *Assembler) runFFmpeg(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "warning"}, args...)
	out, err := exec.CommandContext(ctx, a.ffmpeg(), full...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %v: %w (%s)", args[:2], err, string(out))
	}
	return nil
}

func (a *Assembler) ffmpeg() string {
	if a.cfg.Encode.FFmpegPath != "" {
		return a.cfg.Encode.FFmpegPath
	}
	return "ffmpeg"
}

func (a *Assembler) updateStatus(jobID uuid.UUID, status models.JobStatus, errMsg string) {
	if err := a.db.UpdateJobStatus(context.Background(), jobID, status, errMsg); err != nil {
		slog.Error("update job status", "job_id", jobID, "error", err)
	}
}
