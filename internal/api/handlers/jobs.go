package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/vb/internal/models"
	"github.com/your-org/vb/internal/queue"
	"github.com/your-org/vb/internal/storage"
	"github.com/your-org/vb/pkg/dto"
)

type JobHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewJobHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *JobHandler {
	return &JobHandler{db: db, minio: minio, producer: producer}
}

// Create registers a URL-sourced job (rtsp, http, youtube).
// File jobs go through Upload instead.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SourceType == string(models.SourceTypeFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file jobs must be created via upload"})
		return
	}
	if req.SourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_url is required"})
		return
	}

	job := &models.Job{
		SourceURL:  req.SourceURL,
		SourceType: models.SourceType(req.SourceType),
		FPS:        req.FPS,
		Params:     req.Params,
	}

	if err := h.db.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(job))
}

// Upload creates a file job from a multipart video upload. The optional
// "params" form field carries blur overrides as JSON.
func (h *JobHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}

	var params json.RawMessage
	if p := c.PostForm("params"); p != "" {
		if !json.Valid([]byte(p)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "params must be valid JSON"})
			return
		}
		params = json.RawMessage(p)
	}

	job := &models.Job{
		SourceType: models.SourceTypeFile,
		Params:     params,
	}
	if err := h.db.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	key := storage.SourceKey(job.ID, "source"+filepath.Ext(file.Filename))
	if err := h.minio.PutStream(c.Request.Context(), key, src, file.Size, "video/mp4"); err != nil {
		_ = h.db.DeleteJob(c.Request.Context(), job.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job.SourceKey = key
	if err := h.db.SetJobSource(c.Request.Context(), job.ID, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(job))
}

func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.db.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, jobToResponse(&j))
	}

	c.JSON(http.StatusOK, dto.JobListResponse{Jobs: resp, Total: len(resp)})
}

func (h *JobHandler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status == models.JobStatusRunning || job.Status == models.JobStatusStarting {
		c.JSON(http.StatusConflict, gin.H{"error": "job already running"})
		return
	}
	if job.Status == models.JobStatusAssembling {
		c.JSON(http.StatusConflict, gin.H{"error": "job is being assembled"})
		return
	}

	if err := h.db.UpdateJobStatus(c.Request.Context(), id, models.JobStatusStarting, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmdData, _ := json.Marshal(map[string]string{
		"action": "start",
		"job_id": id.String(),
	})
	if err := h.producer.PublishControl(cmdData); err != nil {
		_ = h.db.UpdateJobStatus(c.Request.Context(), id, models.JobStatusError, "failed to publish start command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send start command"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "starting", "job_id": id})
}

// Stop cancels ingestion. Frames already queued still get blurred; the
// frame being processed finishes normally.
func (h *JobHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	cmdData, _ := json.Marshal(map[string]string{
		"action": "stop",
		"job_id": id.String(),
	})
	_ = h.producer.PublishControl(cmdData)

	if err := h.db.UpdateJobStatus(c.Request.Context(), id, models.JobStatusStopped, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopped", "job_id": id})
}

func (h *JobHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job != nil && (job.Status == models.JobStatusRunning || job.Status == models.JobStatusStarting) {
		cmdData, _ := json.Marshal(map[string]string{
			"action": "stop",
			"job_id": id.String(),
		})
		_ = h.producer.PublishControl(cmdData)
	}

	if err := h.db.DeleteJob(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// Best effort: drop every object the job produced.
	for _, prefix := range []string{
		"sources/" + id.String() + "/",
		"frames/raw/" + id.String() + "/",
		"frames/out/" + id.String() + "/",
	} {
		_ = h.minio.DeletePrefix(c.Request.Context(), prefix)
	}
	if job != nil && job.OutputKey != "" {
		_ = h.minio.DeleteObject(c.Request.Context(), job.OutputKey)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Download streams the assembled output video.
func (h *JobHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.OutputKey == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "output not ready"})
		return
	}

	size, err := h.minio.StatObject(c.Request.Context(), job.OutputKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "output not found"})
		return
	}

	obj, err := h.minio.GetStream(c.Request.Context(), job.OutputKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Close()

	c.DataFromReader(http.StatusOK, size, "video/mp4", obj, map[string]string{
		"Content-Disposition": `attachment; filename="` + id.String() + `.mp4"`,
	})
}

func jobToResponse(j *models.Job) dto.JobResponse {
	resp := dto.JobResponse{
		ID:           j.ID,
		SourceURL:    j.SourceURL,
		SourceType:   string(j.SourceType),
		Status:       string(j.Status),
		FPS:          j.FPS,
		FramesTotal:  j.FramesTotal,
		FramesDone:   j.FramesDone,
		Params:       j.Params,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
	if j.FramesTotal > 0 {
		resp.Progress = float64(j.FramesDone) / float64(j.FramesTotal)
	}
	if j.OutputKey != "" {
		resp.OutputURL = "/v1/jobs/" + j.ID.String() + "/download"
	}
	return resp
}
