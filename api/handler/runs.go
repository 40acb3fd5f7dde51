package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/report"
)

// Runner executes a set of configurations.
type Runner interface {
	Run(ctx context.Context, configs []models.ConfigurationDescriptor) *models.RunReport
	ActiveTasks() int
	Workers() int
}

// runEntry guards one job; the background run writes while handlers read.
type runEntry struct {
	mu  sync.RWMutex
	job models.RunJob
}

// Runs serves the run endpoints and owns the in-memory job store.
type Runs struct {
	runner  Runner
	targets []models.ConfigurationDescriptor
	sinks   []report.Sink

	store  sync.Map // run ID -> *runEntry
	active atomic.Int32
	wg     sync.WaitGroup
}

// NewRuns creates the run handlers. Jobs older than ttl are evicted by a
// background goroutine that stops when ctx is done.
func NewRuns(ctx context.Context, runner Runner, targets []models.ConfigurationDescriptor, sinks []report.Sink, ttl time.Duration) *Runs {
	h := &Runs{runner: runner, targets: targets, sinks: sinks}
	go h.expireLoop(ctx, ttl)
	return h
}

func (h *Runs) expireLoop(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.expire(time.Now().Add(-ttl))
		}
	}
}

// expire drops finished jobs created before cutoff.
func (h *Runs) expire(cutoff time.Time) {
	h.store.Range(func(key, value any) bool {
		e := value.(*runEntry)
		e.mu.RLock()
		old := e.job.Status == models.RunCompleted && e.job.CreatedAt < cutoff.Unix()
		e.mu.RUnlock()
		if old {
			h.store.Delete(key)
		}
		return true
	})
}

// ActiveRuns returns the number of runs still executing.
func (h *Runs) ActiveRuns() int {
	return int(h.active.Load())
}

// Wait blocks until every background run has finished.
func (h *Runs) Wait() {
	h.wg.Wait()
}

// Post returns a handler for POST /api/v1/runs.
// It validates the label subset, stores a job and starts the run in the background.
func (h *Runs) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		// An empty body runs every target.
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid request body: " + err.Error(),
				},
			})
			return
		}

		configs, err := config.SelectTargets(h.targets, req.Labels)
		if err != nil {
			detail := models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}
			var se *models.ScrapeError
			if errors.As(err, &se) {
				detail = *se.ToDetail()
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": detail})
			return
		}

		id := uuid.NewString()
		entry := &runEntry{job: models.RunJob{
			ID:        id,
			Status:    models.RunProcessing,
			Total:     len(configs),
			CreatedAt: time.Now().Unix(),
		}}
		h.store.Store(id, entry)

		h.active.Add(1)
		h.wg.Add(1)
		go h.execute(entry, configs)

		c.JSON(http.StatusAccepted, models.RunResponse{
			ID:     id,
			Status: models.RunProcessing,
			Total:  len(configs),
		})
	}
}

func (h *Runs) execute(entry *runEntry, configs []models.ConfigurationDescriptor) {
	defer h.wg.Done()
	defer h.active.Add(-1)

	rep := h.runner.Run(context.Background(), configs)

	entry.mu.Lock()
	rep.ID = entry.job.ID
	entry.job.Report = rep
	entry.job.Status = models.RunCompleted
	entry.mu.Unlock()

	slog.Info("api run finished",
		"id", rep.ID,
		"passed", rep.Summary.Passed,
		"partial", rep.Summary.Partial,
		"failed", rep.Summary.Failed,
	)

	if len(h.sinks) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		_ = report.Publish(ctx, h.sinks, rep)
		cancel()
	}
}

// Get returns a handler for GET /api/v1/runs/:id.
func (h *Runs) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := h.store.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "run not found",
				},
			})
			return
		}

		e := val.(*runEntry)
		e.mu.RLock()
		resp := models.RunStatusResponse{
			ID:     e.job.ID,
			Status: e.job.Status,
			Total:  e.job.Total,
			Report: e.job.Report,
		}
		e.mu.RUnlock()

		c.JSON(http.StatusOK, resp)
	}
}
