package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"brainport/backend/internal/importer"
	apperrors "brainport/backend/pkg/errors"
)

// ImportFunc runs one import of the export in dir
type ImportFunc func(ctx context.Context, runID, dir string) (*importer.Report, error)

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the state of one import as served by the API
type Run struct {
	ID         string           `json:"id"`
	Dir        string           `json:"dir"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Report     *importer.Report `json:"report,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Handler serves import runs. At most one import runs at a time.
type Handler struct {
	run    ImportFunc
	base   context.Context
	root   string
	logger *zap.Logger

	mu     sync.Mutex
	runs   map[string]*Run
	active string
	wg     sync.WaitGroup
}

// NewHandler creates a handler. Imports run under base, not the request
// context, so they outlive the POST that started them. Requested
// directories must resolve inside root.
func NewHandler(base context.Context, run ImportFunc, root string, logger *zap.Logger) *Handler {
	return &Handler{
		run:    run,
		base:   base,
		root:   root,
		logger: logger,
		runs:   map[string]*Run{},
	}
}

// Register mounts the routes on router
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.POST("/imports", h.startImport)
		api.GET("/imports/:id", h.getImport)
	}
}

// Wait blocks until no import is running
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startImportRequest struct {
	Dir string `json:"dir" binding:"required"`
}

func (h *Handler) startImport(c *gin.Context) {
	var req startImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dir, err := h.resolveDir(req.Dir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.begin(dir)
	if err != nil {
		if errors.Is(err, apperrors.ErrImportInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "active": h.activeID()})
			return
		}
		h.logger.Error("Failed to start import", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start import"})
		return
	}

	c.JSON(http.StatusAccepted, run)
}

func (h *Handler) getImport(c *gin.Context) {
	h.mu.Lock()
	run, ok := h.runs[c.Param("id")]
	var snapshot Run
	if ok {
		snapshot = *run
	}
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// resolveDir maps a requested directory onto the export root. Relative
// paths are taken from the root; nothing may resolve above it.
func (h *Handler) resolveDir(dir string) (string, error) {
	root, err := filepath.Abs(h.root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.ErrOutsideExportDir
	}
	return dir, nil
}

func (h *Handler) begin(dir string) (Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != "" {
		return Run{}, apperrors.ErrImportInProgress
	}

	run := &Run{
		ID:        uuid.New().String(),
		Dir:       dir,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	h.runs[run.ID] = run
	h.active = run.ID

	h.wg.Add(1)
	go h.execute(run.ID, dir)
	return *run, nil
}

func (h *Handler) execute(runID, dir string) {
	defer h.wg.Done()

	log := h.logger.With(zap.String("run_id", runID), zap.String("dir", dir))
	report, err := h.run(h.base, runID, dir)
	finished := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	run := h.runs[runID]
	run.Report = report
	run.FinishedAt = &finished
	h.active = ""

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		log.Error("Import failed", zap.Error(err))
		return
	}
	run.Status = StatusSucceeded
	log.Info("Import finished", zap.Duration("duration", finished.Sub(run.StartedAt)))
}

func (h *Handler) activeID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}
