package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/basel-ax/biomio/internal/repository"
	"github.com/basel-ax/biomio/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed static/index.html
var indexHTML []byte

// Title is shown in the page header
const Title = "Bio Mio"

var uploadExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true, ".tiff": true,
}

// Runner runs the orchestration flow for one uploaded image
type Runner interface {
	Run(ctx context.Context, imagePath string, emit func(domain.Update)) error
	Slots() int
}

// SampleSource lists the sample images
type SampleSource interface {
	List() []repository.Sample
	Get(label string) (repository.Sample, bool)
}

// Config configures a Server
type Config struct {
	TempDir     string
	CollagesDir string
}

// Server is the HTTP presentation layer
type Server struct {
	engine   *gin.Engine
	runner   Runner
	samples  SampleSource
	files    *FileRegistry
	sessions *Sessions
	config   Config
	saveFile func(c *gin.Context, file *multipart.FileHeader, dst string) error
}

// NewServer creates a new server and registers its routes
func NewServer(runner Runner, samples SampleSource, cfg Config) *Server {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	s := &Server{
		engine:   gin.New(),
		runner:   runner,
		samples:  samples,
		files:    NewFileRegistry(),
		sessions: NewSessions(),
		config:   cfg,
		saveFile: func(c *gin.Context, file *multipart.FileHeader, dst string) error {
			return c.SaveUploadedFile(file, dst)
		},
	}

	s.engine.Use(requestLogger(), gin.Recovery())
	s.engine.GET("/", s.index)
	api := s.engine.Group("/api")
	api.GET("/samples", s.listSamples)
	api.POST("/samples/select", s.selectSample)
	api.POST("/uploads", s.upload)
	api.GET("/runs/:ref/events", s.streamRun)
	api.GET("/summary/:ref", s.summary)
	api.POST("/collages", s.collage)
	api.GET("/files/:ref", s.file)
	api.GET("/health", s.health)

	return s
}

// SweepFiles drops file refs unused for longer than maxAge
func (s *Server) SweepFiles(maxAge time.Duration) int {
	return s.files.Sweep(maxAge)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

type sampleChoice struct {
	Label string `json:"label"`
}

func (s *Server) listSamples(c *gin.Context) {
	choices := []sampleChoice{{Label: ""}}
	for _, sample := range s.samples.List() {
		choices = append(choices, sampleChoice{Label: sample.Label})
	}
	c.JSON(http.StatusOK, gin.H{"title": Title, "slots": s.runner.Slots(), "samples": choices})
}

func (s *Server) selectSample(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Label == "" {
		c.JSON(http.StatusOK, gin.H{"ref": ""})
		return
	}

	sample, ok := s.samples.Get(req.Label)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sample not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref": s.files.Register(sample.Path)})
}

func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !uploadExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	dst, err := os.CreateTemp(s.config.TempDir, "biomio_upload_*"+ext)
	if err != nil {
		zap.L().Error("create upload file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	dst.Close()

	if err := s.saveFile(c, file, dst.Name()); err != nil {
		_ = os.Remove(dst.Name())
		zap.L().Error("save upload failed", zap.String("file", file.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ref": s.files.Register(dst.Name())})
}

type slotView struct {
	Ref string `json:"ref"`
}

type updateView struct {
	Stage string     `json:"stage"`
	Index int        `json:"index"`
	Slots []slotView `json:"slots"`
}

func (s *Server) streamRun(c *gin.Context) {
	path, ok := s.files.Resolve(c.Param("ref"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	session := c.Query("session")
	if session == "" {
		session = uuid.NewString()
	}
	ctx, release := s.sessions.Begin(c.Request.Context(), session)
	defer release()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	err := s.runner.Run(ctx, path, func(u domain.Update) {
		view := updateView{Stage: u.Stage.String(), Index: u.Index, Slots: make([]slotView, len(u.Slots))}
		for i, slot := range u.Slots {
			view.Slots[i] = slotView{Ref: s.files.Register(slot)}
		}
		c.SSEvent("update", view)
		c.Writer.Flush()
	})

	switch {
	case err == nil:
		c.SSEvent("done", gin.H{"session": session})
	case errors.Is(err, context.Canceled):
		zap.L().Info("run superseded or closed", zap.String("session", session))
		return
	default:
		zap.L().Error("run failed", zap.String("session", session), zap.String("image", path), zap.Error(err))
		c.SSEvent("failed", gin.H{"error": "processing failed"})
	}
	c.Writer.Flush()
}

func (s *Server) summary(c *gin.Context) {
	var imageFile string
	if ref := c.Param("ref"); ref != "-" {
		path, ok := s.files.Resolve(ref)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		imageFile = path
	}

	mute, _ := strconv.ParseBool(c.Query("mute"))
	summary := service.ReadSummary(s.config.TempDir, imageFile)
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"to_read": service.SummaryToRead(mute, summary),
	})
}

func (s *Server) collage(c *gin.Context) {
	var req struct {
		Original  string `json:"original"`
		Generated string `json:"generated"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	paths := make([]string, 2)
	for i, ref := range []string{req.Original, req.Generated} {
		if ref == "" {
			continue
		}
		path, ok := s.files.Resolve(ref)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		paths[i] = path
	}

	collagePath, err := service.MakeCollage(s.config.CollagesDir, paths[0], paths[1])
	if err != nil {
		zap.L().Error("make collage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "collage failed"})
		return
	}
	if collagePath == "" {
		c.JSON(http.StatusOK, gin.H{"visible": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"visible": true,
		"ref":     s.files.Register(collagePath),
		"name":    filepath.Base(collagePath),
	})
}

func (s *Server) file(c *gin.Context) {
	path, ok := s.files.Resolve(c.Param("ref"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if c.Query("download") == "1" {
		c.FileAttachment(path, filepath.Base(path))
		return
	}
	c.File(path)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_runs": s.sessions.Active(), "file_refs": s.files.Len()})
}

// requestLogger logs every request through the global zap logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
		)
	}
}
