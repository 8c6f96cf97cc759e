// Package server exposes the pipeline over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/pipeline"
	"github.com/taxatlas/taxatlas/internal/render"
)

// Server holds the HTTP surface over one orchestrator.
type Server struct {
	cfg    common.ServerConfig
	orch   *pipeline.Orchestrator
	logger *slog.Logger
}

func New(cfg common.ServerConfig, orch *pipeline.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, orch: orch, logger: logger}
}

// Router builds the gin engine with CORS and upload limits applied.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = int64(s.cfg.MaxUploadMB) << 20

	corsCfg := cors.DefaultConfig()
	if s.cfg.AllowedOrigin == "" || s.cfg.AllowedOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(s.cfg.AllowedOrigin, ",")
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.handleHealth)
	api := r.Group("/api")
	{
		api.POST("/process", s.handleProcess)
		api.POST("/process-text", s.handleProcessText)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleProcess accepts a multipart upload: "file" plus form fields
// "country", "context" and an optional comma-separated "artifacts" filter.
func (s *Server) handleProcess(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput, "missing file upload", err))
		return
	}
	if fileHeader.Size > int64(s.cfg.MaxUploadMB)<<20 {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("file exceeds %d MB limit", s.cfg.MaxUploadMB), errors.New("file too large")))
		return
	}

	country := c.PostForm("country")
	if len(strings.TrimSpace(country)) != 2 {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput,
			"country must be a 2-letter ISO 3166-1 code", errors.New("invalid country")))
		return
	}

	kinds, err := parseArtifactsParam(c.PostForm("artifacts"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput, "unreadable file upload", err))
		return
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput, "unreadable file upload", err))
		return
	}

	res, err := s.orch.Process(c.Request.Context(), pipeline.Request{
		Content:   content,
		Filename:  fileHeader.Filename,
		Country:   country,
		Context:   c.PostForm("context"),
		Artifacts: kinds,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type processTextRequest struct {
	Text      string   `json:"text"`
	Country   string   `json:"country"`
	Context   string   `json:"context"`
	Artifacts []string `json:"artifacts"`
}

// handleProcessText accepts raw text directly, skipping document intake.
func (s *Server) handleProcessText(c *gin.Context) {
	var req processTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput, "invalid JSON body", err))
		return
	}
	if len(strings.TrimSpace(req.Country)) != 2 {
		s.writeError(c, common.NewAppError(common.CodeInvalidInput,
			"country must be a 2-letter ISO 3166-1 code", errors.New("invalid country")))
		return
	}
	kinds, err := pipeline.ParseArtifactKinds(req.Artifacts)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.orch.Process(c.Request.Context(), pipeline.Request{
		Text:      req.Text,
		Country:   req.Country,
		Context:   req.Context,
		Artifacts: kinds,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// parseArtifactsParam splits a comma-separated artifacts filter. An empty
// parameter selects every renderer.
func parseArtifactsParam(raw string) ([]render.Kind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	return pipeline.ParseArtifactKinds(strings.Split(raw, ","))
}

// writeError maps pipeline error codes onto HTTP statuses with a stable
// error envelope.
func (s *Server) writeError(c *gin.Context, err error) {
	code := common.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case common.CodeInvalidInput:
		status = http.StatusBadRequest
	case common.CodeUnsupportedFormat:
		status = http.StatusUnsupportedMediaType
	case common.CodeExtractionTimeout:
		status = http.StatusGatewayTimeout
	case common.CodeExtractionFailed, common.CodeExtractionError:
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	s.logger.Warn("http.error", "status", status, "code", code, "err", err)
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"error_code": code,
	})
}
