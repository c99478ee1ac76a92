package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"yashubustudio/logcompliance/compliance"
)

//go:embed all:web
var webFS embed.FS

const requestIDHeader = "X-Request-ID"

// Server serves the upload form and turns three uploaded files into a PDF report.
type Server struct {
	engine  *gin.Engine
	monitor *compliance.Monitor
	logger  *log.Logger
	addr    string
	maxBody int64
	now     func() time.Time
}

// New creates the web shell around an initialised monitor.
func New(monitor *compliance.Monitor, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	cfg := monitor.Config()
	s := &Server{
		engine:  engine,
		monitor: monitor,
		logger:  logger,
		addr:    cfg.Server.Addr,
		maxBody: cfg.Server.MaxUploadSize,
		now:     time.Now,
	}
	engine.MaxMultipartMemory = s.maxBody
	engine.Use(s.requestID())
	s.setupRoutes()
	return s
}

// Handler exposes the engine for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// serveEmbedded reads a file from the embedded FS and writes it with the given content type.
func serveEmbedded(webContent fs.FS, name string, contentType string) gin.HandlerFunc {
	data, err := fs.ReadFile(webContent, name)
	return func(c *gin.Context) {
		if err != nil {
			c.String(http.StatusNotFound, "file not found: %s", name)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func (s *Server) setupRoutes() {
	webContent, _ := fs.Sub(webFS, "web")

	s.engine.GET("/", serveEmbedded(webContent, "index.html", "text/html; charset=utf-8"))
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"backend": s.monitor.Config().Extractor.Backend,
		})
	})
	s.engine.POST("/analyze", s.handleAnalyze)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		start := time.Now()
		c.Next()
		s.logf("[%s] %s %s -> %d (%s)", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	}
	var in compliance.Inputs
	for _, field := range []struct {
		name string
		dst  *compliance.Upload
	}{
		{"rules", &in.Rules},
		{"standards", &in.Standards},
		{"logs", &in.Log},
	} {
		fh, err := c.FormFile(field.name)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "upload exceeds %d bytes", s.maxBody)
				return
			}
			c.String(http.StatusBadRequest, "missing upload %q", field.name)
			return
		}
		*field.dst = formUpload(fh)
	}
	in.LogOpts.MessageColumn = c.PostForm("messageColumn")

	id := c.GetString(requestIDHeader)
	out, err := s.monitor.Process(c.Request.Context(), in, s.now(), nil)
	if err != nil {
		s.logf("[%s] analyze failed: %v", id, err)
		c.String(statusFor(err), "%v", err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, out.Result)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", compliance.ReportFileName))
	c.Data(http.StatusOK, "application/pdf", out.PDF)
}

func formUpload(fh *multipart.FileHeader) compliance.Upload {
	return compliance.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func wantsJSON(c *gin.Context) bool {
	return c.Query("format") == "json" || c.GetHeader("Accept") == gin.MIMEJSON
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, compliance.ErrMissingUpload):
		return http.StatusBadRequest
	case errors.Is(err, compliance.ErrMalformedInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Serve runs the server until ctx is cancelled, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logf("Listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
