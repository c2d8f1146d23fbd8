package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"repricer/internal"
	"repricer/internal/catalog"
	"repricer/internal/config"
	"repricer/internal/pipeline"
	"repricer/internal/storage"
)

const sessionCookie = "repricer_session"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server exposes one-shot reconciliation over HTTP: upload a price
// list and a catalog, get back the three workbooks.
type Server struct {
	cfg      config.Config
	db       *storage.DB
	log      *slog.Logger
	sessions *SessionStore
	engine   *gin.Engine
}

func New(cfg config.Config, db *storage.DB, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		db:       db,
		log:      log,
		sessions: NewSessionStore(time.Duration(cfg.SessionTTLMin) * time.Minute),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog(), s.limitBody())
	engine.MaxMultipartMemory = int64(cfg.ServerMaxUploadMB) << 20

	engine.GET("/healthz", s.health)
	api := engine.Group("/api/v1")
	api.POST("/reconcile", s.reconcile)
	api.GET("/downloads/:name", s.download)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"durMs", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	limit := int64(s.cfg.ServerMaxUploadMB) << 20
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) reconcile(c *gin.Context) {
	start := time.Now()

	priceFile, err := c.FormFile("pricelist")
	if err != nil {
		s.uploadError(c, err, "missing pricelist file")
		return
	}
	catalogFile, err := c.FormFile("catalog")
	if err != nil {
		s.uploadError(c, err, "missing catalog file")
		return
	}

	margins, err := s.marginsFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, ok := internal.KindForFilename(priceFile.Filename)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported price list file: %s", priceFile.Filename)})
		return
	}

	rawList, err := readUpload(priceFile)
	if err != nil {
		s.uploadError(c, err, "read pricelist upload")
		return
	}
	rawCatalog, err := readUpload(catalogFile)
	if err != nil {
		s.uploadError(c, err, "read catalog upload")
		return
	}

	var lines []string
	if kind == internal.KindEmail {
		content, err := pipeline.LinesFromEmailRaw(rawList)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		lines = content.Lines
	} else {
		lines, err = pipeline.LinesFromDocument(kind, rawList)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	table, err := catalog.ParseWorkbook(rawCatalog, catalogFile.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	report, err := pipeline.Reconcile(table, lines, margins)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	artifacts, err := pipeline.BuildArtifacts(report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := c.Cookie(sessionCookie)
	if err != nil || sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.SetCookie(sessionCookie, sessionID, s.cfg.SessionTTLMin*60, "/", "", false, true)
	s.sessions.Put(sessionID, artifacts)

	runID := uuid.NewString()
	if err := s.db.ReplaceArtifacts(runID, artifacts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_ = s.db.InsertRun(runID, 0,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		report.Counts.Map())

	names := make([]string, 0, len(artifacts))
	downloads := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		names = append(names, artifact.Name)
		downloads = append(downloads, "/api/v1/downloads/"+artifact.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":       runID,
		"generatedAt": report.GeneratedAt.Format(time.RFC3339),
		"counts":      report.Counts.Map(),
		"artifacts":   names,
		"downloads":   downloads,
	})
}

func (s *Server) download(c *gin.Context) {
	name := c.Param("name")
	sessionID, err := c.Cookie(sessionCookie)
	if err != nil || sessionID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	artifact, ok := s.sessions.Get(sessionID, name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such artifact for this session"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	c.Data(http.StatusOK, xlsxContentType, artifact.Content)
}

func (s *Server) marginsFromForm(c *gin.Context) (pipeline.Margins, error) {
	retail := s.cfg.RetailMarginPct
	wholesale := s.cfg.WholesaleMarginPct

	if v := c.PostForm("retail_margin"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pipeline.Margins{}, fmt.Errorf("invalid retail_margin: %q", v)
		}
		retail = parsed
	}
	if v := c.PostForm("wholesale_margin"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pipeline.Margins{}, fmt.Errorf("invalid wholesale_margin: %q", v)
		}
		wholesale = parsed
	}
	if retail > 100 || wholesale > 100 {
		return pipeline.Margins{}, errors.New("margins must be between 0 and 100")
	}
	return pipeline.NewMargins(retail, wholesale)
}

func (s *Server) uploadError(c *gin.Context, err error, msg string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
