package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tpris/backend/internal/ai"
	"tpris/backend/internal/pipeline"
	"tpris/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	CSVPath        string
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	Generator      ai.Generator
	Salvage        bool
}

// Server wires HTTP handlers with the analysis pipeline and persistence.
type Server struct {
	pipeline       *pipeline.Pipeline
	csvLog         *store.CSVLog
	db             *store.Database
	allowedOrigins []string
}

var errEmptyReview = errors.New("review text cannot be empty")

// NewServer constructs the API server. The SQLite store is optional and only
// opened when DBPath is set.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.CSVPath) == "" {
		return nil, errors.New("csv path required")
	}
	csvLog, err := store.OpenCSVLog(cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("submission log: %w", err)
	}

	var db *store.Database
	if strings.TrimSpace(cfg.DBPath) != "" {
		db, err = store.Open(cfg.DBPath, cfg.SilentDB)
		if err != nil {
			return nil, err
		}
	} else {
		logrus.Info("SQLite store disabled - submissions go to CSV only")
	}

	if cfg.Generator == nil || !cfg.Generator.Enabled() {
		logrus.Warn("no inference runtime configured - every analysis will fall back")
	} else {
		logrus.WithFields(logrus.Fields{
			"runtime": cfg.Generator.Name(),
			"salvage": cfg.Salvage,
		}).Info("inference runtime configured")
	}

	return &Server{
		pipeline:       pipeline.New(cfg.Generator, pipeline.Options{Salvage: cfg.Salvage}),
		csvLog:         csvLog,
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowCredentials = true
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.ExposeHeaders = []string{"X-Request-ID"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.handleHealth)
	r.POST("/analyze-feedback", s.handleAnalyze)
	r.GET("/analyze-feedback/stream", s.handleAnalyzeStream)
	r.POST("/submit-feedback", s.handleSubmit)
	r.GET("/submissions", s.handleListSubmissions)
	r.GET("/analyses/stats", s.handleAnalysisStats)

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "system": "TP-RIS-Offline"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req pipeline.FeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}
	if strings.TrimSpace(req.ReviewText) == "" {
		s.renderError(c, http.StatusBadRequest, errEmptyReview)
		return
	}

	requestID := uuid.NewString()
	c.Header("X-Request-ID", requestID)

	report := s.pipeline.Analyze(c.Request.Context(), requestID, req)
	s.recordAnalysis(report)
	c.JSON(http.StatusOK, report.Outcome.Result)
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}
	if strings.TrimSpace(req.FeedbackText) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("feedback_text is required"))
		return
	}

	submission := store.Submission{
		ID:           uuid.NewString(),
		FeedbackText: req.FeedbackText,
		Observation:  req.Observation,
		Feeling:      req.Feeling,
		Need:         req.Need,
		Request:      req.Request,
		TrustScore:   req.TrustScore,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.csvLog.Append(submission); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if s.db != nil {
		if err := s.db.SaveSubmission(&submission); err != nil {
			logrus.WithError(err).WithField("submission_id", submission.ID).Warn("mirror submission to sqlite")
		}
	}

	logrus.WithFields(logrus.Fields{
		"submission_id": submission.ID,
		"csv":           s.csvLog.Path(),
	}).Info("feedback submitted")
	c.JSON(http.StatusOK, SubmitResponse{Status: "saved", ID: submission.ID})
}

const (
	maxPageSize = 100
	maxPage     = 1 << 20
)

func (s *Server) handleListSubmissions(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("submission history requires DB_PATH"))
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}

	rows, total, err := s.db.ListSubmissions(page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]SubmissionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, SubmissionFromModel(row))
	}
	c.JSON(http.StatusOK, SubmissionsResponse{Items: items, Total: total})
}

func (s *Server) handleAnalysisStats(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("analysis history requires DB_PATH"))
		return
	}
	counts, err := s.db.CountAnalysesByFlag()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	resp := AnalysisStatsResponse{Fallbacks: map[string]int64{}}
	for flag, total := range counts {
		if flag == "" {
			resp.Succeeded = total
			continue
		}
		resp.Fallbacks[flag] = total
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) recordAnalysis(report pipeline.Report) {
	if s.db == nil {
		return
	}
	outcome := report.Outcome
	record := &store.AnalysisRecord{
		RequestID:  report.RequestID,
		Runtime:    report.Runtime,
		Action:     string(outcome.Result.Decision.Action),
		TrustScore: outcome.Result.TrustAssessment.TrustScore,
		Score:      outcome.Score,
		RawLength:  report.RawLength,
		DurationMs: report.Duration.Milliseconds(),
	}
	if outcome.Failure != nil {
		record.FailureFlag = outcome.Failure.Kind.Code()
	}
	record.SetRepairs(outcome.Repairs)
	if err := s.db.SaveAnalysis(record); err != nil {
		logrus.WithError(err).WithField("request_id", report.RequestID).Warn("record analysis")
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
