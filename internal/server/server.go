package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/core"
	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/logger"
)

type Server struct {
	Session      *core.Ontosense
	AllowOrigins []string

	log *zap.Logger
}

func NewServer(session *core.Ontosense, allowOrigins []string, log *zap.Logger) *Server {
	return &Server{
		Session:      session,
		AllowOrigins: allowOrigins,
		log:          logger.OrNop(log),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.log))
	if len(s.AllowOrigins) > 0 {
		r.Use(CORS(s.AllowOrigins))
	}

	r.GET("/heartbeat", s.Heartbeat)
	r.PUT("/input", s.UpdateInput)
	r.GET("/meanings", s.Meanings)
	r.GET("/suggestions", s.Suggestions)

	pills := r.Group("/pills/:word")
	pills.GET("/attributes", s.AttributeOptions)
	pills.POST("/attributes", s.SetAttribute)
	pills.POST("/sense", s.SelectSense)

	r.GET("/graph", s.Graph)
	r.DELETE("/graph", s.ClearGraph)
	r.POST("/sync", s.Synchronize)
	r.POST("/load", s.Load)

	return r
}

func (s *Server) Heartbeat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	storeStatus := "ok"
	if err := s.Session.Ping(ctx); err != nil {
		s.log.Warn("record store unreachable", zap.Error(err))
		storeStatus = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": storeStatus, "timestamp": time.Now().UTC()})
}

type InputRequest struct {
	Text string `json:"text" binding:"max=4096"`
}

func (s *Server) UpdateInput(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tokens, err := s.Session.UpdateInput(c.Request.Context(), req.Text)
	s.respondMutation(c, gin.H{"tokens": tokens, "graph": s.Session.Graph()}, err)
}

type WordQuery struct {
	Word string `form:"word" binding:"required"`
}

func (s *Server) Meanings(c *gin.Context) {
	var q WordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "word is required"})
		return
	}

	candidates, err := s.Session.RequestMeanings(c.Request.Context(), q.Word)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

func (s *Server) Suggestions(c *gin.Context) {
	var q WordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "word is required"})
		return
	}

	hits, err := s.Session.Suggestions(c.Request.Context(), q.Word)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

func (s *Server) AttributeOptions(c *gin.Context) {
	word := c.Param("word")
	current := map[string]string{}
	if pill, ok := s.Session.Builder.Pill(word); ok {
		current = pill.Attributes
	}
	c.JSON(http.StatusOK, gin.H{
		"word":    word,
		"options": s.Session.AttributeOptions(word),
		"current": current,
	})
}

type AttributeRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value" binding:"required"`
}

func (s *Server) SetAttribute(c *gin.Context) {
	var req AttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	val, err := s.Session.SetAttribute(c.Request.Context(), c.Param("word"), req.Name, req.Value)
	s.respondMutation(c, gin.H{"value": val, "graph": s.Session.Graph()}, err)
}

type SenseRequest struct {
	Meaning   string          `json:"meaning" binding:"required"`
	Reference model.Reference `json:"wikipedia"`
}

func (s *Server) SelectSense(c *gin.Context) {
	var req SenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	candidate := model.MeaningCandidate{Meaning: req.Meaning, Reference: req.Reference}
	node, err := s.Session.SelectSense(c.Request.Context(), c.Param("word"), candidate)
	s.respondMutation(c, gin.H{"sense": node, "graph": s.Session.Graph()}, err)
}

func (s *Server) Graph(c *gin.Context) {
	c.JSON(http.StatusOK, s.Session.Graph())
}

func (s *Server) Synchronize(c *gin.Context) {
	report := s.Session.Synchronize(c.Request.Context())
	failures := make([]gin.H, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, gin.H{"id": f.ID, "kind": f.Kind, "error": f.Err.Error()})
	}
	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"created":  report.Created,
		"updated":  report.Updated,
		"deleted":  report.Deleted,
		"failures": failures,
	})
}

func (s *Server) Load(c *gin.Context) {
	if err := s.Session.Load(c.Request.Context()); err != nil {
		s.log.Error("load failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load graph"})
		return
	}
	c.JSON(http.StatusOK, s.Session.Graph())
}

func (s *Server) ClearGraph(c *gin.Context) {
	n, err := s.Session.Clear(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"deleted": n, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// respondMutation answers a local edit. A failed synchronization does not undo
// the edit, so it is reported as 202 with a warning.
func (s *Server) respondMutation(c *gin.Context, body gin.H, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, model.ErrPersistenceFailure):
		s.log.Warn("edit kept locally, synchronization failed", zap.Error(err))
		body["warning"] = err.Error()
		c.JSON(http.StatusAccepted, body)
	default:
		s.respondError(c, err)
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrGenerationUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cannot fetch meanings right now"})
	case errors.Is(err, model.ErrStaleResponse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUnknownPill):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidAttribute):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrLookupFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
