// Package api exposes ingestion, status and topology endpoints over HTTP and
// pushes live updates to dashboards over websockets.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/detection"
	"github.com/nshruti113/adaptive-ddos-defense/internal/metrics"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/topology"
)

const (
	defaultPacketLimit = 100
	maxPacketLimit     = 1000
	defaultEventLimit  = 50
	defaultStatsLimit  = 60
)

// Deps are the collaborators served by the API. Gatherer and Metrics may be nil.
type Deps struct {
	Packets  models.PacketStore
	Stats    models.StatsStore
	Events   models.EventStore
	Loop     *detection.Loop
	Topology *topology.Service
	Hub      *Hub
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

type Server struct {
	deps       Deps
	logger     *zap.Logger
	router     *gin.Engine
	corsOrigin string
}

func NewServer(deps Deps, corsOrigin string, logger *zap.Logger) *Server {
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	s := &Server{
		deps:       deps,
		logger:     logger.Named("api"),
		router:     gin.New(),
		corsOrigin: corsOrigin,
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), s.corsMiddleware())
	s.setupRoutes()
	return s
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// Collaborator ingestion
		api.POST("/traffic/ingest", s.ingestTraffic)
		api.POST("/stats", s.ingestStats)
		api.POST("/topology/nodes", s.upsertTopologyNode)

		api.GET("/status", s.getStatus)
		api.GET("/metrics/current", s.getCurrentMetrics)
		api.GET("/metrics/history", s.getMetricsHistory)
		api.GET("/packets", s.getPackets)

		api.GET("/attacks/active", s.getActiveAttacks)
		api.GET("/attacks/history", s.getAttackHistory)

		api.GET("/topology", s.getTopology)
		api.GET("/topology/paths", s.getAttackPaths)

		api.GET("/stats/summary", s.getSummaryStats)
		api.GET("/stats/history", s.getStatsHistory)
	}

	if s.deps.Hub != nil {
		s.router.GET("/ws", s.deps.Hub.ServeWS)
	}
	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// ingestTraffic accepts one packet or an array of packets.
func (s *Server) ingestTraffic(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var packets []models.PacketRecord
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &packets)
	} else {
		var p models.PacketRecord
		err = json.Unmarshal(trimmed, &p)
		packets = []models.PacketRecord{p}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	attacks := 0
	for i := range packets {
		p := &packets[i]
		if p.SourceIP == "" || p.DestIP == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("packet %d: source_ip and destination_ip are required", i)})
			return
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		if p.IsAttack {
			attacks++
		}
	}

	if err := s.deps.Packets.StorePackets(c.Request.Context(), packets); err != nil {
		s.logger.Error("failed to store packets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store traffic"})
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.PacketsIngested.WithLabelValues("true").Add(float64(attacks))
		s.deps.Metrics.PacketsIngested.WithLabelValues("false").Add(float64(len(packets) - attacks))
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "stored": len(packets)})
}

func (s *Server) ingestStats(c *gin.Context) {
	var snap models.TrafficSnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	if err := s.deps.Stats.StoreStats(c.Request.Context(), snap); err != nil {
		s.logger.Error("failed to store stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type topologyNodeRequest struct {
	models.TopologyNode
	Connections []string `json:"connections"`
}

func (s *Server) upsertTopologyNode(c *gin.Context) {
	var req topologyNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	switch req.Type {
	case models.NodeHost, models.NodeRouter, models.NodeServer:
	case "":
		req.Type = models.NodeHost
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown node type %q", req.Type)})
		return
	}

	if err := s.deps.Topology.Upsert(c.Request.Context(), req.TopologyNode, req.Connections); err != nil {
		s.logger.Error("failed to upsert topology node", zap.String("node_id", req.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update topology"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Loop.Status())
}

// getCurrentMetrics returns the metrics of the latest cycle
func (s *Server) getCurrentMetrics(c *gin.Context) {
	status := s.deps.Loop.Status()
	if status.LastMetrics == nil {
		c.JSON(http.StatusOK, models.Metrics{Timestamp: time.Now()})
		return
	}
	c.JSON(http.StatusOK, status.LastMetrics)
}

func (s *Server) getMetricsHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metrics": s.deps.Loop.History()})
}

func (s *Server) getPackets(c *gin.Context) {
	limit := min(queryInt(c, "limit", defaultPacketLimit), maxPacketLimit)
	attackOnly, _ := strconv.ParseBool(c.Query("attack_only"))

	packets, err := s.deps.Packets.GetRecentPackets(c.Request.Context(), limit, attackOnly)
	if err != nil {
		s.logger.Error("failed to read packets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read packets"})
		return
	}
	if packets == nil {
		packets = []models.PacketRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"packets": packets})
}

func (s *Server) getActiveAttacks(c *gin.Context) {
	attacks, err := s.deps.Events.ListActiveAttackEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attacks": attacks})
}

func (s *Server) getAttackHistory(c *gin.Context) {
	attacks, err := s.deps.Events.ListRecentAttackEvents(c.Request.Context(), queryInt(c, "limit", defaultEventLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attacks": attacks})
}

func (s *Server) getTopology(c *gin.Context) {
	graph, _, err := s.deps.Topology.Annotated(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to build topology", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build topology"})
		return
	}
	c.JSON(http.StatusOK, graph)
}

func (s *Server) getAttackPaths(c *gin.Context) {
	_, paths, err := s.deps.Topology.Annotated(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to build topology", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build topology"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths})
}

// getSummaryStats returns dashboard summary statistics
func (s *Server) getSummaryStats(c *gin.Context) {
	ctx := c.Request.Context()
	status := s.deps.Loop.Status()

	active, err := s.deps.Events.ListActiveAttackEvents(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	packets, err := s.deps.Packets.GetRecentPackets(ctx, maxPacketLimit, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	state := "NORMAL"
	if len(active) > 0 {
		state = "UNDER_ATTACK"
	}

	summary := gin.H{
		"status":         state,
		"active_attacks": len(active),
		"traffic":        Summarize(packets),
		"epsilon":        status.Epsilon,
		"current_action": status.ActionName,
		"cycle":          status.Cycle,
	}
	if snap, ok, err := s.deps.Stats.GetLatestStats(ctx); err == nil && ok {
		summary["latest_stats"] = snap
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getStatsHistory(c *gin.Context) {
	hist, err := s.deps.Stats.GetStatsHistory(c.Request.Context(), queryInt(c, "limit", defaultStatsLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if hist == nil {
		hist = []models.TrafficSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"stats": hist})
}

// BroadcastCycle pushes a cycle's outcome to dashboards.
func (s *Server) BroadcastCycle(res detection.CycleResult) {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.Broadcast("metrics", gin.H{
		"cycle":       res.Cycle,
		"metrics":     res.Metrics,
		"action":      res.Action,
		"action_name": res.Action.String(),
		"status":      s.deps.Loop.Status(),
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// corsMiddleware handles CORS
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
