// Package api exposes the gateway over HTTP and WebSocket
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/command"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

// Options wires a Server
type Options struct {
	Gateway *gateway.Gateway
	Queue   *printer.PrintQueue
	// Battery is broadcast to WebSocket clients; may be nil
	Battery battery.Source
	// Push accepts events posted to /battery; nil disables the route
	Push *battery.Broadcaster
	// ResponseTimeout bounds the wait for the first reply of a call
	ResponseTimeout time.Duration
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	http     *http.Server
	gateway  *gateway.Gateway
	queue    *printer.PrintQueue
	push     *battery.Broadcaster
	executor *command.Executor
	timeout  time.Duration
	detect   func() ([]sdk.Device, error)
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*WSClient]bool

	unsubscribe func()
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 30 * time.Second
	}

	s := &Server{
		router:   router,
		gateway:  opts.Gateway,
		queue:    opts.Queue,
		push:     opts.Push,
		executor: command.NewExecutor(opts.Gateway, opts.Queue, opts.ResponseTimeout),
		timeout:  opts.ResponseTimeout,
		detect:   sdk.DetectDevices,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		clients: make(map[*WSClient]bool),
	}

	if opts.Battery != nil {
		s.unsubscribe = opts.Battery.Subscribe(s.BroadcastBattery)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.POST("/command", s.handleCommand)
	s.router.GET("/ws", s.handleWebSocket)

	if s.push != nil {
		s.router.POST("/battery", s.handleBattery)
	}

	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)
	s.router.POST("/jobs/clear", s.handleClearJobs)
	s.router.GET("/devices", s.handleGetDevices)

	s.router.GET("/health", s.handleHealth)
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":      "ok",
		"connected":   s.gateway.Connected(),
		"low_battery": s.gateway.LowBattery(),
		"no_paper":    s.gateway.NoPaper(),
		"clients":     s.Clients(),
	}
	if s.push != nil {
		health["battery_subscribers"] = s.push.Subscribers()
	}
	c.JSON(200, health)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until Shutdown is called
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes WebSocket clients and waits for
// running requests to finish
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	s.clientsMu.RLock()
	for client := range s.clients {
		client.cancel()
	}
	s.clientsMu.RUnlock()

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleCommand runs a call and answers with its first reply. A body with
// a "command" string runs a typed command instead.
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Method  string         `json:"method"`
		Args    map[string]any `json:"args"`
		Command string         `json:"command"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if req.Command != "" {
		s.handleTypedCommand(c, req.Command)
		return
	}
	if req.Method == "" {
		c.JSON(400, gin.H{"error": "method is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	reply, err := s.gateway.Do(ctx, gateway.Call{Method: req.Method, Args: req.Args})
	if err != nil {
		c.JSON(504, gin.H{"error": err.Error()})
		return
	}

	status := 200
	if reply.Event == gateway.EventNotImplemented {
		status = 501
	}
	c.JSON(status, reply)
}

func (s *Server) handleTypedCommand(c *gin.Context, cmd string) {
	result := s.executor.Execute(cmd)

	if result.Success {
		response := gin.H{
			"success": true,
		}
		if result.Message != "" {
			response["message"] = result.Message
		}
		for k, v := range result.Data {
			response[k] = v
		}
		c.JSON(200, response)
	} else {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
	}
}

// handleBattery publishes a pushed battery event
func (s *Server) handleBattery(c *gin.Context) {
	var req struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
		Level  *int   `json:"level" binding:"required"`
		Scale  int    `json:"scale"`
		Action int    `json:"action"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "level is required"})
		return
	}

	ev := battery.Event{
		Level:  *req.Level,
		Scale:  req.Scale,
		Action: req.Action,
	}
	switch req.Kind {
	case "capacity":
		ev.Kind = battery.KindCapacity
	case "", "changed":
		ev.Kind = battery.KindChanged
		ev.Status = battery.ParseStatus(req.Status)
		if ev.Scale == 0 {
			ev.Scale = 100
		}
	default:
		c.JSON(400, gin.H{"error": "kind must be changed or capacity"})
		return
	}

	s.push.Publish(ev)

	low, ok := ev.Low()
	c.JSON(200, gin.H{"success": true, "low": low, "verdict": ok})
}

// handleGetJobs returns all print jobs
func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.queue.GetAllJobs()

	jobsData := make([]gin.H, len(jobs))
	for i, job := range jobs {
		jobsData[i] = jobData(job)
	}

	c.JSON(200, gin.H{"jobs": jobsData})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	jobID := c.Param("id")

	job := s.queue.GetJob(jobID)
	if job == nil {
		c.JSON(404, gin.H{"error": "job not found"})
		return
	}

	c.JSON(200, jobData(job))
}

func (s *Server) handleClearJobs(c *gin.Context) {
	removed := s.queue.ClearCompleted()
	c.JSON(200, gin.H{"success": true, "removed": removed})
}

func jobData(job *printer.PrintJob) gin.H {
	data := gin.H{
		"id":         job.ID,
		"status":     job.Status,
		"items":      len(job.Items),
		"reports":    job.Reports,
		"created_at": job.CreatedAt,
	}
	if !job.FinishedAt.IsZero() {
		data["finished_at"] = job.FinishedAt
	}
	if job.Error != nil {
		data["error"] = job.Error.Error()
	}
	return data
}

// handleGetDevices scans for attached printers
func (s *Server) handleGetDevices(c *gin.Context) {
	devices, err := s.detect()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	list := make([]gin.H, len(devices))
	for i, d := range devices {
		list[i] = gin.H{
			"description": d.Description,
			"transport":   d.Transport.String(),
			"type":        d.Transport.Type,
		}
	}
	c.JSON(200, gin.H{"devices": list})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
