package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camclip/catalog"
	"camclip/config"
	"camclip/database"
	"camclip/monitoring"
	"camclip/service"
)

type Server struct {
	config    config.Config
	db        database.Database
	catalog   catalog.Catalog
	scheduler *service.Scheduler
	monitor   *monitoring.Monitor
	registry  *prometheus.Registry

	httpServer *http.Server
}

func NewServer(
	cfg config.Config,
	db database.Database,
	cat catalog.Catalog,
	scheduler *service.Scheduler,
	monitor *monitoring.Monitor,
	registry *prometheus.Registry,
) *Server {
	return &Server{
		config:    cfg,
		db:        db,
		catalog:   cat,
		scheduler: scheduler,
		monitor:   monitor,
		registry:  registry,
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	r := gin.Default()
	s.setupCORS(r)
	s.setupRoutes(r)

	portAddr := ":" + s.config.ServerPort
	log.Printf("Starting API server on %s", portAddr)
	s.httpServer = &http.Server{
		Addr:    portAddr,
		Handler: r,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupCORS(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
}

func (s *Server) setupRoutes(r *gin.Engine) {
	// Completed clips are served directly from the output directory
	r.Static("/videos", s.config.VideosPath)

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	r.POST("/clips", s.createClip)
	r.GET("/clips/:id", s.getClipStatus)
	r.GET("/cameras", s.listCameras)

	api := r.Group("/api")
	{
		api.GET("/jobs", s.listJobs)
		api.GET("/system_health", s.getSystemHealth)
	}
}

// ShutdownTimeout bounds how long Shutdown waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second
