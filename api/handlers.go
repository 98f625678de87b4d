package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"camclip/database"
	"camclip/resolver"
	"camclip/service"
)

const version = "1.0.0"

// CreateClipRequest is the intake payload for POST /clips. Lead and trail
// are pointers so a client can explicitly request zero seconds; omitting a
// field selects the configured default.
type CreateClipRequest struct {
	CameraID     string    `json:"camera_id" binding:"required"`
	Timestamp    time.Time `json:"timestamp" binding:"required"`
	LeadSeconds  *int      `json:"lead_seconds" binding:"omitempty,min=0"`
	TrailSeconds *int      `json:"trail_seconds" binding:"omitempty,min=0"`
}

// ClipStatusResponse is the job projection returned by GET /clips/:id.
type ClipStatusResponse struct {
	ClipID         string     `json:"clip_id"`
	Status         string     `json:"status"`
	CameraID       string     `json:"camera_id"`
	RequestedStart time.Time  `json:"requested_start"`
	RequestedEnd   time.Time  `json:"requested_end"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	DownloadURL    string     `json:"download_url,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toClipStatusResponse(job *database.ClipJob) ClipStatusResponse {
	return ClipStatusResponse{
		ClipID:         job.ID,
		Status:         string(job.Status),
		CameraID:       job.CameraID,
		RequestedStart: job.RequestedStart,
		RequestedEnd:   job.RequestedEnd,
		ActualStart:    job.ActualStart,
		ActualEnd:      job.ActualEnd,
		DownloadURL:    job.DownloadURL,
		ErrorKind:      job.ErrorKind,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// createClip handles POST /clips
func (s *Server) createClip(c *gin.Context) {
	var req CreateClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	log.Printf("Received clip request for camera %s at %s", req.CameraID, req.Timestamp.Format(time.RFC3339))

	clipID, err := s.scheduler.Submit(service.ClipRequest{
		CameraID:      req.CameraID,
		ReferenceTime: req.Timestamp,
		LeadSeconds:   req.LeadSeconds,
		TrailSeconds:  req.TrailSeconds,
	})
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrUnknownCamera), errors.Is(err, resolver.ErrNoOverlap):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, resolver.ErrDiscontinuous):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			log.Printf("Error creating clip request: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"clip_id": clipID,
		"status":  string(database.StatusPending),
		"message": "Clip request submitted successfully",
	})
}

// getClipStatus handles GET /clips/:id
func (s *Server) getClipStatus(c *gin.Context) {
	job, err := s.db.GetJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
			return
		}
		log.Printf("Error getting clip status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, toClipStatusResponse(job))
}

// listCameras handles GET /cameras
func (s *Server) listCameras(c *gin.Context) {
	cameras, err := s.catalog.ListCameras()
	if err != nil {
		log.Printf("Error listing cameras: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if cameras == nil {
		cameras = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

// listJobs handles GET /api/jobs
func (s *Server) listJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := s.db.ListJobs(limit, offset)
	if err != nil {
		log.Printf("Error listing jobs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	responses := make([]ClipStatusResponse, len(jobs))
	for i := range jobs {
		responses[i] = toClipStatusResponse(&jobs[i])
	}
	c.JSON(http.StatusOK, gin.H{"jobs": responses})
}

// health handles GET /health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   version,
	})
}

// getSystemHealth handles GET /api/system_health
func (s *Server) getSystemHealth(c *gin.Context) {
	usage, err := s.monitor.Usage()
	if err != nil {
		log.Printf("Error getting system health: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	counts, err := s.db.CountJobsByStatus()
	if err != nil {
		log.Printf("Error counting jobs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resources": usage,
		"jobs":      counts,
	})
}

// root handles GET /
func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Clipping API Service",
		"version": version,
		"status":  "running",
		"endpoints": gin.H{
			"create_clip":     "POST /clips",
			"get_clip_status": "GET /clips/:id",
			"cameras":         "GET /cameras",
			"health":          "GET /health",
			"metrics":         "GET /metrics",
			"jobs":            "GET /api/jobs",
			"system_health":   "GET /api/system_health",
		},
	})
}
