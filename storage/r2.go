package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Number of attempts for UploadFile retry loop
const maxUploadAttempts = 3

// R2Config holds configuration for Cloudflare R2 (or any S3-compatible) storage
type R2Config struct {
	AccessKey string
	SecretKey string
	AccountID string
	Bucket    string
	Endpoint  string
	Region    string
	BaseURL   string // Public URL for accessing files, e.g. https://media.example.com
}

// R2Storage uploads finished clips and annotations to R2
type R2Storage struct {
	config   R2Config
	uploader *s3manager.Uploader
}

// NewR2Storage creates a new R2Storage instance
func NewR2Storage(config R2Config) (*R2Storage, error) {
	if config.Region == "" {
		config.Region = "auto"
	}

	// Create endpoint URL if AccountID is provided but full endpoint isn't
	if config.Endpoint == "" && config.AccountID != "" {
		config.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", config.AccountID)
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		Endpoint:    aws.String(config.Endpoint),
		Region:      aws.String(config.Region),
		// Force path style addressing for compatibility with S3 API
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	// Sequential multipart uploads so only one HTTP connection is active
	// at a time on limited uplinks.
	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10 MB
		u.Concurrency = 1
	})

	return &R2Storage{
		config:   config,
		uploader: uploader,
	}, nil
}

// UploadFile uploads a local file to R2 and returns its public URL.
func (r *R2Storage) UploadFile(localPath, remotePath string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		url, err := r.uploadOnce(localPath, remotePath)
		if err == nil {
			return url, nil
		}
		lastErr = err
		log.Printf("R2: upload attempt %d/%d for %s failed: %v", attempt, maxUploadAttempts, localPath, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return "", fmt.Errorf("failed to upload %s after %d attempts: %v", localPath, maxUploadAttempts, lastErr)
}

func (r *R2Storage) uploadOnce(localPath, remotePath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %v", localPath, err)
	}
	defer file.Close()

	_, err = r.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(r.config.Bucket),
		Key:         aws.String(remotePath),
		Body:        file,
		ContentType: aws.String(contentTypeFor(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %v", err)
	}

	return r.PublicURL(remotePath), nil
}

// PublicURL returns the externally reachable URL for a remote path.
func (r *R2Storage) PublicURL(remotePath string) string {
	base := strings.TrimSuffix(r.config.BaseURL, "/")
	return base + "/" + strings.TrimPrefix(remotePath, "/")
}

// contentTypeFor determines content type based on file extension
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
