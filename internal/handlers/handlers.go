package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/passport-photo/internal/imageprocessor"
	"github.com/example/passport-photo/internal/usecase"
)

// MaxUploadSize is the default upload limit in bytes.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// Pipeline is the use case surface the handlers depend on.
type Pipeline interface {
	Upload(ctx context.Context, req imageprocessor.UploadRequest) (*imageprocessor.UploadResult, error)
	Process(ctx context.Context, objectID string) (string, error)
	Await(ctx context.Context, processedURL string) (*usecase.AwaitResult, error)
}

// Options tune the routes. Zero values fall back to defaults.
type Options struct {
	MaxUploadBytes int64
	UploadLimiter  gin.HandlerFunc
}

type processRequest struct {
	PublicID string `json:"publicId"`
}

type awaitRequest struct {
	ProcessedURL string `json:"processedUrl"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc Pipeline, opts Options) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = MaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	uploadChain := []gin.HandlerFunc{}
	if opts.UploadLimiter != nil {
		uploadChain = append(uploadChain, opts.UploadLimiter)
	}
	uploadChain = append(uploadChain, uploadHandler(uc, opts.MaxUploadBytes))
	api.POST("/upload", uploadChain...)

	api.POST("/process", func(c *gin.Context) {
		var req processRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.PublicID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No public ID provided"})
			return
		}

		processedURL, err := uc.Process(c.Request.Context(), req.PublicID)
		if err != nil {
			_ = c.Error(err)
			if errors.Is(err, imageprocessor.ErrInvalidRequest) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No public ID provided"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"processedUrl": processedURL})
	})

	api.POST("/await", func(c *gin.Context) {
		var req awaitRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ProcessedURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No processed URL provided"})
			return
		}

		res, err := uc.Await(c.Request.Context(), req.ProcessedURL)
		if err != nil {
			_ = c.Error(err)
			switch {
			case errors.Is(err, imageprocessor.ErrInvalidRequest):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown processed URL"})
			case errors.Is(err, imageprocessor.ErrTimeout):
				c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Image not ready"})
			case errors.Is(err, context.Canceled):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"processedUrl": res.URL,
			"attempts":     res.Attempts,
			"cached":       res.Cached,
		})
	})
}

func uploadHandler(uc Pipeline, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

		file, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		if file.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		if file.Size == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
			return
		}

		result, err := uc.Upload(c.Request.Context(), imageprocessor.UploadRequest{
			Payload:     data,
			ContentType: file.Header.Get("Content-Type"),
			Filename:    file.Filename,
		})
		if err != nil {
			_ = c.Error(err)
			if errors.Is(err, imageprocessor.ErrMissingInput) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"public_id": result.ObjectID,
			"url":       result.DeliveryURL,
		})
	}
}
