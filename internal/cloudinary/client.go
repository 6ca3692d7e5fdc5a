// Package cloudinary adapts the Cloudinary upload API to imageprocessor.Client.
package cloudinary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	sdk "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
	"github.com/example/passport-photo/internal/logging"
	"github.com/example/passport-photo/internal/transform"
)

// Config identifies the account and where uploads land.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// Eager is precomputed synchronously as part of every upload.
	Eager transform.Profile
}

type assetUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Client uploads payloads to Cloudinary.
type Client struct {
	uploads assetUploader
	folder  string
	eager   string
	logger  *zap.Logger
}

// NewClient returns a ready-to-use Cloudinary client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, logging.NewOperationError("cloudinary.new_client", "", errors.New("cloud name, api key and api secret are required"))
	}
	if err := cfg.Eager.Validate(); err != nil {
		return nil, logging.NewOperationError("cloudinary.new_client", "", err)
	}
	cld, err := sdk.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		wrapped := logging.NewOperationError("cloudinary.new_client", "", err)
		logger.Error("failed to configure cloudinary", zap.Error(wrapped), zap.String("cloud_name", cfg.CloudName))
		return nil, wrapped
	}
	return newClient(&cld.Upload, cfg, logger), nil
}

func newClient(uploads assetUploader, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		uploads: uploads,
		folder:  cfg.Folder,
		eager:   cfg.Eager.Transformation(),
		logger:  logger.Named("cloudinary"),
	}
}

// Upload stores one new asset; identical payloads create distinct assets.
func (c *Client) Upload(ctx context.Context, req imageprocessor.UploadRequest) (*imageprocessor.UploadResult, error) {
	if len(req.Payload) == 0 {
		return nil, imageprocessor.UploadError(imageprocessor.ErrMissingInput, errors.New("payload is empty"))
	}

	params := uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "auto",
		Eager:        c.eager,
		EagerAsync:   api.Bool(false),
	}
	resp, err := c.uploads.Upload(ctx, bytes.NewReader(req.Payload), params)
	if err != nil {
		kind := imageprocessor.ErrProvider
		if isNetworkError(err) {
			kind = imageprocessor.ErrNetwork
		}
		wrapped := imageprocessor.UploadError(kind, err)
		c.logger.Error("cloudinary upload failed", zap.Error(wrapped), zap.Int("bytes", len(req.Payload)))
		return nil, wrapped
	}
	if resp == nil {
		return nil, imageprocessor.UploadError(imageprocessor.ErrProvider, errors.New("empty upload response"))
	}
	if resp.Error.Message != "" {
		wrapped := imageprocessor.UploadError(imageprocessor.ErrProvider, errors.New(resp.Error.Message))
		c.logger.Error("cloudinary rejected upload", zap.Error(wrapped))
		return nil, wrapped
	}
	if resp.PublicID == "" {
		return nil, imageprocessor.UploadError(imageprocessor.ErrProvider, fmt.Errorf("upload response has no public id"))
	}

	c.logger.Debug("asset uploaded", zap.String("public_id", resp.PublicID), zap.String("content_type", req.ContentType))
	return &imageprocessor.UploadResult{ObjectID: resp.PublicID, DeliveryURL: resp.SecureURL}, nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
