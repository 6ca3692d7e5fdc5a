package imageprocessor

import "context"

// UploadRequest carries one raw payload handed over by the caller.
type UploadRequest struct {
	Payload     []byte
	ContentType string
	Filename    string
}

// UploadResult is the provider's handle for a stored asset.
type UploadResult struct {
	ObjectID    string
	DeliveryURL string
}

// Client exposes the subset of provider functionality used by the passport flow.
type Client interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}
