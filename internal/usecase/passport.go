package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
	"github.com/example/passport-photo/internal/logging"
	"github.com/example/passport-photo/internal/poller"
)

const readyValue = "ready"

// Deriver turns an object id into a transformation URL.
type Deriver interface {
	Derive(objectID string) (string, error)
	Owns(rawURL string) bool
}

// Awaiter blocks until a derived URL renders.
type Awaiter interface {
	Await(ctx context.Context, url string) (poller.State, error)
}

// AwaitResult reports how a derived URL became ready.
type AwaitResult struct {
	URL      string
	Attempts int
	Cached   bool
}

// Outcome is the result of one full upload, derive and poll run.
type Outcome struct {
	RequestID    string
	ObjectID     string
	DeliveryURL  string
	ProcessedURL string
	Attempts     int
}

// PassportUseCase coordinates the upload, derive and poll stages. Runs share no
// state beyond the readiness cache.
type PassportUseCase struct {
	uploader       imageprocessor.Client
	deriver        Deriver
	poller         Awaiter
	cache          Cache
	observer       Observer
	logger         *zap.Logger
	readyTTL       time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewPassportUseCase constructs a new use case instance. A nil observer disables metrics.
func NewPassportUseCase(uploader imageprocessor.Client, deriver Deriver, awaiter Awaiter, cache Cache, observer Observer, logger *zap.Logger) *PassportUseCase {
	if observer == nil {
		observer = NopObserver{}
	}
	return &PassportUseCase{
		uploader:       uploader,
		deriver:        deriver,
		poller:         awaiter,
		cache:          cache,
		observer:       observer,
		logger:         logger.Named("passport_usecase"),
		readyTTL:       10 * time.Minute,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// WithReadyTTL sets how long a confirmed-ready URL is remembered.
func (uc *PassportUseCase) WithReadyTTL(ttl time.Duration) *PassportUseCase {
	uc.readyTTL = ttl
	return uc
}

// Upload relays one payload to the provider. Failures are never retried.
func (uc *PassportUseCase) Upload(ctx context.Context, req imageprocessor.UploadRequest) (*imageprocessor.UploadResult, error) {
	return uc.upload(ctx, uuid.NewString(), req)
}

// Process derives the transformation URL for objectID.
func (uc *PassportUseCase) Process(ctx context.Context, objectID string) (string, error) {
	return uc.process(ctx, uuid.NewString(), objectID)
}

// Await polls processedURL until it renders. Only URLs the deriver built are accepted.
func (uc *PassportUseCase) Await(ctx context.Context, processedURL string) (*AwaitResult, error) {
	return uc.await(ctx, uuid.NewString(), processedURL)
}

// Run executes upload, derive and poll for one payload under a single request id.
func (uc *PassportUseCase) Run(ctx context.Context, req imageprocessor.UploadRequest) (*Outcome, error) {
	requestID := uuid.NewString()

	uploaded, err := uc.upload(ctx, requestID, req)
	if err != nil {
		return nil, err
	}
	processedURL, err := uc.process(ctx, requestID, uploaded.ObjectID)
	if err != nil {
		return nil, err
	}
	ready, err := uc.await(ctx, requestID, processedURL)
	if err != nil {
		return nil, err
	}

	logging.WithOperation(uc.logger, "usecase.run", requestID).Info("passport photo ready",
		zap.String("object_id", uploaded.ObjectID),
		zap.Int("attempts", ready.Attempts),
	)
	return &Outcome{
		RequestID:    requestID,
		ObjectID:     uploaded.ObjectID,
		DeliveryURL:  uploaded.DeliveryURL,
		ProcessedURL: ready.URL,
		Attempts:     ready.Attempts,
	}, nil
}

func (uc *PassportUseCase) upload(ctx context.Context, requestID string, req imageprocessor.UploadRequest) (*imageprocessor.UploadResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.upload", requestID)
	if len(req.Payload) == 0 {
		err := logging.NewOperationError("usecase.upload", requestID, imageprocessor.UploadError(imageprocessor.ErrMissingInput, errors.New("no file uploaded")))
		opLogger.Warn("rejected empty upload")
		return nil, err
	}

	start := time.Now()
	result, err := uc.uploader.Upload(ctx, req)
	uc.observer.RecordUpload(time.Since(start), len(req.Payload), err)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.upload", requestID, err)
		opLogger.Error("upload failed", zap.Error(wrapped))
		return nil, wrapped
	}

	opLogger.Info("upload stored",
		zap.String("object_id", result.ObjectID),
		zap.Int("bytes", len(req.Payload)),
		zap.String("content_type", req.ContentType),
	)
	return result, nil
}

func (uc *PassportUseCase) process(_ context.Context, requestID, objectID string) (string, error) {
	processedURL, err := uc.deriver.Derive(objectID)
	uc.observer.RecordDerive(err)
	if err != nil {
		wrapped := logging.NewObjectError("usecase.process", requestID, objectID, err)
		logging.WithOperation(uc.logger, "usecase.process", requestID).Warn("derive rejected", zap.Error(wrapped))
		return "", wrapped
	}
	return processedURL, nil
}

func (uc *PassportUseCase) await(ctx context.Context, requestID, processedURL string) (*AwaitResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.await", requestID)
	if processedURL == "" || !uc.deriver.Owns(processedURL) {
		return nil, logging.NewOperationError("usecase.await", requestID,
			fmt.Errorf("%w: url is not a derived delivery url", imageprocessor.ErrInvalidRequest))
	}

	cacheKey := "ready:" + processedURL
	if cached, err := uc.withCacheGet(ctx, requestID, "cache.get.ready", cacheKey); err == nil && cached == readyValue {
		uc.observer.RecordAwait(0, 0, true, nil)
		return &AwaitResult{URL: processedURL, Cached: true}, nil
	} else if err != nil && !errors.Is(err, ErrCacheMiss) {
		opLogger.Warn("failed to read readiness cache", zap.Error(err))
	}

	start := time.Now()
	state, err := uc.poller.Await(ctx, processedURL)
	uc.observer.RecordAwait(time.Since(start), state.Attempt, false, err)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.await", requestID, err)
		opLogger.Error("asset did not become ready", zap.Error(wrapped), zap.Int("attempts", state.Attempt))
		return nil, wrapped
	}

	if err := uc.withCacheRetry(ctx, requestID, "cache.set.ready", func() error {
		return uc.cache.Set(ctx, cacheKey, readyValue, uc.readyTTL)
	}); err != nil {
		opLogger.Warn("failed to cache readiness", zap.Error(err))
	}

	return &AwaitResult{URL: state.URL, Attempts: state.Attempt}, nil
}

func (uc *PassportUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *PassportUseCase) withCacheGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withCacheRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
