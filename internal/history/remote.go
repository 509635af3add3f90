package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"intake/internal/classify"
	"intake/internal/logging"
	"intake/internal/queue"
	"intake/internal/services"
)

// RemoteOptions configures the hosted lookup client.
type RemoteOptions struct {
	// Timeout bounds one attempt, not the whole retry budget.
	Timeout  time.Duration
	RetryMax int
}

// Remote queries a hosted record service instead of the local database. It
// satisfies the same lookup contract the classifier consumes.
type Remote struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemote builds a lookup client for the given endpoint.
func NewRemote(baseURL string, opts RemoteOptions, logger *slog.Logger) (*Remote, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "new remote", "remote lookup URL is empty", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	componentLogger := logging.NewComponentLogger(logger, "history-remote")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = &retryLogger{logger: componentLogger}

	return &Remote{
		baseURL: baseURL,
		client:  retryClient.StandardClient(),
		logger:  componentLogger,
	}, nil
}

type lookupRequest struct {
	Fingerprints []string `json:"fingerprints"`
	Scope        string   `json:"scope"`
}

type lookupResponse struct {
	Records []remoteRecord `json:"records"`
}

type remoteRecord struct {
	Fingerprint string         `json:"fingerprint"`
	Uploader    string         `json:"uploader"`
	UploadedAt  time.Time      `json:"uploadedAt"`
	Metadata    remoteMetadata `json:"metadataSnapshot"`
}

type remoteMetadata struct {
	SizeBytes      int64     `json:"sizeBytes"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	Basename       string    `json:"basename"`
}

// LookupByFingerprints issues one batched POST for the given fingerprints.
func (r *Remote) LookupByFingerprints(ctx context.Context, fingerprints []string, scope string) (map[string][]classify.Record, error) {
	distinct := dedupe(fingerprints)
	if len(distinct) == 0 {
		return map[string][]classify.Record{}, nil
	}

	body, err := json.Marshal(lookupRequest{Fingerprints: distinct, Scope: normalizeScope(scope)})
	if err != nil {
		return nil, fmt.Errorf("marshal lookup request: %w", err)
	}

	url := r.baseURL + "/v1/uploads/lookup"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "history", "remote lookup", "lookup request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrUnavailable, "history", "remote lookup",
			fmt.Sprintf("lookup returned status %d", resp.StatusCode), nil)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}

	out := make(map[string][]classify.Record, len(decoded.Records))
	for _, rec := range decoded.Records {
		if rec.Fingerprint == "" {
			continue
		}
		out[rec.Fingerprint] = append(out[rec.Fingerprint], classify.Record{
			Fingerprint: rec.Fingerprint,
			Uploader:    rec.Uploader,
			UploadedAt:  rec.UploadedAt,
			Metadata: queue.Metadata{
				SizeBytes:      rec.Metadata.SizeBytes,
				LastModifiedAt: rec.Metadata.LastModifiedAt,
				Basename:       rec.Metadata.Basename,
			},
		})
	}
	return out, nil
}

// retryLogger adapts slog to the retryablehttp leveled logger.
type retryLogger struct {
	logger *slog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *retryLogger) Info(string, ...any) {}

func (l *retryLogger) Debug(string, ...any) {}
