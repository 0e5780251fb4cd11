package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/pkg/retry"
)

// ClassifierHTTPError is a non-2xx answer from the classifier endpoint.
type ClassifierHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ClassifierHTTPError) Error() string {
	return fmt.Sprintf("classifier returned %d: %s", e.StatusCode, e.Body)
}

type classifierResponse struct {
	PredictedLabel string             `json:"predicted_label"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	Error          string             `json:"error"`
}

// ClassifierClient calls the remote image model.
type ClassifierClient struct {
	endpoint string
	client   *http.Client
	retryCfg retry.Config
	logger   *slog.Logger
}

func NewClassifierClient(endpoint string, timeout time.Duration, retryCfg retry.Config, logger *slog.Logger) *ClassifierClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retryCfg.Retryable = retryableUpstream
	return &ClassifierClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retryCfg: retryCfg,
		logger:   logger,
	}
}

// Classify uploads the image as the multipart field "image".
func (c *ClassifierClient) Classify(ctx context.Context, image []byte, filename string) (*models.Diagnosis, error) {
	if len(image) == 0 {
		return nil, errors.New("classifier: empty image")
	}
	if filename == "" {
		filename = "leaf.jpg"
	}

	var diagnosis *models.Diagnosis
	err := retry.Do(ctx, c.retryCfg, func() error {
		d, err := c.classifyOnce(ctx, image, filename)
		if err != nil {
			c.logger.Warn("classifier call failed", slog.Any("error", err))
			return err
		}
		diagnosis = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diagnosis, nil
}

func (c *ClassifierClient) classifyOnce(ctx context.Context, image []byte, filename string) (*models.Diagnosis, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, retry.Permanent(err)
	}
	if err := writer.Close(); err != nil {
		return nil, retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ClassifierHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out classifierResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode classifier response: %w", err))
	}
	if out.Error != "" {
		return nil, retry.Permanent(fmt.Errorf("classifier error: %s", out.Error))
	}
	if strings.TrimSpace(out.PredictedLabel) == "" {
		return nil, retry.Permanent(errors.New("classifier returned no label"))
	}

	return &models.Diagnosis{
		Label:         out.PredictedLabel,
		Confidence:    out.Confidence,
		Probabilities: out.Probabilities,
	}, nil
}

// retryableUpstream retries network failures, 429 and 5xx answers.
func retryableUpstream(err error) bool {
	var ce *ClassifierHTTPError
	if errors.As(err, &ce) {
		return ce.StatusCode == http.StatusTooManyRequests || ce.StatusCode >= 500
	}
	var we *WeatherHTTPError
	if errors.As(err, &we) {
		return we.StatusCode == http.StatusTooManyRequests || we.StatusCode >= 500
	}
	return true
}
