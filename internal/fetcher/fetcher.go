package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/postfetch/internal/models"
	"github.com/young1lin/postfetch/internal/provider"
	"github.com/young1lin/postfetch/pkg/logger"
)

const (
	// DefaultTimeout bounds the whole exchange, body read included
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 10 * 1024 * 1024
	rawPreviewChars = 500
)

var postURLPattern = regexp.MustCompile(`^https?://(twitter\.com|x\.com)/`)

// RequestConfig is everything one exchange needs. The executor never reads
// environment or files; callers build this from config.
type RequestConfig struct {
	Profile    provider.Profile
	BaseURL    string // scheme and host, e.g. https://openrouter.ai
	PathSuffix string
	APIKey     string
	Model      string
	Headers    map[string]string
	Timeout    time.Duration
}

// Endpoint returns the full URL the request is posted to
func (c *RequestConfig) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + c.PathSuffix
}

// Result is the success outcome of Execute
type Result struct {
	Text      string
	Citations []models.Citation
}

// Executor performs single-attempt chat-completion exchanges
type Executor struct {
	client *http.Client
}

// NewExecutor creates an executor on top of client. A nil client gets a
// default one that does not follow redirects.
func NewExecutor(client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Executor{client: client}
}

// ValidatePostURL reports whether postURL points at an x.com or twitter.com page
func ValidatePostURL(postURL string) error {
	if !postURLPattern.MatchString(postURL) {
		return newError(InvalidInput, nil, "invalid X.com or twitter.com URL: %q", postURL)
	}
	return nil
}

// Execute sends one request for postURL and classifies the outcome. It
// returns either a Result or an *Error, never both, and never retries.
func (e *Executor) Execute(ctx context.Context, cfg RequestConfig, postURL string) (*Result, error) {
	log := logger.WithRequestID(logger.RequestIDFromContext(ctx)).With(
		zap.String("provider", cfg.Profile.Name),
	)

	if err := ValidatePostURL(postURL); err != nil {
		log.Debug("input rejected", zap.String("url", postURL))
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	payload := cfg.Profile.Payload(cfg.Model, provider.ExtractionPrompt(postURL))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(TransportError, err, "failed to marshal request: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, cfg.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, newError(TransportError, err, "failed to create request: %v", err)
	}
	req.ContentLength = int64(len(body))
	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}
	// Credential and content type are never overridden by extra headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	log.Debug("request sent",
		zap.String("endpoint", cfg.Endpoint()),
		zap.String("model", payload.Model),
		zap.Int("body_bytes", len(body)),
		zap.Duration("timeout", timeout),
	)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, reqCtx, err, timeout, log)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp.Body)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, classifyTransport(ctx, reqCtx, err, timeout, log)
	}

	log.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(raw)),
	)

	return parseResponse(resp.StatusCode, raw, log)
}

// readBody buffers the whole body. A body over the size limit is never parsed.
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxResponseSize {
		fe := newError(MalformedResponse, nil, "response body exceeds %d bytes", maxResponseSize)
		fe.Detail = preview(data)
		return nil, fe
	}
	return data, nil
}

// classifyTransport reports Timeout only when the executor's own deadline
// fired; a canceled or expired parent is a TransportError.
func classifyTransport(parent, reqCtx context.Context, err error, timeout time.Duration, log *zap.Logger) *Error {
	if parentErr := parent.Err(); parentErr != nil {
		log.Debug("request canceled", zap.Error(parentErr))
		return newError(TransportError, err, "request canceled: %v", parentErr)
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		log.Debug("request timed out", zap.Duration("timeout", timeout))
		return newError(Timeout, err, "request timed out after %s", timeout)
	}
	log.Debug("transport failed", zap.Error(err))
	return newError(TransportError, err, "request failed: %v", err)
}

func parseResponse(status int, raw []byte, log *zap.Logger) (*Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newError(EmptyResponse, nil, "empty response (status %d)", status)
	}

	var envelope models.ChatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if !json.Valid(raw) {
			fe := newError(MalformedResponse, err, "failed to parse response: %v", err)
			fe.Detail = preview(raw)
			log.Debug("parse failed", zap.Error(err))
			return nil, fe
		}
		// Valid JSON that is not an object carries no usable fields
		envelope = models.ChatResponse{}
	}

	if status != http.StatusOK {
		msg := envelope.ErrorText()
		if msg == "" {
			msg = "Unknown error"
		}
		fe := newError(APIError, nil, "%s", msg)
		fe.Status = status
		fe.Detail = indent(raw)
		log.Debug("api error reported", zap.Int("status", status), zap.String("message", msg))
		return nil, fe
	}

	content, annotations, err := envelope.FirstContent()
	if err != nil {
		fe := newError(NoContent, nil, "%s", err.Error())
		fe.Detail = indent(raw)
		log.Debug("no content reported", zap.String("reason", err.Error()))
		return nil, fe
	}

	result := &Result{
		Text:      content,
		Citations: extractCitations(annotations),
	}

	log.Debug("fetch succeeded",
		zap.Int("content_chars", len(result.Text)),
		zap.Int("citation_count", len(result.Citations)),
	)

	return result, nil
}

// extractCitations keeps url_citation annotations that carry a citation body
func extractCitations(annotations []models.Annotation) []models.Citation {
	citations := make([]models.Citation, 0, len(annotations))
	for _, a := range annotations {
		if a.Type != models.AnnotationTypeURLCitation || a.URLCitation == nil {
			continue
		}
		citations = append(citations, models.Citation{
			Title: a.URLCitation.Title,
			URL:   a.URLCitation.URL,
		})
	}
	return citations
}

// preview returns at most the first rawPreviewChars characters of raw
func preview(raw []byte) string {
	runes := []rune(string(raw))
	if len(runes) > rawPreviewChars {
		runes = runes[:rawPreviewChars]
	}
	return string(runes)
}

func indent(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Describe renders a failure the way it is shown to the operator
func Describe(label string, err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return fmt.Sprintf("Error: %v", err)
	}

	switch fe.Kind {
	case InvalidInput:
		return "Error: " + fe.Message
	case APIError:
		return fmt.Sprintf("%s Error (status %d): %s", label, fe.Status, fe.Message)
	case MalformedResponse:
		return fmt.Sprintf("Failed to parse %s response: %s", label, fe.Message)
	case EmptyResponse:
		return fmt.Sprintf("Empty response from %s", label)
	case NoContent:
		return fmt.Sprintf("No content returned from %s", label)
	default:
		return fmt.Sprintf("%s %s", label, fe.Message)
	}
}
