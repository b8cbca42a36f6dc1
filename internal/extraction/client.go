package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	// DefaultEndpointPath is where the extraction service accepts documents
	DefaultEndpointPath = "/api/extract"

	// FormField is the multipart field carrying the document
	FormField = "document"

	defaultTimeout  = 60 * time.Second
	maxResponseSize = 1 << 20
)

// Client submits documents to the extraction service
type Client struct {
	baseURL      string
	endpointPath string
	timeout      time.Duration
	client       *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests. A nil client
// keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout bounds a whole request, including reading the response. The
// client passed to WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithEndpointPath overrides DefaultEndpointPath
func WithEndpointPath(path string) Option {
	return func(c *Client) {
		c.endpointPath = path
	}
}

// NewClient creates a Client for the service at baseURL. An empty baseURL
// issues requests relative to the root path, which only works with a
// custom transport.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		endpointPath: DefaultEndpointPath,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

// errorResponse is the body shape of a failed extraction
type errorResponse struct {
	Error string `json:"error"`
}

// Extract sends doc to the service in a single POST. It never retries.
func (c *Client) Extract(ctx context.Context, doc Document) (*Result, error) {
	body, contentType, err := encodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	url := c.baseURL + c.endpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("Extraction request failed", "url", url, "error", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	slog.Debug("Extraction response received",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(data),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceError(resp.StatusCode, data)
	}

	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("decoding response: body exceeds %d bytes", maxResponseSize)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// serviceError prefers the message the service put in the body
func serviceError(status int, data []byte) *ServiceError {
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &ServiceError{StatusCode: status, Message: body.Error}
	}
	return &ServiceError{StatusCode: status, Message: FallbackMessage}
}

// encodeDocument builds a multipart body with the document as its only part
func encodeDocument(doc Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := doc.Filename
	if filename == "" {
		filename = "document"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FormField, escapeQuotes(filename)))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
