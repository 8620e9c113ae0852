// Package cvparse is the HTTP client for the external CV parsing service.
package cvparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/imports"
	infraconfig "github.com/crm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 4 * 1024 * 1024

const dateLayout = "2006-01-02"

// Ensure Client implements the Parser port
var _ imports.Parser = (*Client)(nil)

// parseResponse is the wire format of the parsing service
type parseResponse struct {
	Success bool      `json:"success"`
	Data    *parsedCV `json:"data"`
	Error   string    `json:"error"`
}

type parsedCV struct {
	FirstName      string `json:"first_name"`
	Prefix         string `json:"prefix"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Location       string `json:"location"`
	Education      string `json:"education"`
	CurrentCompany string `json:"current_company"`
	CurrentRole    string `json:"current_role"`
	Skills         string `json:"skills"`
}

// Client calls the CV parsing service over HTTP. The service accepts a
// multipart upload and answers {"success": bool, "data": {...}, "error": ""}.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a parsing service client from configuration
func NewClient(cfg infraconfig.ParserConfig, opts ...ClientOption) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("parser endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	c := &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Parse uploads the file at filePath and maps the service answer to a
// ParsedCV. Transport failures and server errors return plain errors so the
// caller retries; a definitive "could not parse this file" answer returns a
// terminal error.
func (c *Client) Parse(ctx context.Context, filePath, originalFilename string) (imports.ParsedCV, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return imports.ParsedCV{}, imports.Terminal("uploaded file is no longer available", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(originalFilename))
	if err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to read CV file: %w", err)
	}
	if err := writer.WriteField("filename", originalFilename); err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/parse", body)
	if err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return imports.ParsedCV{}, fmt.Errorf("parsing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return imports.ParsedCV{}, fmt.Errorf("failed to read parsing service response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		// Throttling and timeouts clear up on their own; the retry
		// backoff absorbs them.
		c.logger.Warn("parsing service throttled",
			zap.Int("status", resp.StatusCode),
			zap.String("filename", originalFilename))
		return imports.ParsedCV{}, fmt.Errorf("parsing service returned status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		c.logger.Warn("parsing service error",
			zap.Int("status", resp.StatusCode),
			zap.String("filename", originalFilename))
		return imports.ParsedCV{}, fmt.Errorf("parsing service returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// The service rejected this specific file; retrying the same
		// bytes cannot succeed.
		return imports.ParsedCV{}, imports.Terminal(
			fmt.Sprintf("parsing service rejected file (status %d)", resp.StatusCode), nil)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return imports.ParsedCV{}, fmt.Errorf("invalid parsing service response: %w", err)
	}

	if !parsed.Success {
		reason := parsed.Error
		if reason == "" {
			reason = "parsing service could not process the file"
		}
		return imports.ParsedCV{}, imports.Terminal(reason, nil)
	}
	if parsed.Data == nil {
		return imports.ParsedCV{}, errors.New("parsing service returned success without data")
	}

	return c.mapResult(*parsed.Data, originalFilename), nil
}

func (c *Client) mapResult(data parsedCV, originalFilename string) imports.ParsedCV {
	result := imports.ParsedCV{
		FirstName:      strings.TrimSpace(data.FirstName),
		Prefix:         strings.TrimSpace(data.Prefix),
		LastName:       strings.TrimSpace(data.LastName),
		Email:          strings.TrimSpace(data.Email),
		Phone:          strings.TrimSpace(data.Phone),
		Location:       strings.TrimSpace(data.Location),
		Education:      NormalizeEducation(data.Education),
		CurrentCompany: strings.TrimSpace(data.CurrentCompany),
		CurrentRole:    strings.TrimSpace(data.CurrentRole),
		Skills:         strings.TrimSpace(data.Skills),
	}

	if data.DateOfBirth != "" {
		if dob, err := time.Parse(dateLayout, data.DateOfBirth); err == nil {
			result.DateOfBirth = &dob
		} else {
			c.logger.Debug("discarding unparseable date of birth",
				zap.String("value", data.DateOfBirth),
				zap.String("filename", originalFilename))
		}
	}

	return result
}

// educationAliases maps common descriptions to the recognized levels
var educationAliases = map[string]string{
	"UNIVERSITEIT": contact.EducationUNI,
	"UNIVERSITY":   contact.EducationUNI,
	"WO":           contact.EducationUNI,
	"MASTER":       contact.EducationUNI,
	"BACHELOR":     contact.EducationHBO,
	"HOGESCHOOL":   contact.EducationHBO,
	"HTS":          contact.EducationHBO,
	"HEAO":         contact.EducationHBO,
}

// NormalizeEducation maps a free-form education answer to MBO/HBO/UNI.
// Unrecognized values are dropped rather than stored.
func NormalizeEducation(education string) string {
	education = strings.ToUpper(strings.TrimSpace(education))
	switch education {
	case contact.EducationMBO, contact.EducationHBO, contact.EducationUNI:
		return education
	}
	return educationAliases[education]
}
