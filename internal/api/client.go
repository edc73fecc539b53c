package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"healthrec/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "HEALTHREC_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the healthrec API.
type Client struct {
	baseURL string
	http    *http.Client
}

// RegisterRequest carries the form fields of one submission.
type RegisterRequest struct {
	Name     string
	Age      int
	Gender   string
	Filename string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, &resp)
	return resp, err
}

// Register uploads one payload with its metadata as a multipart form.
func (c *Client) Register(ctx context.Context, req RegisterRequest, content io.Reader) (RegisterResponse, error) {
	var resp RegisterResponse

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{"name", req.Name},
		{"age", strconv.Itoa(req.Age)},
		{"gender", req.Gender},
	}
	for _, field := range fields {
		if err := writer.WriteField(field.key, field.value); err != nil {
			return resp, err
		}
	}
	part, err := writer.CreateFormFile("content", req.Filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if err := writer.Close(); err != nil {
		return resp, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/records", &body)
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) ListRecords(ctx context.Context) ([]models.Record, error) {
	var resp []models.Record
	err := c.do(ctx, http.MethodGet, "/v1/records", nil, &resp)
	return resp, err
}

func (c *Client) GetRecord(ctx context.Context, id int64) (models.Record, error) {
	var resp models.Record
	err := c.do(ctx, http.MethodGet, recordPath(id), nil, &resp)
	return resp, err
}

func (c *Client) SaveEdits(ctx context.Context, req SaveEditsRequest) (SaveEditsResponse, error) {
	var resp SaveEditsResponse
	err := c.do(ctx, http.MethodPost, "/v1/records/save", req, &resp)
	return resp, err
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, recordPath(id), nil, &resp)
	return resp, err
}

// Payload copies the stored payload of a record to w.
func (c *Client) Payload(ctx context.Context, id int64, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+recordPath(id)+"/payload", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (models.SweepReport, error) {
	var resp models.SweepReport
	err := c.do(ctx, http.MethodPost, "/v1/admin/sweep", req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func recordPath(id int64) string {
	return "/v1/records/" + url.PathEscape(strconv.FormatInt(id, 10))
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
