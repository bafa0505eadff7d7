package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Environment variables consumed by the suite. BaseURL selects the deployment
// under test; the reviewer credentials must match a seeded account there.
const (
	EnvBaseURL          = "PROVENANCE_E2E_BASE_URL"
	EnvReviewerEmail    = "PROVENANCE_E2E_REVIEWER_EMAIL"
	EnvReviewerPassword = "PROVENANCE_E2E_REVIEWER_PASSWORD"

	defaultReviewerEmail    = "reviewer@example.com"
	defaultReviewerPassword = "e2e-password"
)

// TestContext carries HTTP state across the steps of a single scenario: the
// last response, the reviewer's bearer token, and the run under test.
type TestContext struct {
	baseURL string
	client  *http.Client

	lastStatus int
	lastBody   []byte
	lastJSON   map[string]interface{}

	accessToken string
	runID       string
}

// NewTestContext builds a context pointed at the service named by
// PROVENANCE_E2E_BASE_URL.
func NewTestContext() *TestContext {
	baseURL := os.Getenv(EnvBaseURL)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ReviewerEmail returns the login email for the seeded reviewer account.
func (tc *TestContext) ReviewerEmail() string {
	if v := os.Getenv(EnvReviewerEmail); v != "" {
		return v
	}
	return defaultReviewerEmail
}

// ReviewerPassword returns the login password for the seeded reviewer account.
func (tc *TestContext) ReviewerPassword() string {
	if v := os.Getenv(EnvReviewerPassword); v != "" {
		return v
	}
	return defaultReviewerPassword
}

// POST sends a JSON request and records the response. The reviewer token, if
// set, is attached as a bearer credential.
func (tc *TestContext) POST(path string, body interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	return tc.do(req)
}

// GET sends a request and records the response. Explicit headers win over the
// implicit bearer credential.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	tc.lastJSON = nil
	if len(body) > 0 {
		var decoded map[string]interface{}
		if err := json.Unmarshal(body, &decoded); err == nil {
			tc.lastJSON = decoded
		}
	}
	return nil
}

// StatusCode returns the status of the last response.
func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

// ResponseBody returns the raw body of the last response.
func (tc *TestContext) ResponseBody() string {
	return string(tc.lastBody)
}

// GetResponseField resolves a dot-separated path into the last JSON response.
// Intermediate segments must be objects; the final value is returned as-is so
// steps can iterate arrays or inspect nested maps themselves.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if tc.lastJSON == nil {
		return nil, fmt.Errorf("last response is not a JSON object: %s", truncate(tc.lastBody, 200))
	}

	var current interface{} = map[string]interface{}(tc.lastJSON)
	for _, segment := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: segment %q is not an object", field, segment)
		}
		value, ok := obj[segment]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", field, truncate(tc.lastBody, 200))
		}
		current = value
	}
	return current, nil
}

// GetAccessToken returns the saved reviewer token.
func (tc *TestContext) GetAccessToken() string {
	return tc.accessToken
}

// SetAccessToken saves the reviewer token for subsequent requests.
func (tc *TestContext) SetAccessToken(token string) {
	tc.accessToken = token
}

// GetRunID returns the run started by this scenario.
func (tc *TestContext) GetRunID() string {
	return tc.runID
}

// SetRunID saves the run under test.
func (tc *TestContext) SetRunID(id string) {
	tc.runID = id
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
