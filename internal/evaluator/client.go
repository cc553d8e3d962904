package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "codoleet/pkg/errors"
)

const defaultClientTimeout = 60 * time.Second

// Client calls a remote evaluator service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an evaluator client. The timeout bounds one whole
// evaluation run, so it should comfortably exceed the per-case deadline
// times the expected number of cases.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remoteFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Evaluate posts the submission to the remote evaluator and returns its
// report.
func (c *Client) Evaluate(ctx context.Context, code, language string, cases []TestCase) (Report, error) {
	payload, err := json.Marshal(evaluateRequest{Code: code, Language: language, TestCases: cases})
	if err != nil {
		return Report{}, pkgerrors.Wrapf(err, pkgerrors.EvaluationFailed, "encode evaluation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(payload))
	if err != nil {
		return Report{}, pkgerrors.Wrapf(err, pkgerrors.EvaluationFailed, "build evaluation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, pkgerrors.Wrapf(err, pkgerrors.EvaluatorUnreachable, "call evaluator")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure remoteFailure
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		msg := failure.Message
		if msg == "" {
			msg = fmt.Sprintf("evaluator returned status %d", resp.StatusCode)
		}
		return Report{}, pkgerrors.Newf(pkgerrors.EvaluationFailed, "%s", msg)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Report{}, pkgerrors.Wrapf(err, pkgerrors.EvaluationFailed, "decode evaluation report")
	}
	return report, nil
}
