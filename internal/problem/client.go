// Package problem is the client for the external problem catalog.
package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codoleet/internal/evaluator"
	pkgerrors "codoleet/pkg/errors"
)

const defaultClientTimeout = 10 * time.Second

// Problem is the catalog record, reduced to what grading needs.
type Problem struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	TestCases []evaluator.TestCase `json:"testCases"`
}

// Client fetches problems from the catalog service. Unlike public callers,
// grading receives every test case including hidden ones.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type catalogEnvelope struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    Problem `json:"data"`
}

// GetProblem fetches one problem by id.
func (c *Client) GetProblem(ctx context.Context, id string) (Problem, error) {
	if id == "" {
		return Problem{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("problem id is required")
	}

	url := fmt.Sprintf("%s/problems/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Problem{}, pkgerrors.Wrapf(err, pkgerrors.ProblemFetchFailed, "build catalog request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Problem{}, pkgerrors.Wrapf(err, pkgerrors.ProblemFetchFailed, "call problem catalog")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Problem{}, pkgerrors.Newf(pkgerrors.ProblemNotFound, "problem %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return Problem{}, pkgerrors.Newf(pkgerrors.ProblemFetchFailed, "catalog returned status %d", resp.StatusCode)
	}

	var envelope catalogEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Problem{}, pkgerrors.Wrapf(err, pkgerrors.ProblemFetchFailed, "decode catalog response")
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "catalog reported failure"
		}
		return Problem{}, pkgerrors.Newf(pkgerrors.ProblemFetchFailed, "%s", msg)
	}
	if len(envelope.Data.TestCases) == 0 {
		return Problem{}, pkgerrors.Newf(pkgerrors.TestCasesMissing, "problem %s has no test cases", id)
	}
	if envelope.Data.ID == "" {
		envelope.Data.ID = id
	}
	return envelope.Data, nil
}
