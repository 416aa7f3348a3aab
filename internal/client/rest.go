package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// REST fetches the light status from the resource-oriented endpoint:
// POST {"carName": name}, answered with the YANG-shaped JSON output
// {"fetch":{"output":{"carStatus":{"name":...,"exteriorLight":...}}}}.
type REST struct {
	url string
	hc  *http.Client
}

type restRequest struct {
	CarName string `json:"carName"`
}

// RESTResponse mirrors the YANG output shape. Shared with the stub
// server so both sides agree on the wire contract.
type RESTResponse struct {
	Fetch struct {
		Output struct {
			CarStatus struct {
				Name          string `json:"name"`
				ExteriorLight string `json:"exteriorLight"`
			} `json:"carStatus"`
		} `json:"output"`
	} `json:"fetch"`
}

func NewREST(url string, timeout time.Duration) *REST {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &REST{url: url, hc: &http.Client{Timeout: timeout}}
}

func (c *REST) Protocol() string { return "rest" }

func (c *REST) Fetch(ctx context.Context, vehicleName string) Outcome {
	start := time.Now()
	body, err := json.Marshal(restRequest{CarName: vehicleName})
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(c.Protocol(), start, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(c.Protocol(), start, len(data),
			protocolErrorf("unexpected status %d", resp.StatusCode))
	}
	var parsed RESTResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(c.Protocol(), start, len(data),
			decodeErrorf("response is not valid JSON: %v", err))
	}
	return success(c.Protocol(), start, len(data))
}
