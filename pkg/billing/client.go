// Package billing talks to the external plan and quota service. The
// search core treats plans as opaque: it receives capabilities and
// reports quota consumption, nothing more.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
)

// Service is the surface the pipeline depends on.
type Service interface {
	// Authorize resolves a bearer token into the caller's plan
	// capabilities.
	Authorize(ctx context.Context, token string) (model.PlanCapabilities, error)
	// ConsumeQuota burns one search credit for the user.
	ConsumeQuota(ctx context.Context, userID string) error
}

// ErrUnauthorized reports a token the billing service rejected.
var ErrUnauthorized = eris.New("billing: unauthorized")

// ErrQuotaExhausted reports a user with no remaining search credits.
var ErrQuotaExhausted = eris.New("billing: quota exhausted")

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

func (c *Client) Authorize(ctx context.Context, token string) (model.PlanCapabilities, error) {
	var caps model.PlanCapabilities

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/capabilities", nil)
	if err != nil {
		return caps, eris.Wrap(err, "billing: build authorize request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return caps, eris.Wrap(err, "billing: authorize")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return caps, ErrUnauthorized
	default:
		return caps, eris.Errorf("billing: authorize returned %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return caps, eris.Wrap(err, "billing: decode capabilities")
	}
	if caps.UserID == "" {
		return caps, eris.New("billing: capabilities missing user id")
	}
	return caps, nil
}

func (c *Client) ConsumeQuota(ctx context.Context, userID string) error {
	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return eris.Wrap(err, "billing: marshal consume request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/quota/consume", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "billing: build consume request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "billing: consume quota")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return ErrQuotaExhausted
	default:
		return eris.Errorf("billing: consume quota returned %d: %s", resp.StatusCode, readBody(resp.Body))
	}
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(b)
}
