// Package remote is the HTTP client for the ticketing authority — the
// server of record for ticket status. It is a thin JSON client: the wire
// shapes are owned by the authority and mirrored in the types package.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
	"github.com/ticketeer/scangate/internal/scangate/types"
)

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *log.Logger
}

type Config struct {
	// BaseURL of the ticketing authority API, e.g. "https://api.example.com".
	BaseURL string

	// Token is the operator's bearer token, attached verbatim to every
	// request. Obtaining and refreshing it is the UI's concern.
	Token string

	// Timeout per request. Defaults to 10 seconds.
	Timeout time.Duration
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Validate asks the authority to validate a scanned code. A non-nil error is
// a transport failure; an authority-level deny comes back inside the
// response with a nil error.
func (c *Client) Validate(ctx context.Context, code, sessionID string) (types.RemoteValidateResponse, error) {
	body, err := json.Marshal(map[string]string{
		"code":       code,
		"session_id": sessionID,
	})
	if err != nil {
		return types.RemoteValidateResponse{}, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/scanner/validate", bytes.NewReader(body))
	if err != nil {
		return types.RemoteValidateResponse{}, fmt.Errorf("build validate request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return types.RemoteValidateResponse{}, fmt.Errorf("validate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return types.RemoteValidateResponse{}, fmt.Errorf("validate request: server returned %d", resp.StatusCode)
	}

	// 4xx responses still carry the authority's decision body (invalid
	// ticket, already validated) and are decoded, not treated as transport
	// failures.
	var out types.RemoteValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.RemoteValidateResponse{}, fmt.Errorf("decode validate response: %w", err)
	}
	return out, nil
}

type ticketPayload struct {
	Code       string `json:"code"`
	TicketID   string `json:"ticket_id"`
	EventID    string `json:"event_id"`
	Tier       string `json:"tier"`
	HolderName string `json:"holder_name"`
	Status     string `json:"status"`
}

// FetchEventTickets pulls the full ticket list for an event, for pre-caching
// before the scanner goes offline.
func (c *Client) FetchEventTickets(ctx context.Context, eventID string) ([]store.CachedTicket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/scanner/events/"+eventID+"/tickets", nil)
	if err != nil {
		return nil, fmt.Errorf("build tickets request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tickets request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tickets request: server returned %d", resp.StatusCode)
	}

	var payload struct {
		Tickets []ticketPayload `json:"tickets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tickets response: %w", err)
	}

	now := time.Now().UTC()
	out := make([]store.CachedTicket, 0, len(payload.Tickets))
	for _, t := range payload.Tickets {
		out = append(out, store.CachedTicket{
			Code:     t.Code,
			TicketID: t.TicketID,
			EventID:  t.EventID,
			Tier:     t.Tier,
			Holder:   t.HolderName,
			Status:   t.Status,
			CachedAt: now,
		})
	}
	return out, nil
}

// Probe reports whether the authority's health endpoint answers. Used by the
// connectivity monitor; best effort only.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
