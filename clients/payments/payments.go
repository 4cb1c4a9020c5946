// Package payments is the HTTP client for the payment gateway glue service.
// A charge must complete and succeed before any vote-casting transaction
// begins; the engine never holds a database transaction across this call.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starcasthq/starcast/voting"
)

var _ voting.PaymentClient = (*Client)(nil)

type Client struct {
	url       string
	client    *http.Client
	userAgent string
}

func NewClient(clientURL string) *Client {
	return &Client{
		url: clientURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

type chargeRequest struct {
	PayerAccountID uint64 `json:"payer_account_id,omitempty"`
	GuestEmail     string `json:"guest_email,omitempty"`
	GuestName      string `json:"guest_name,omitempty"`
	CompetitionID  uint64 `json:"competition_id"`
	ContestantID   uint64 `json:"contestant_id"`
	VoteCount      uint64 `json:"vote_count"`
	AmountDue      int64  `json:"amount_due"`
}

type chargeResponse struct {
	Reference     string `json:"reference"`
	AmountCharged int64  `json:"amount_charged"`
	Error         string `json:"error,omitempty"`
}

// Charge submits the charge and returns the gateway's transaction reference.
func (c *Client) Charge(ctx context.Context, req *voting.ChargeRequest) (*voting.ChargeResult, error) {
	payload, err := json.Marshal(&chargeRequest{
		PayerAccountID: req.PayerAccountID,
		GuestEmail:     req.GuestEmail,
		GuestName:      req.GuestName,
		CompetitionID:  req.CompetitionID,
		ContestantID:   req.ContestantID,
		VoteCount:      req.VoteCount,
		AmountDue:      req.AmountDue,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.url+"/charges", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var body chargeResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		if body.Error != "" {
			return nil, fmt.Errorf("payment gateway: %s", body.Error)
		}
		return nil, fmt.Errorf("payment gateway returned %s", res.Status)
	}
	return &voting.ChargeResult{
		Reference:     body.Reference,
		AmountCharged: body.AmountCharged,
	}, nil
}
