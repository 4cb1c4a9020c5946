// Package directory is the HTTP client for the competition directory, the
// external CRUD store that owns competition metadata. The engine only reads
// from it.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/voting"
)

var _ voting.CompetitionDirectory = (*Client)(nil)

type Client struct {
	url       string
	client    *http.Client
	userAgent string
}

func NewClient(clientURL string) *Client {
	return &Client{
		url: clientURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

type competitionResponse struct {
	ID             uint64                 `json:"id"`
	Status         core.CompetitionStatus `json:"status"`
	MaxVotesPerDay uint64                 `json:"max_votes_per_day"`
	ContestantIDs  []uint64               `json:"contestant_ids"`
}

// Competition fetches the competition read model. Unknown ids map to
// voting.ErrCompetitionNotFound.
func (c *Client) Competition(ctx context.Context, id uint64) (*core.Competition, error) {
	queryURL := fmt.Sprintf("%s/competitions/%d", c.url, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: id %d", voting.ErrCompetitionNotFound, id)
	default:
		return nil, fmt.Errorf("competition directory returned %s", res.Status)
	}

	var body competitionResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &core.Competition{
		ID:             body.ID,
		Status:         body.Status,
		MaxVotesPerDay: body.MaxVotesPerDay,
		ContestantIDs:  body.ContestantIDs,
	}, nil
}
