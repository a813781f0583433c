package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"shifts-connector/config"
	"shifts-connector/internal/model"
)

type sourceHTTPClient struct {
	http *httpClient
}

// NewSourceHTTPClient WFM 源系统 HTTP 客户端
//
//	GET /teams/{team}/schedule?start=&end=
func NewSourceHTTPClient(cfg *config.EndpointConfig) (SourceClient, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &sourceHTTPClient{http: hc}, nil
}

func (c *sourceHTTPClient) ListShifts(ctx context.Context, teamID string, start, end time.Time) ([]model.ShiftRecord, error) {
	q := url.Values{}
	q.Set("start", formatTime(start))
	q.Set("end", formatTime(end))

	var resp shiftListResponse
	path := "/teams/" + url.PathEscape(teamID) + "/schedule"
	if err := c.http.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Shifts, nil
}
