package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"shifts-connector/config"
	"shifts-connector/internal/model"
)

type shiftListResponse struct {
	Shifts []model.ShiftRecord `json:"shifts"`
}

type createShiftResponse struct {
	ID string `json:"id"`
}

type destinationHTTPClient struct {
	http *httpClient
}

// NewDestinationHTTPClient 目标排班服务 HTTP 客户端
//
//	GET    /teams/{team}/shifts?start=&end=&limit=
//	POST   /teams/{team}/shifts
//	PUT    /teams/{team}/shifts/{destination_id}
//	DELETE /teams/{team}/shifts/{destination_id}
func NewDestinationHTTPClient(cfg *config.EndpointConfig) (DestinationClient, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &destinationHTTPClient{http: hc}, nil
}

func teamShiftsPath(teamID string) string {
	return "/teams/" + url.PathEscape(teamID) + "/shifts"
}

func (c *destinationHTTPClient) ListShifts(ctx context.Context, teamID string, start, end time.Time, maxCount int) ([]model.ShiftRecord, error) {
	q := url.Values{}
	q.Set("start", formatTime(start))
	q.Set("end", formatTime(end))
	q.Set("limit", strconv.Itoa(maxCount))

	var resp shiftListResponse
	if err := c.http.do(ctx, http.MethodGet, teamShiftsPath(teamID), q, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Shifts) > maxCount {
		resp.Shifts = resp.Shifts[:maxCount]
	}
	return resp.Shifts, nil
}

func (c *destinationHTTPClient) CreateShift(ctx context.Context, teamID string, shift model.ShiftRecord) (string, error) {
	var resp createShiftResponse
	if err := c.http.do(ctx, http.MethodPost, teamShiftsPath(teamID), nil, shift, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *destinationHTTPClient) UpdateShift(ctx context.Context, teamID string, shift model.ShiftRecord) error {
	path := teamShiftsPath(teamID) + "/" + url.PathEscape(shift.DestinationID)
	return c.http.do(ctx, http.MethodPut, path, nil, shift, nil)
}

func (c *destinationHTTPClient) DeleteShift(ctx context.Context, teamID string, shift model.ShiftRecord) error {
	path := teamShiftsPath(teamID) + "/" + url.PathEscape(shift.DestinationID)
	return c.http.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
