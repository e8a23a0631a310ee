// Package meetings is the REST client for the meeting metadata service:
// create, join, inspect and end meetings. The coordinator itself never
// calls it; cmd wiring resolves the room here before a session starts.
package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 12 * time.Second},
	}
}

type Meeting struct {
	ID           domain.RoomID `json:"meetingId"`
	HostID       string        `json:"hostId"`
	Title        string        `json:"title"`
	Participants []string      `json:"participants,omitempty"`
	Active       bool          `json:"active"`
}

func (c *Client) Create(ctx context.Context, hostID, title string) (*Meeting, error) {
	var m Meeting
	err := c.do(ctx, http.MethodPost, "/meet/create", map[string]string{"hostId": hostID, "title": title}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Join(ctx context.Context, meetingID domain.RoomID, userID string) (*Meeting, error) {
	var m Meeting
	err := c.do(ctx, http.MethodPost, "/meet/join", map[string]string{"meetingId": string(meetingID), "userId": userID}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Get(ctx context.Context, meetingID domain.RoomID) (*Meeting, error) {
	var m Meeting
	if err := c.do(ctx, http.MethodGet, "/meet/"+string(meetingID), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Participants(ctx context.Context, meetingID domain.RoomID) ([]string, error) {
	var out struct {
		Participants []string `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, "/meet/"+string(meetingID)+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

func (c *Client) End(ctx context.Context, meetingID domain.RoomID) error {
	return c.do(ctx, http.MethodPatch, "/meet/"+string(meetingID)+"/end", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("meet api %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("meet api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
