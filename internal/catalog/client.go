// Package catalog implements the read-only client for the character
// catalog API that notes attach to.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Character is one catalog entry
type Character struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Species string   `json:"species"`
	Image   string   `json:"image"`
	Episode []string `json:"episode"`
}

// PageInfo describes catalog pagination
type PageInfo struct {
	Count int     `json:"count"`
	Pages int     `json:"pages"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

// CharactersPage is one page of catalog results
type CharactersPage struct {
	Info    PageInfo    `json:"info"`
	Results []Character `json:"results"`
}

// Episode is one episode a character appears in
type Episode struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	AirDate string `json:"air_date"`
	Code    string `json:"episode"`
}

// Query filters a catalog page request
type Query struct {
	Page    int
	Name    string
	Status  string
	Species string
}

// Client talks to the catalog API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a catalog client for the API at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Characters fetches one page of the catalog
func (c *Client) Characters(ctx context.Context, q Query) (*CharactersPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Species != "" {
		params.Set("species", q.Species)
	}

	var result CharactersPage
	if err := c.get(ctx, "/character?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Character fetches one catalog entry by id
func (c *Client) Character(ctx context.Context, id int64) (*Character, error) {
	var result Character
	if err := c.get(ctx, fmt.Sprintf("/character/%d", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Episodes fetches episodes by id. The API returns a bare object for a
// single id and an array otherwise; both decode to a slice here.
func (c *Client) Episodes(ctx context.Context, ids []int64) ([]Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/episode/"+strings.Join(parts, ","), &raw); err != nil {
		return nil, err
	}
	return decodeEpisodes(raw)
}

func decodeEpisodes(raw json.RawMessage) ([]Episode, error) {
	var episodes []Episode
	if err := json.Unmarshal(raw, &episodes); err == nil {
		return episodes, nil
	}

	var single Episode
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode episodes: %w", err)
	}
	return []Episode{single}, nil
}

// EpisodeIDs extracts episode ids from a character's episode URLs
func EpisodeIDs(c *Character) []int64 {
	var ids []int64
	for _, u := range c.Episode {
		idx := strings.LastIndex(u, "/")
		if idx < 0 {
			continue
		}
		id, err := strconv.ParseInt(u[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
