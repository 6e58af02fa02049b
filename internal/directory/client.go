// Package directory resolves children against the parent/directory service.
// Lookups are best-effort: a miss falls back to a synthesized placeholder so
// leaderboards never fail on a name lookup.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Child struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	Grade       string `json:"grade,omitempty"`
}

// Age derives the child's age in whole years, or 0 when the date of birth
// is absent or malformed.
func (c Child) Age(now time.Time) int {
	dob, err := time.Parse("2006-01-02", c.DateOfBirth)
	if err != nil {
		return 0
	}
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	nameTTL    time.Duration
}

// New builds a directory client. redisURL may point at nothing usable; the
// client then runs uncached (fail-open), same as the rest of the platform's
// Redis usage.
func New(baseURL, redisURL string, nameTTL time.Duration) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		nameTTL: nameTTL,
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Warning: invalid Redis URL, child name cache disabled: %v", err)
		return c
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: Redis unavailable, child name cache disabled: %v", err)
		return c
	}
	c.cache = client
	return c
}

// Child fetches one child record.
func (c *Client) Child(ctx context.Context, id int64) (*Child, error) {
	u := fmt.Sprintf("%s/children/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup for child %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory lookup for child %d: status %d", id, resp.StatusCode)
	}

	var child Child
	if err := json.NewDecoder(resp.Body).Decode(&child); err != nil {
		return nil, err
	}
	return &child, nil
}

// ChildName resolves a display name, consulting the cache first and falling
// back to "Child <id>" when the directory cannot answer.
func (c *Client) ChildName(ctx context.Context, id int64) string {
	key := nameCacheKey(id)
	if c.cache != nil {
		if name, err := c.cache.Get(ctx, key).Result(); err == nil && name != "" {
			return name
		}
	}

	child, err := c.Child(ctx, id)
	if err != nil || child.Name == "" {
		if err != nil {
			log.Printf("Warning: child name lookup failed for %d: %v", id, err)
		}
		return "Child " + strconv.FormatInt(id, 10)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, child.Name, c.nameTTL).Err(); err != nil {
			log.Printf("Warning: failed to cache child name for %d: %v", id, err)
		}
	}
	return child.Name
}

// ChildrenByGrade lists child ids in a school's grade, used for grade-wide
// tournament fan-out.
func (c *Client) ChildrenByGrade(ctx context.Context, schoolID int64, grade string) ([]int64, error) {
	q := url.Values{
		"schoolId": {strconv.FormatInt(schoolID, 10)},
		"grade":    {grade},
	}
	u := c.baseURL + "/children?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory grade listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory grade listing: status %d", resp.StatusCode)
	}

	var children []Child
	if err := json.NewDecoder(resp.Body).Decode(&children); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	return ids, nil
}

func nameCacheKey(id int64) string {
	return "child:name:" + strconv.FormatInt(id, 10)
}
