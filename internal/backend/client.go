// Package backend is the HTTP client for the student-management REST API.
//
// It supplies the reference data (campuses and courses) used to resolve
// free-text spreadsheet values and accepts the batch student-creation
// request. All calls share one token-bucket limiter.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	CampusesPath string
	CoursesPath  string
	BatchPath    string

	// CoursePageSize is the limit sent with each course page request.
	CoursePageSize int

	RateLimit float64
	RateBurst int

	// Transport allows injecting a custom round tripper in tests.
	Transport http.RoundTripper
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.CampusesPath == "" {
		c.CampusesPath = "/campuses"
	}
	if c.CoursesPath == "" {
		c.CoursesPath = "/courses"
	}
	if c.BatchPath == "" {
		c.BatchPath = "/students/batch"
	}
	if c.CoursePageSize <= 0 {
		c.CoursePageSize = 100
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
}

// maxCoursePages stops a backend that keeps returning full pages.
const maxCoursePages = 500

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d for %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Client talks to the student-management backend.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", cfg.BaseURL, err)
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}, nil
}

// FetchReference loads campuses and courses concurrently.
func (c *Client) FetchReference(ctx context.Context) (roster.ReferenceSet, error) {
	var campuses []roster.Campus
	var courses []roster.Course

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		campuses, err = c.Campuses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = c.Courses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return roster.ReferenceSet{}, err
	}

	return roster.NewReferenceSet(campuses, courses), nil
}

// Campuses returns every campus.
func (c *Client) Campuses(ctx context.Context) ([]roster.Campus, error) {
	body, err := c.do(ctx, http.MethodGet, c.cfg.CampusesPath, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch campuses: %w", err)
	}

	var dtos []campusDTO
	if _, err := decodeList(body, &dtos); err != nil {
		return nil, fmt.Errorf("decode campuses: %w", err)
	}

	campuses := make([]roster.Campus, 0, len(dtos))
	for _, d := range dtos {
		campuses = append(campuses, d.toCampus())
	}
	return campuses, nil
}

// Courses returns every course, following pagination. A bare-array
// response is treated as the complete list.
func (c *Client) Courses(ctx context.Context) ([]roster.Course, error) {
	var courses []roster.Course

	for page := 1; page <= maxCoursePages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(c.cfg.CoursePageSize))

		body, err := c.do(ctx, http.MethodGet, c.cfg.CoursesPath, q, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch courses page %d: %w", page, err)
		}

		var dtos []courseDTO
		meta, err := decodeList(body, &dtos)
		if err != nil {
			return nil, fmt.Errorf("decode courses page %d: %w", page, err)
		}
		for _, d := range dtos {
			courses = append(courses, d.toCourse())
		}

		switch {
		case !meta.paged:
			return courses, nil
		case meta.totalPages > 0:
			if page >= meta.totalPages {
				return courses, nil
			}
		case len(dtos) < c.cfg.CoursePageSize:
			return courses, nil
		}
	}

	logging.FromContext(ctx).Warn("course pagination stopped at page cap", "pages", maxCoursePages)
	return courses, nil
}

// CreateStudents sends one batch creation request.
func (c *Client) CreateStudents(ctx context.Context, payloads []roster.StudentPayload) (*roster.BatchResponse, error) {
	reqBody, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.cfg.BatchPath, nil, reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := decodeBatchResponse(body)
	if err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logging.FromContext(ctx).Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(data)), 200),
		}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
