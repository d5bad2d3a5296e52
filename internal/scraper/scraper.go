package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"course-tracker-backend/config"
	"course-tracker-backend/internal/tracker"
)

// SearchParams selects the course occurrence a tracker query watches.
type SearchParams struct {
	CourseTitle string
	CenterID    int
	DaytimeID   int
	WeekdayID   int
}

// Fetcher obtains course snapshots from the booking API. It never retries;
// the next scheduled cycle is the retry.
type Fetcher struct {
	cfg    *config.BookingAPIConfig
	client *http.Client
	log    *zap.Logger
}

// NewFetcher creates a fetcher for the configured booking API.
func NewFetcher(cfg *config.BookingAPIConfig, log *zap.Logger) *Fetcher {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, fetching without proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
}

// FetchCourse returns the single occurrence matching params. An empty result
// is reported as ErrNoCourseFound rather than as a not-found snapshot.
func (f *Fetcher) FetchCourse(ctx context.Context, params SearchParams) (tracker.Snapshot, error) {
	resp, err := f.fetch(ctx, params)
	if err != nil {
		return tracker.Snapshot{}, err
	}
	if len(resp.Courses) == 0 {
		return tracker.Snapshot{}, ErrNoCourseFound
	}

	// The search criteria are assumed to resolve to one occurrence.
	course := resp.Courses[0]
	if course.CourseIDTac == "" {
		return tracker.Snapshot{}, &TransportError{Err: errors.New("course in response has no courseIdTac")}
	}
	return tracker.Snapshot{
		Found:      true,
		CourseID:   string(course.CourseIDTac),
		Title:      course.Title,
		Instructor: course.Instructor,
		StartTime:  course.Start,
		Bookable:   course.Bookable,
	}, nil
}

func (f *Fetcher) buildRequest(params SearchParams) courseListRequest {
	daytimeIDs := []int{}
	if params.DaytimeID != 0 {
		daytimeIDs = append(daytimeIDs, params.DaytimeID)
	}

	return courseListRequest{
		Language:     f.cfg.Language,
		Skip:         0,
		Take:         1,
		SelectMethod: f.cfg.SelectMethod,
		MemberIDTac:  f.cfg.MemberIDTac,
		CenterIDs:    []int{params.CenterID},
		DaytimeIDs:   daytimeIDs,
		WeekdayIDs:   []int{params.WeekdayID},
		CourseTitles: []courseTitleFilter{
			{CenterID: params.CenterID, CourseTitle: params.CourseTitle},
		},
	}
}

func (f *Fetcher) fetch(ctx context.Context, params SearchParams) (*ApiResponse, error) {
	jsonBody, err := json.Marshal(f.buildRequest(params))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range f.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	f.log.Debug("booking api responded", zap.Int("status", resp.StatusCode), zap.String("course_title", params.CourseTitle))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to unmarshal api response: %w", err)}
	}

	return &apiResp, nil
}
