package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"CovidSentinel/internal/model"
)

// ErrNoData is returned when the feed answers with an empty data array.
var ErrNoData = errors.New("feed returned no data")

// Field maps from record keys to dashboard metric names.
var (
	PrimaryStructure = map[string]string{
		"Date":        "date",
		"CasesNew":    "newCasesByPublishDate",
		"CasesTotal":  "cumCasesByPublishDate",
		"DeathsNew":   "newDeaths28DaysByPublishDate",
		"DeathsTotal": "cumDeaths28DaysByPublishDate",
	}
	SecondaryStructure = map[string]string{
		"Date":                            "date",
		"VaccinationsFirstDoseNew":        "newPeopleVaccinatedFirstDoseByPublishDate",
		"VaccinationsFirstDoseTotal":      "cumPeopleVaccinatedFirstDoseByPublishDate",
		"VaccinationsSecondDoseNew":       "newPeopleVaccinatedSecondDoseByPublishDate",
		"VaccinationsSecondDoseTotal":     "cumPeopleVaccinatedSecondDoseByPublishDate",
		"VaccinationsAdditionalDoseNew":   "newPeopleVaccinatedThirdInjectionByPublishDate",
		"VaccinationsAdditionalDoseTotal": "cumPeopleVaccinatedThirdInjectionByPublishDate",
	}
)

const (
	primaryLatestBy   = "newCasesByPublishDate"
	secondaryLatestBy = "newPeopleVaccinatedFirstDoseByPublishDate"
	defaultMaxPages   = 50
)

// CovidAPIFetcher implements Fetcher against the public dashboard data API.
type CovidAPIFetcher struct {
	BaseURL  string
	AreaType string
	AreaName string
	Client   *http.Client
	// MaxPages bounds a history download; zero means 50 pages.
	MaxPages int
}

// NewCovidAPIFetcher creates a new fetcher with optional proxy support.
func NewCovidAPIFetcher(baseURL, areaType, areaName, proxyURL string, timeout time.Duration) *CovidAPIFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CovidAPIFetcher{
		BaseURL:  baseURL,
		AreaType: areaType,
		AreaName: areaName,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *CovidAPIFetcher) Name() string { return "coronavirus.data.gov.uk" }

// apiPage is the envelope the data API wraps every response in.
type apiPage struct {
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Next *string `json:"next"`
	} `json:"pagination"`
}

func (f *CovidAPIFetcher) LatestPrimary(ctx context.Context) (model.RawRecord, error) {
	var recs []model.RawRecord
	if _, err := f.get(ctx, f.query(PrimaryStructure, primaryLatestBy, 0), &recs); err != nil {
		return model.RawRecord{}, fmt.Errorf("fetch primary: %w", err)
	}
	if len(recs) == 0 {
		return model.RawRecord{}, fmt.Errorf("fetch primary: %w", ErrNoData)
	}
	return recs[0], nil
}

func (f *CovidAPIFetcher) LatestSecondary(ctx context.Context) (model.SecondaryRecord, error) {
	var recs []model.SecondaryRecord
	if _, err := f.get(ctx, f.query(SecondaryStructure, secondaryLatestBy, 0), &recs); err != nil {
		return model.SecondaryRecord{}, fmt.Errorf("fetch secondary: %w", err)
	}
	if len(recs) == 0 {
		return model.SecondaryRecord{}, fmt.Errorf("fetch secondary: %w", ErrNoData)
	}
	return recs[0], nil
}

func (f *CovidAPIFetcher) PrimaryHistory(ctx context.Context) ([]model.RawRecord, error) {
	limit := f.MaxPages
	if limit <= 0 {
		limit = defaultMaxPages
	}
	var all []model.RawRecord
	for page := 1; ; page++ {
		var recs []model.RawRecord
		more, err := f.get(ctx, f.query(PrimaryStructure, "", page), &recs)
		if err != nil {
			return nil, fmt.Errorf("fetch history page %d: %w", page, err)
		}
		all = append(all, recs...)
		if !more {
			break
		}
		if page == limit {
			return nil, fmt.Errorf("fetch history: still more data after %d pages", limit)
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("fetch history: %w", ErrNoData)
	}
	// Ensure newest first
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	return all, nil
}

func (f *CovidAPIFetcher) query(structure map[string]string, latestBy string, page int) string {
	s, _ := json.Marshal(structure)
	q := url.Values{}
	q.Set("filters", fmt.Sprintf("areaType=%s;areaName=%s", f.AreaType, f.AreaName))
	q.Set("structure", string(s))
	q.Set("format", "json")
	if latestBy != "" {
		q.Set("latestBy", latestBy)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	return f.BaseURL + "?" + q.Encode()
}

// get decodes the data array of one page into out and reports whether a next page exists.
func (f *CovidAPIFetcher) get(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	var page apiPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return false, fmt.Errorf("decode envelope: %w", err)
	}
	if len(page.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(page.Data, out); err != nil {
		return false, fmt.Errorf("decode data: %w", err)
	}
	return page.Pagination.Next != nil && *page.Pagination.Next != "", nil
}
