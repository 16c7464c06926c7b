package storage

import (
	"time"
)

// YearMonth is a calendar month, used for tenure bounds.
type YearMonth struct {
	Year  int `json:"year" yaml:"year" toml:"year"`
	Month int `json:"month" yaml:"month" toml:"month"`
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Start returns the first instant of the month in UTC.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the month in UTC.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

var (
	// EarliestTenure stands in for a missing tenure start.
	EarliestTenure = time.Time{}
	// OpenTenureEnd stands in for a missing tenure end.
	OpenTenureEnd = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// Tenure is the window during which a member is considered active.
// A nil End means the member has not left.
type Tenure struct {
	Start *YearMonth `json:"start,omitempty" yaml:"start,omitempty" toml:"start,omitempty"`
	End   *YearMonth `json:"end,omitempty" yaml:"end,omitempty" toml:"end,omitempty"`
}

// Bounds returns the inclusive instant range covered by the tenure.
func (t Tenure) Bounds() (time.Time, time.Time) {
	start, end := EarliestTenure, OpenTenureEnd
	if t.Start != nil {
		start = t.Start.Start()
	}
	if t.End != nil {
		end = t.End.End()
	}
	return start, end
}

// Contains reports whether at falls inside the tenure window.
func (t Tenure) Contains(at time.Time) bool {
	start, end := t.Bounds()
	return !at.Before(start) && !at.After(end)
}

// Active reports whether no departure has been recorded.
func (t Tenure) Active() bool {
	return t.End == nil
}

type Member struct {
	Name         string            `json:"name" yaml:"name" toml:"name"`
	DisplayNames map[string]string `json:"displayNames,omitempty" yaml:"displayNames,omitempty" toml:"displayNames,omitempty"`
	Description  string            `json:"description" yaml:"description" toml:"description"`
	Avatar       string            `json:"avatar,omitempty" yaml:"avatar,omitempty" toml:"avatar,omitempty"`
	Tenure       Tenure            `json:"tenure" yaml:"tenure" toml:"tenure"`
	Tags         []string          `json:"tags" yaml:"tags" toml:"tags"`
	Social       map[string]string `json:"social,omitempty" yaml:"social,omitempty" toml:"social,omitempty"`
	Sources      []string          `json:"sources" yaml:"sources" toml:"sources"`
}

// HasTag reports whether the member carries tag.
func (m Member) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type Article struct {
	Title              string    `json:"title"`
	Link               string    `json:"link"`
	PubDate            time.Time `json:"pubDate"`
	Excerpt            string    `json:"excerpt"`
	SiteName           string    `json:"siteName"`
	Author             string    `json:"author"`
	AuthorAvatar       string    `json:"authorAvatar,omitempty"`
	Tags               []string  `json:"tags"`
	IsDuringEmployment bool      `json:"isDuringEmployment"`
}

// HasTag reports whether the article was tagged with tag at ingestion.
func (a Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FeedItem is a parsed feed entry before it is attributed to a member.
// A zero Published means the entry carried no usable date.
type FeedItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
}

// SourceState is what is remembered about one source URL between runs.
type SourceState struct {
	URL                 string     `json:"url"`
	ETag                string     `json:"etag"`
	LastModified        string     `json:"last_modified"`
	LastFetched         time.Time  `json:"last_fetched"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	SiteTitle           string     `json:"site_title"`
	Items               []FeedItem `json:"items"`
}

type RunTrigger string

const (
	TriggerGenerate RunTrigger = "generate"
	TriggerRefresh  RunTrigger = "refresh"
	TriggerFallback RunTrigger = "fallback"
)

type RunRecord struct {
	ID            string        `json:"id"`
	Trigger       RunTrigger    `json:"trigger"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Articles      int           `json:"articles"`
	Sources       int           `json:"sources"`
	FailedSources []string      `json:"failed_sources,omitempty"`
	Persisted     bool          `json:"persisted"`
	Error         string        `json:"error,omitempty"`
}
