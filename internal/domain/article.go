package domain

import "time"

// SourceType is the trust tier a feed is configured with.
type SourceType string

const (
	SourceTypeA SourceType = "A"
	SourceTypeB SourceType = "B"
	SourceTypeC SourceType = "C"
	SourceTypeD SourceType = "D"
	SourceTypeE SourceType = "E"
)

// Valid reports whether the tier is one of the known values.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeA, SourceTypeB, SourceTypeC, SourceTypeD, SourceTypeE:
		return true
	default:
		return false
	}
}

// HighTrust reports whether titles from this tier anchor credibility.
func (t SourceType) HighTrust() bool {
	return t == SourceTypeA || t == SourceTypeC
}

// Candidate is a raw record produced by a feed fetcher. It is never persisted as-is.
type Candidate struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary,omitempty"`
	PublishTime string     `json:"publishTime,omitempty"`
	SourceID    string     `json:"sourceId"`
	SourceType  SourceType `json:"sourceType"`
	Via         string     `json:"via,omitempty"`
	HeatRank    *int       `json:"heatRank,omitempty"`
}

// Article is one observed news item keyed by the hash of its canonical URL.
type Article struct {
	ID             string     `json:"id"`
	URLHash        string     `json:"urlHash"`
	CleanHash      string     `json:"cleanHash"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	CanonicalURL   string     `json:"canonicalUrl"`
	Summary        string     `json:"summary,omitempty"`
	PublishTime    *time.Time `json:"publishTime,omitempty"`
	FirstSeenAt    time.Time  `json:"firstSeenAt"`
	SourceID       string     `json:"sourceId"`
	SourceType     SourceType `json:"sourceType"`
	Via            string     `json:"via,omitempty"`
	HeatRank       *int       `json:"heatRank,omitempty"`
	NewsType       string     `json:"newsType,omitempty"`
	TypeConfidence *float64   `json:"typeConfidence,omitempty"`
	Credibility    float64    `json:"credibility"`
	Score          float64    `json:"score"`
}

// Classified reports whether the article already carries a category.
func (a Article) Classified() bool {
	return a.NewsType != "" || a.TypeConfidence != nil
}

// Event groups articles believed to report the same occurrence.
type Event struct {
	Title     string    `json:"title"`
	MemberIDs []string  `json:"memberIds"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Batch is the output of a single feed fetch within a run.
type Batch struct {
	SourceID   string
	Kind       string
	Candidates []Candidate
	Err        error
}
