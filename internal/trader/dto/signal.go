package dto

import "time"

// SourceScore is one sentiment source's contribution to an aggregated
// signal.
type SourceScore struct {
	Source    string  `json:"source"`
	Sentiment float64 `json:"sentiment"`
	Strength  float64 `json:"strength"`
	Weight    float64 `json:"weight"`
}

// AggregatedSignal is the combined view over all sentiment sources for one
// ticker.
type AggregatedSignal struct {
	Ticker         string        `json:"ticker"`
	Sentiment      float64       `json:"sentiment"`
	Strength       float64       `json:"strength"`
	Recommendation string        `json:"recommendation"`
	Sources        []SourceScore `json:"sources"`
	MissingSources []string      `json:"missing_sources"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// RawSentiment is the response shape shared by the sentiment source APIs.
type RawSentiment struct {
	Ticker    string  `json:"ticker"`
	Sentiment float64 `json:"sentiment"`
	Strength  float64 `json:"strength"`
}
