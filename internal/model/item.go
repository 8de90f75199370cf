package model

import "time"

// RelevanceSource records which classification layer admitted an item.
type RelevanceSource string

const (
	RelevanceKeyword         RelevanceSource = "keyword"
	RelevanceLLMStandard     RelevanceSource = "llm_standard"
	RelevanceLLMConservative RelevanceSource = "llm_conservative"
	RelevanceLLMZeroMatch    RelevanceSource = "llm_zero_match"
)

// ConfidenceLevel buckets classification confidence.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ProcurementItem is one normalized procurement opportunity. Classification
// fields are derived per search and immutable once set.
type ProcurementItem struct {
	Source          string          `json:"source"`
	NativeID        string          `json:"native_id"`
	Object          string          `json:"object"`
	ValueBRL        float64         `json:"value_brl,omitempty"`
	Region          string          `json:"region,omitempty"`
	Modality        string          `json:"modality,omitempty"`
	PublishedAt     time.Time       `json:"published_at"`
	OpensAt         *time.Time      `json:"opens_at,omitempty"`
	URL             string          `json:"url,omitempty"`
	RelevanceSource RelevanceSource `json:"relevance_source,omitempty"`
	Confidence      ConfidenceLevel `json:"confidence,omitempty"`
	RelevanceReason string          `json:"relevance_reason,omitempty"`
}

// Key is the deduplication identity of an item across sources.
func (it ProcurementItem) Key() string {
	return it.Source + "|" + it.NativeID
}

// SearchStats are the Enrich-stage aggregates over the filtered result set.
type SearchStats struct {
	TotalValueBRL float64        `json:"total_value_brl"`
	ByRegion      map[string]int `json:"by_region"`
	ByModality    map[string]int `json:"by_modality"`
	BySource      map[string]int `json:"by_source"`
}

// SearchResult is the pipeline's answer to one search request.
type SearchResult struct {
	SessionID          string            `json:"session_id"`
	ResponseState      ResponseState     `json:"response_state"`
	Items              []ProcurementItem `json:"items"`
	Stats              *SearchStats      `json:"stats,omitempty"`
	Sources            []string          `json:"sources,omitempty"`
	CacheAgeSeconds    int64             `json:"cache_age_seconds,omitempty"`
	LiveFetchInFlight  bool              `json:"live_fetch_in_progress"`
	LLMStatus          string            `json:"llm_status,omitempty"`
	ExcelStatus        string            `json:"excel_status,omitempty"`
}
