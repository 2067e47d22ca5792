package entity

// Example is one labeled text record, stored as a single ndjson line in a
// split's data.jsonl file.
type Example struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// DatasetManifest is the metadata.json sidecar written next to the split
// directories of a downloaded dataset. MaxSamples is nil when no cap was
// applied.
type DatasetManifest struct {
	Name         string         `json:"name"`
	TotalSamples int            `json:"total_samples"`
	Splits       []string       `json:"splits"`
	MaxSamples   *int           `json:"max_samples"`
	SplitCounts  map[string]int `json:"split_counts,omitempty"`
}
