package entity

// ModelMetadata is the model_metadata.json sidecar recorded when a base model
// is materialized on disk. CacheDir is nil when the backend used no shared
// download cache.
type ModelMetadata struct {
	Name      string  `json:"name"`
	ModelType string  `json:"model_type"`
	SavedPath string  `json:"saved_path"`
	CacheDir  *string `json:"cache_dir"`
}
