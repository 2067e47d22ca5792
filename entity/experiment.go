package entity

import "time"

const (
	ExperimentStatusRunning   = "running"
	ExperimentStatusCompleted = "completed"
	ExperimentStatusFailed    = "failed"
)

// ExperimentRecord is the registry row written for every run-experiment
// invocation.
type ExperimentRecord struct {
	ID           uint      `gorm:"primaryKey;column:id" json:"id"`
	ExperimentID string    `gorm:"column:experiment_id;uniqueIndex" json:"experiment_id"`
	DatasetName  string    `gorm:"column:dataset_name" json:"dataset_name"`
	ModelName    string    `gorm:"column:model_name" json:"model_name"`
	Profile      string    `gorm:"column:profile" json:"profile"`
	ConfigHash   string    `gorm:"column:config_hash" json:"config_hash"`
	Status       string    `gorm:"column:status" json:"status"`
	Directory    string    `gorm:"column:directory" json:"directory"`
	FailureStage string    `gorm:"column:failure_stage" json:"failure_stage,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ExperimentRecord) TableName() string {
	return "experiments"
}

// ExperimentDirectories lists every stage directory of one experiment tree.
type ExperimentDirectories struct {
	ExperimentRoot string `json:"experiment_root"`
	Data           string `json:"data"`
	BaseModel      string `json:"base_model"`
	FineTunedModel string `json:"fine_tuned_model"`
	Metrics        string `json:"metrics"`
	Predictions    string `json:"predictions"`
	Comparison     string `json:"comparison"`
	Cache          string `json:"cache"`
}

// ExperimentFiles lists the key output files of one experiment.
type ExperimentFiles struct {
	BaseMetrics          string `json:"base_metrics"`
	FineTunedMetrics     string `json:"fine_tuned_metrics"`
	BasePredictions      string `json:"base_predictions"`
	FineTunedPredictions string `json:"fine_tuned_predictions"`
	ComparisonJSON       string `json:"comparison_json"`
	ComparisonReport     string `json:"comparison_report"`
}

// ExperimentSummary is the experiment_metadata.json manifest, the canonical
// record of a completed run.
type ExperimentSummary struct {
	ExperimentID  string                `json:"experiment_id"`
	DatasetName   string                `json:"dataset_name"`
	ModelName     string                `json:"model_name"`
	Profile       string                `json:"profile"`
	ProfileConfig ProfileConfig         `json:"profile_config"`
	ConfigHash    string                `json:"config_hash"`
	TrainSkipped  bool                  `json:"train_skipped"`
	Timestamp     string                `json:"timestamp"`
	Directories   ExperimentDirectories `json:"directories"`
	Files         ExperimentFiles       `json:"files"`
}

// ProfileConfig is the resolved profile embedded in the experiment manifest:
// the full training config plus the dataset sample cap that was applied.
type ProfileConfig struct {
	Description string         `json:"description"`
	MaxSamples  *int           `json:"max_samples"`
	Training    TrainingConfig `json:"training"`
}
