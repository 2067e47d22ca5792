package entity

// TrainingMetadata is the training_metadata.json sidecar of a fine-tuned
// artifact directory. Completed is only ever true in a file whose remaining
// fields describe a fully finished run: the file is written once, atomically,
// after the model files exist.
//
// Input modification times are stored as epoch seconds with fractional part,
// matching what older experiment directories already contain.
type TrainingMetadata struct {
	ModelName         string         `json:"model_name"`
	TrainDataPath     string         `json:"train_data_path"`
	TrainDataMTime    float64        `json:"train_data_mtime"`
	ValDataPath       string         `json:"val_data_path"`
	ValDataMTime      float64        `json:"val_data_mtime"`
	ConfigHash        string         `json:"config_hash"`
	TrainingParams    TrainingConfig `json:"training_params"`
	TrainingSamples   int            `json:"training_samples"`
	ValidationSamples int            `json:"validation_samples"`
	TotalSteps        int            `json:"total_steps"`
	Completed         bool           `json:"completed"`
}
