package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/thejosephstevens/model-experiments/entity"
)

var ErrUnknownProfile = errors.New("unknown training profile")

// TrainingProfile bundles a complete training config with the dataset sample
// cap applied when downloading. MaxSamples 0 means no cap. The model name of
// the config is filled in at run time.
type TrainingProfile struct {
	Description string
	MaxSamples  int
	Config      entity.TrainingConfig
}

// trainingProfiles is a fixed table built once at process start and never
// mutated; ResolveProfile hands out copies.
var trainingProfiles = map[string]TrainingProfile{
	"quick": {
		Description: "Fast testing profile with minimal samples",
		MaxSamples:  100,
		Config: entity.TrainingConfig{
			Epochs:                    1,
			BatchSize:                 32,
			LearningRate:              2e-5,
			WarmupSteps:               50,
			SaveSteps:                 500,
			LoggingSteps:              50,
			EvalSteps:                 250,
			MaxLength:                 512,
			GradientAccumulationSteps: 2,
			FP16:                      false,
			Seed:                      42,
		},
	},
	"default": {
		Description: "Balanced training profile for typical experiments",
		MaxSamples:  1000,
		Config: entity.TrainingConfig{
			Epochs:                    3,
			BatchSize:                 16,
			LearningRate:              2e-5,
			WarmupSteps:               100,
			SaveSteps:                 500,
			LoggingSteps:              50,
			EvalSteps:                 250,
			MaxLength:                 512,
			GradientAccumulationSteps: 2,
			FP16:                      false,
			Seed:                      42,
		},
	},
	"full": {
		Description: "Complete training with all available data",
		MaxSamples:  0,
		Config: entity.TrainingConfig{
			Epochs:                    5,
			BatchSize:                 8,
			LearningRate:              2e-5,
			WarmupSteps:               200,
			SaveSteps:                 1000,
			LoggingSteps:              100,
			EvalSteps:                 500,
			MaxLength:                 512,
			GradientAccumulationSteps: 2,
			FP16:                      false,
			Seed:                      42,
		},
	},
}

// ResolveProfile returns the named profile or ErrUnknownProfile before any
// side effect happens.
func ResolveProfile(name string) (TrainingProfile, error) {
	profile, ok := trainingProfiles[name]
	if !ok {
		return TrainingProfile{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProfile, name, ProfileNames())
	}
	return profile, nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(trainingProfiles))
	for name := range trainingProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// maxSamplesPtr converts the 0-means-unlimited convention to the nullable
// form used in manifests.
func maxSamplesPtr(maxSamples int) *int {
	if maxSamples <= 0 {
		return nil
	}
	value := maxSamples
	return &value
}
