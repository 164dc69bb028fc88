// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/clusterloss/loss"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "CLUSTERLOSS"

// Config is the configuration for the cluster loss tools.
type Config struct {
	Loss      LossConfig      `mapstructure:"loss"`
	Batch     BatchConfig     `mapstructure:"batch"`
	GradCheck GradCheckConfig `mapstructure:"gradcheck"`
	Train     TrainConfig     `mapstructure:"train"`
}

type LossConfig struct {
	Margin float64 `mapstructure:"margin" validate:"gte=0"`
	Lambda float64 `mapstructure:"lambda" validate:"gte=0"`
	Jobs   int     `mapstructure:"jobs" validate:"gte=1"`
}

// BatchConfig describes the synthetic minibatch: 2*subjects samples drawn from N(mean, std²).
type BatchConfig struct {
	Subjects  int     `mapstructure:"subjects" validate:"gte=2"`
	Dimension int     `mapstructure:"dimension" validate:"gte=1"`
	Mean      float64 `mapstructure:"mean"`
	Std       float64 `mapstructure:"std" validate:"gte=0"`
	Seed      int64   `mapstructure:"seed"`
}

type GradCheckConfig struct {
	Step      float64 `mapstructure:"step" validate:"gt=0"`
	Threshold float64 `mapstructure:"threshold" validate:"gt=0"`
	Seed      int64   `mapstructure:"seed"`
}

type TrainConfig struct {
	Epochs       int     `mapstructure:"epochs" validate:"gte=1"`
	Optimizer    string  `mapstructure:"optimizer" validate:"oneof=sgd adam"`
	LearningRate float64 `mapstructure:"learning_rate" validate:"gt=0"`
	WeightDecay  float64 `mapstructure:"weight_decay" validate:"gte=0"`
	OutputDim    int     `mapstructure:"output_dim" validate:"gte=1"`
	Spread       float64 `mapstructure:"spread" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Loss: LossConfig{
			Margin: loss.DefaultMargin,
			Lambda: loss.DefaultLambda,
			Jobs:   1,
		},
		Batch: BatchConfig{
			Subjects:  10,
			Dimension: 8,
			Mean:      0,
			Std:       10,
			Seed:      1701,
		},
		GradCheck: GradCheckConfig{
			Step:      1e-5,
			Threshold: 1e-2,
			Seed:      1701,
		},
		Train: TrainConfig{
			Epochs:       100,
			Optimizer:    "sgd",
			LearningRate: 0.01,
			WeightDecay:  0,
			OutputDim:    4,
			Spread:       0.1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [loss]
	v.SetDefault("loss.margin", defaultConfig.Loss.Margin)
	v.SetDefault("loss.lambda", defaultConfig.Loss.Lambda)
	v.SetDefault("loss.jobs", defaultConfig.Loss.Jobs)
	// [batch]
	v.SetDefault("batch.subjects", defaultConfig.Batch.Subjects)
	v.SetDefault("batch.dimension", defaultConfig.Batch.Dimension)
	v.SetDefault("batch.mean", defaultConfig.Batch.Mean)
	v.SetDefault("batch.std", defaultConfig.Batch.Std)
	v.SetDefault("batch.seed", defaultConfig.Batch.Seed)
	// [gradcheck]
	v.SetDefault("gradcheck.step", defaultConfig.GradCheck.Step)
	v.SetDefault("gradcheck.threshold", defaultConfig.GradCheck.Threshold)
	v.SetDefault("gradcheck.seed", defaultConfig.GradCheck.Seed)
	// [train]
	v.SetDefault("train.epochs", defaultConfig.Train.Epochs)
	v.SetDefault("train.optimizer", defaultConfig.Train.Optimizer)
	v.SetDefault("train.learning_rate", defaultConfig.Train.LearningRate)
	v.SetDefault("train.weight_decay", defaultConfig.Train.WeightDecay)
	v.SetDefault("train.output_dim", defaultConfig.Train.OutputDim)
	v.SetDefault("train.spread", defaultConfig.Train.Spread)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefault(v)
	// CLUSTERLOSS_LOSS_MARGIN overrides loss.margin and so on.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// LoadConfig loads configuration from a TOML file. Missing keys take default values and
// environment variables take precedence over the file. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		// check if file exist
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config file %s", path)
		}
	}
	return unmarshal(v)
}

func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	return nil
}

// Options converts the loss section to loss options.
func (c *LossConfig) Options() []loss.Option {
	return []loss.Option{
		loss.WithMargin(c.Margin),
		loss.WithLambda(c.Lambda),
		loss.WithJobs(c.Jobs),
	}
}

// ToMap flattens the configuration into nested maps keyed by TOML names.
func (config *Config) ToMap() (map[string]any, error) {
	var m map[string]any
	if err := mapstructure.Decode(config, &m); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
