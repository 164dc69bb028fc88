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

package main

import (
	"time"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/base/log"
	"github.com/gorse-io/clusterloss/common/nn"
	"github.com/gorse-io/clusterloss/dataset"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Fit a linear embedding of clustered samples with the cluster loss.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		if cmd.Flags().Changed("epochs") {
			conf.Train.Epochs, _ = cmd.Flags().GetInt("epochs")
		}
		rng := base.NewRandomGenerator(conf.Batch.Seed)
		batch := dataset.Clustered[float32](rng, conf.Batch.Subjects, conf.Batch.Dimension, conf.Train.Spread)
		x := nn.FromBlob(batch.Features)
		labels := nn.FromBlob(batch.Labels)

		model := nn.NewSequential(nn.NewLinear(rng, conf.Batch.Dimension, conf.Train.OutputDim).SetJobs(conf.Loss.Jobs))
		var optimizer nn.Optimizer
		switch conf.Train.Optimizer {
		case "adam":
			optimizer = nn.NewAdam(model.Parameters(), float32(conf.Train.LearningRate))
		default:
			optimizer = nn.NewSGD(model.Parameters(), float32(conf.Train.LearningRate))
		}
		optimizer.SetWeightDecay(float32(conf.Train.WeightDecay))

		start := time.Now()
		bar := progressbar.Default(int64(conf.Train.Epochs), "Training")
		var first, last float32
		for epoch := 1; epoch <= conf.Train.Epochs; epoch++ {
			if err := cmd.Context().Err(); err != nil {
				log.Logger().Fatal("training interrupted", zap.Int("epoch", epoch), zap.Error(err))
			}
			loss, err := nn.TryClusterLoss(model.Forward(x), labels, conf.Loss.Options()...)
			if err != nil {
				log.Logger().Fatal("failed to evaluate loss", zap.Error(err))
			}
			last = loss.Data()[0]
			if epoch == 1 {
				first = last
			}
			optimizer.ZeroGrad()
			loss.Backward()
			optimizer.Step()
			log.Logger().Debug("fit epoch", zap.Int("epoch", epoch), zap.Float32("loss", last))
			_ = bar.Add(1)
		}
		log.Logger().Info("complete training",
			zap.Int("epochs", conf.Train.Epochs),
			zap.String("optimizer", conf.Train.Optimizer),
			zap.Float32("initial_loss", first),
			zap.Float32("final_loss", last),
			zap.Duration("elapsed", time.Since(start)))
	},
}

func init() {
	trainCommand.Flags().Int("epochs", 0, "number of epochs (overrides the config)")
}
