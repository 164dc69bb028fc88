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
	"fmt"
	"os"
	"time"

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/base/log"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/floats"
	"github.com/gorse-io/clusterloss/config"
	"github.com/gorse-io/clusterloss/dataset"
	"github.com/gorse-io/clusterloss/loss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evalCommand = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate the loss and its gradient on a minibatch.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		ramp, _ := cmd.Flags().GetBool("ramp")
		shuffle, _ := cmd.Flags().GetBool("shuffle")
		batch := newBatch(conf, ramp)
		if shuffle {
			batch = dataset.Shuffle(base.NewRandomGenerator(conf.Batch.Seed), batch)
		}

		l := loss.NewClusterLoss[float64](conf.Loss.Options()...)
		start := time.Now()
		value, err := l.Forward(cmd.Context(), batch.Features, batch.Labels)
		if err != nil {
			log.Logger().Fatal("failed to evaluate loss", zap.Error(err))
		}
		grad, err := l.Backward(cmd.Context(), batch.Features, batch.Labels)
		if err != nil {
			log.Logger().Fatal("failed to evaluate gradient", zap.Error(err))
		}
		log.Logger().Info("evaluate cluster loss",
			zap.Int("samples", batch.Len()),
			zap.Int("dimension", batch.Dim()),
			zap.Bool("ramp", ramp),
			zap.Duration("elapsed", time.Since(start)))

		// Render table
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Sample", "Label", "Feature Norm", "Gradient Norm")
		for i := 0; i < batch.Len(); i++ {
			_ = table.Append([]string{
				fmt.Sprintf("%d", i),
				fmt.Sprintf("%v", batch.Labels.Data()[i]),
				fmt.Sprintf("%g", floats.Norm(blob.Row[float64](batch.Features, i))),
				fmt.Sprintf("%g", floats.Norm(blob.Row[float64](grad, i))),
			})
		}
		_ = table.Render()
		fmt.Printf("Loss: %g\n", value)
	},
}

func init() {
	evalCommand.Flags().Bool("ramp", false, "use features x[i][k] = k*i instead of Gaussian features")
	evalCommand.Flags().Bool("shuffle", false, "shuffle samples before evaluation")
}

func newBatch(conf *config.Config, ramp bool) *dataset.Batch[float64] {
	if ramp {
		return dataset.Ramp[float64](conf.Batch.Subjects, conf.Batch.Dimension)
	}
	rng := base.NewRandomGenerator(conf.Batch.Seed)
	return dataset.Gaussian[float64](rng, conf.Batch.Subjects, conf.Batch.Dimension, conf.Batch.Mean, conf.Batch.Std)
}
