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

	"github.com/gorse-io/clusterloss/base"
	"github.com/gorse-io/clusterloss/base/log"
	"github.com/gorse-io/clusterloss/common/blob"
	"github.com/gorse-io/clusterloss/common/gradcheck"
	"github.com/gorse-io/clusterloss/dataset"
	"github.com/gorse-io/clusterloss/loss"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var gradCheckCommand = &cobra.Command{
	Use:   "gradcheck",
	Short: "Compare the analytic gradient with central differences.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		top, _ := cmd.Flags().GetInt("top")
		mapLoss, _ := cmd.Flags().GetBool("map")
		rng := base.NewRandomGenerator(conf.GradCheck.Seed)
		var (
			batch     *dataset.Batch[float64]
			grad      *blob.Dense[float64]
			objective gradcheck.Objective[float64]
			err       error
		)
		if mapLoss {
			batch = dataset.BinaryMap[float64](rng, 2*conf.Batch.Subjects, conf.Batch.Dimension)
			l := loss.NewMapLoss[float64](loss.WithLambda(conf.Loss.Lambda))
			grad, err = l.Backward(batch.Features, batch.Labels)
			objective = func(x []float64) (float64, error) {
				return l.Forward(blob.NewDense(x, batch.Features.Shape()...), batch.Labels)
			}
		} else {
			batch = dataset.Gaussian[float64](rng, conf.Batch.Subjects, conf.Batch.Dimension, conf.Batch.Mean, conf.Batch.Std)
			l := loss.NewClusterLoss[float64](conf.Loss.Options()...)
			grad, err = l.Backward(cmd.Context(), batch.Features, batch.Labels)
			objective = func(x []float64) (float64, error) {
				return l.Forward(cmd.Context(), blob.NewDense(x, batch.Features.Shape()...), batch.Labels)
			}
		}
		if err != nil {
			log.Logger().Fatal("failed to evaluate gradient", zap.Error(err))
		}
		n, dim := batch.Len(), batch.Dim()

		checker := gradcheck.NewChecker(conf.GradCheck.Step, conf.GradCheck.Threshold)
		bar := progressbar.Default(int64(n*dim), "Checking gradient")
		checker.OnProgress = func(done, total int) {
			_ = bar.Set(done)
		}
		report, err := checker.CheckExhaustive(objective, batch.Features.Clone().Data(), grad.Data())
		_ = bar.Finish()
		if report != nil && len(report.Mismatches) > 0 {
			// Render table
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Sample", "Feature", "Analytic", "Numeric", "Error")
			for _, m := range report.Top(top) {
				_ = table.Append([]string{
					fmt.Sprintf("%d", m.Index/dim),
					fmt.Sprintf("%d", m.Index%dim),
					fmt.Sprintf("%g", m.Analytic),
					fmt.Sprintf("%g", m.Numeric),
					fmt.Sprintf("%g", m.Error),
				})
			}
			_ = table.Render()
		}
		if err != nil {
			log.Logger().Fatal("gradient check failed", zap.Error(err))
		}
		log.Logger().Info("gradient check passed",
			zap.Int("coordinates", report.Checked),
			zap.Float64("max_error", report.MaxError),
			zap.Float64("threshold", conf.GradCheck.Threshold))
	},
}

func init() {
	gradCheckCommand.Flags().Int("top", 10, "number of failing coordinates to show")
	gradCheckCommand.Flags().Bool("map", false, "check the map loss on binary targets instead of the cluster loss")
}
