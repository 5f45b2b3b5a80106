package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/config"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/report"
	"github.com/YuminosukeSato/taxifare/tracking"
	"github.com/YuminosukeSato/taxifare/trainer"
)

func newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Load, clean, split, fit and evaluate, then print the RMSE and experiment URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.New()
			if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, path)
			if err != nil {
				return err
			}
			if err := log.SetupLogger(cfg.Log.Level, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			plotPath, _ := cmd.Flags().GetString("plot")
			modelPath, _ := cmd.Flags().GetString("save-model")
			return train(ctx, cfg, cmd.OutOrStdout(), plotPath, modelPath)
		},
	}
	addTrainFlags(cmd)
	return cmd
}

// train runs the whole workflow and prints the RMSE, the experiment URL and
// the experiment name to out.
func train(ctx context.Context, cfg *config.Config, out io.Writer, plotPath, modelPath string) (err error) {
	logger := log.GetLoggerWithName("taxifare")

	rides, err := dataset.Load(ctx, cfg.Data.Source, cfg.Data.NRows,
		dataset.WithS3Endpoint(cfg.Data.S3Endpoint, !cfg.Data.S3Insecure),
		dataset.WithS3Region(cfg.Data.S3Region),
	)
	if err != nil {
		return err
	}
	clean := dataset.Clean(rides)
	logger.Info("Dataset cleaned",
		log.OperationKey, log.OperationClean,
		log.SamplesKey, len(clean),
		log.DroppedKey, len(rides)-len(clean),
	)

	split, err := dataset.TrainTestSplit(dataset.Features(clean), dataset.Target(clean), cfg.Split.TestSize, cfg.SplitSeed())
	if err != nil {
		return err
	}

	tracker := tracking.NewLogger(cfg.Tracking.URI, cfg.Tracking.ExperimentName,
		tracking.WithClientOptions(clientOptions(cfg)...))
	tr, err := trainer.New(split.XTrain, split.YTrain, cfg.Tracking.URI, cfg.Tracking.ExperimentName,
		trainer.WithTracker(tracker),
		trainer.WithTimeZone(cfg.Features.TimeZone),
	)
	if err != nil {
		return err
	}
	defer func() {
		status := tracking.RunStatusFinished
		if err != nil {
			status = tracking.RunStatusFailed
		}
		err = errors.CombineErrors(err, tr.Close(context.WithoutCancel(ctx), status))
	}()

	if err := tr.Run(); err != nil {
		return err
	}
	rmse, err := tr.Evaluate(ctx, split.XTest, split.YTest)
	if err != nil {
		return err
	}
	if err := tr.LogParams(ctx); err != nil {
		return err
	}
	id, err := tr.ExperimentID(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, formatRMSE(rmse))
	fmt.Fprintf(out, "experiment URL: %s\n", tracking.ExperimentURL(cfg.Tracking.URI, id))
	fmt.Fprintln(out, cfg.Tracking.ExperimentName)

	if plotPath != "" {
		pred, err := tr.Predict(split.XTest)
		if err != nil {
			return err
		}
		if err := report.Save(plotPath, values(split.YTest), values(pred)); err != nil {
			return err
		}
		logger.Info("Plot written", "path", plotPath)
	}
	if modelPath != "" {
		weights, err := tr.ExportWeights()
		if err != nil {
			return err
		}
		if err := model.SaveWeights(weights, modelPath); err != nil {
			return err
		}
		logger.Info("Model weights written", "path", modelPath)
	}
	return nil
}

func clientOptions(cfg *config.Config) []tracking.ClientOption {
	var opts []tracking.ClientOption
	if cfg.Tracking.Token != "" {
		opts = append(opts, tracking.WithToken(cfg.Tracking.Token))
	}
	if cfg.Tracking.Username != "" {
		opts = append(opts, tracking.WithBasicAuth(cfg.Tracking.Username, cfg.Tracking.Password))
	}
	return opts
}

func values(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// formatRMSE prints whole numbers with a trailing ".0" so the score always
// reads as a float.
func formatRMSE(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eNI") {
		return s
	}
	return s + ".0"
}
