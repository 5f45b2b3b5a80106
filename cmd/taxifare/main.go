// Command taxifare trains the taxi fare model and records the run on an
// experiment tracking server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/taxifare/config"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"source":       "data.source",
	"nrows":        "data.nrows",
	"tracking-uri": "tracking.uri",
	"experiment":   "tracking.experiment_name",
	"test-size":    "split.test_size",
	"seed":         "split.seed",
	"timezone":     "features.timezone",
	"log-level":    "log.level",
	"timeout":      "timeout",
}

func newRootCommand() *cobra.Command {
	trainCmd := newTrainCommand()
	root := &cobra.Command{
		Use:           "taxifare",
		Short:         "Train the taxi fare linear model and log it to MLflow.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          trainCmd.RunE,
	}
	addTrainFlags(root)
	root.AddCommand(trainCmd)
	return root
}

func addTrainFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "configuration file path")
	flags.String("plot", "", "write a predicted-vs-actual chart (png, svg, pdf...)")
	flags.String("save-model", "", "write the fitted weights as JSON")

	flags.String("source", config.DefaultDataSource, "training CSV: local path, http(s):// or s3:// URL")
	flags.Int("nrows", config.DefaultNRows, "rows to read, 0 for all")
	flags.String("tracking-uri", config.DefaultTrackingURI, "tracking server base URL")
	flags.String("experiment", config.DefaultExperimentName, "experiment name")
	flags.Float64("test-size", 0.25, "held-out fraction")
	flags.Int64("seed", -1, "split seed, negative for a random split")
	flags.String("timezone", config.DefaultTimeZone, "zone for time features")
	flags.String("log-level", config.DefaultLogLevel, "debug, info, warn or error")
	flags.Duration("timeout", config.DefaultTimeout, "overall deadline")
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.GetLogger().Error("taxifare failed", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
