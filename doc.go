// Package taxifare trains a linear model that predicts New York taxi fares
// from pickup and dropoff coordinates and the pickup time, evaluates it with
// RMSE on a held-out split and records the run on an MLflow-compatible
// tracking server.
//
// The numerical building blocks follow a scikit-learn-like API on top of
// gonum: transformers and estimators share the Fit/Transform/Predict
// contracts of core/model and compose through pipeline.Pipeline.
//
// # Installation
//
//	go install github.com/YuminosukeSato/taxifare/cmd/taxifare@latest
//
// # Quick Start
//
// Train on the first 10,000 rows of the public dataset and log to the
// default tracking server:
//
//	taxifare train --nrows 10000
//
// The command prints the test RMSE, the experiment URL and the experiment
// name:
//
//	3.8712459843
//	experiment URL: https://mlflow.lewagon.ai/#/experiments/1234
//	[DE] [Berlin] [kelvinpurdom] TaxiFareModel version 2
//
// Every setting can also come from a config file (--config) or a TAXIFARE_*
// environment variable, e.g. TAXIFARE_TRACKING_URI.
//
// # Library use
//
//	rides, err := dataset.Load(ctx, "train.csv", 0)
//	if err != nil {
//	    return err
//	}
//	rides = dataset.Clean(rides)
//	split, err := dataset.TrainTestSplit(dataset.Features(rides), dataset.Target(rides), 0.25, nil)
//	if err != nil {
//	    return err
//	}
//	tr, err := trainer.New(split.XTrain, split.YTrain, uri, "my experiment")
//	if err != nil {
//	    return err
//	}
//	if err := tr.Run(); err != nil {
//	    return err
//	}
//	rmse, err := tr.Evaluate(ctx, split.XTest, split.YTest)
//
// # Packages
//
//   - dataset: CSV loading (local, http, s3), cleaning, features and split
//   - preprocessing: distance, time features, scaling, one-hot, column transformer
//   - pipeline: named stages with an unfit/fit state machine
//   - linear: minimum-norm least squares LinearRegression
//   - metrics: RMSE, MSE, MAE, R²
//   - tracking: MLflow REST client and memoized run logger
//   - trainer: builds, fits and evaluates the fare pipeline
//   - report: predicted-vs-actual charts
//   - config: viper-backed settings
//   - core/model: Core interfaces and base types
//   - core/parallel: Parallel processing utilities
//
// # Performance
//
// Row loops over large matrices are split across CPU cores:
//
//   - Automatic parallelization for datasets with >1000 rows
//   - CPU core detection and optimal worker allocation
package taxifare
