// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/relevance"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/corpus"
	"github.com/poiesic/relevance/cotrain"
	"github.com/poiesic/relevance/model"
	"github.com/poiesic/relevance/train"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "relevance",
		Usage: "Consensus self-training for a binary text-relevance classifier",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "train",
				Usage:  "Train a classifier from a labeled and an unlabeled corpus",
				Action: trainCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "labeled",
						Usage:    "Path to the labeled corpus CSV",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "unlabeled",
						Usage: "Path to the unlabeled corpus CSV",
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML configuration file",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to the BadgerDB run log directory (in memory if empty)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the trained classifier",
						Value:   "final_model.bin",
					},
					&cli.StringFlag{
						Name:  "architecture",
						Usage: "Classifier architecture (" + strings.Join(model.Architectures(), ", ") + ")",
						Value: model.ArchHashedBOW,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Random seed for splitting, initialization and shuffling",
						Value: 42,
					},
					&cli.IntFlag{
						Name:  "epochs-phase1",
						Usage: "Training epochs for classifiers A and B",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "epochs-phase3",
						Usage: "Training epochs for classifier C",
						Value: 3,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of examples per optimizer step",
						Value: 16,
					},
					&cli.Float64Flag{
						Name:  "learning-rate",
						Usage: "AdamW learning rate",
						Value: 0.01,
					},
					&cli.BoolFlag{
						Name:  "reduced-precision",
						Usage: "Compute activations in float32",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "text-column",
						Usage: "Name of the text column",
						Value: corpus.DefaultTextColumn,
					},
					&cli.StringFlag{
						Name:  "label-column",
						Usage: "Name of the label column",
						Value: corpus.DefaultLabelColumn,
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show per-epoch progress on stderr",
					},
				},
			},
			{
				Name:   "predict",
				Usage:  "Print relevance decisions of a trained classifier",
				Action: predictCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Aliases:  []string{"m"},
						Usage:    "Path to the trained classifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "CSV of texts to classify",
					},
					&cli.StringSliceFlag{
						Name:  "text",
						Usage: "Text to classify (repeatable)",
					},
					&cli.StringFlag{
						Name:  "text-column",
						Usage: "Name of the text column in --input",
						Value: corpus.DefaultTextColumn,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List recorded training runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to the BadgerDB run log directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show the epoch log of one run",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file, if any, then applies flags the user set.
func loadConfig(c *cli.Context) (*cotrain.Config, error) {
	cfg := cotrain.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := cotrain.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("architecture") {
		cotrain.WithArchitecture(c.String("architecture"))(cfg)
	}
	if c.IsSet("output") {
		cfg.OutputPath = c.String("output")
	}
	if c.IsSet("seed") {
		cfg.RandomSeed = c.Uint64("seed")
	}
	if c.IsSet("epochs-phase1") {
		cfg.EpochsPhase1 = c.Int("epochs-phase1")
	}
	if c.IsSet("epochs-phase3") {
		cfg.EpochsPhase3 = c.Int("epochs-phase3")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("learning-rate") {
		cfg.LearningRate = c.Float64("learning-rate")
	}
	if c.IsSet("reduced-precision") {
		cfg.UseReducedPrecision = c.Bool("reduced-precision")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trainCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	columns := []corpus.Option{
		corpus.WithTextColumn(c.String("text-column")),
		corpus.WithLabelColumn(c.String("label-column")),
	}
	labeled, err := corpus.LoadLabeled(c.String("labeled"), columns...)
	if err != nil {
		return err
	}
	unlabeled, err := loadUnlabeled(c.String("unlabeled"), columns...)
	if err != nil {
		return err
	}

	ws, err := relevance.OpenWorkspace(c.String("db"), relevance.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	var opts []cotrain.Option
	if c.Bool("progress") {
		opts = append(opts, cotrain.WithProgress(os.Stderr))
	}
	trainer, err := ws.NewTrainer(labeled, unlabeled, opts...)
	if err != nil {
		return err
	}
	defer trainer.Release()

	run, err := trainer.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "run %s: test loss %.4f, test accuracy %.4f (%d/%d), pseudo-labeled %d/%d\n",
		run.ID, run.Test.Loss, run.Test.Accuracy, run.Test.Correct, run.Test.Total,
		run.PseudoLabeled, run.UnlabeledTotal)
	fmt.Fprintf(c.App.Writer, "classifier saved to %s (blake2b-256 %s)\n", run.ArtifactPath, run.Checksum)
	return nil
}

func loadUnlabeled(path string, opts ...corpus.Option) ([]core.UnlabeledExample, error) {
	if path == "" {
		return nil, nil
	}
	return corpus.LoadUnlabeled(path, opts...)
}

func predictCommand(c *cli.Context) error {
	ctx := context.Background()

	texts := c.StringSlice("text")
	if path := c.String("input"); path != "" {
		examples, err := corpus.LoadUnlabeled(path, corpus.WithTextColumn(c.String("text-column")))
		if err != nil {
			return err
		}
		for _, ex := range examples {
			texts = append(texts, ex.Text)
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("nothing to classify: pass --text or --input")
	}

	cfg := cotrain.DefaultConfig()
	cfg.Embedding.EmbeddingHost = c.String("embedding-host")
	ws, err := relevance.OpenWorkspace("", relevance.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer ws.Close()

	classifier, err := ws.LoadClassifier(c.String("model"))
	if err != nil {
		return err
	}

	loop, err := train.NewLoop()
	if err != nil {
		return err
	}
	defer loop.Release()

	predictions, err := loop.Predict(ctx, classifier, texts)
	if err != nil {
		return err
	}
	return writePredictions(c.App.Writer, texts, predictions)
}

func writePredictions(w io.Writer, texts []string, predictions []train.Prediction) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RELEVANT\tLOGIT\tTEXT")
	for i, p := range predictions {
		fmt.Fprintf(tw, "%t\t%.4f\t%s\n", p.Label, p.Logit, texts[i])
	}
	return tw.Flush()
}

func runsCommand(c *cli.Context) error {
	ctx := context.Background()

	ws, err := relevance.OpenWorkspace(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if id := c.String("run"); id != "" {
		epochs, err := ws.RunRepository().ListEpochs(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "PHASE\tEPOCH\tCLASSIFIER\tTRAIN LOSS\tTRAIN ACC\tVAL LOSS\tVAL ACC\tSKIPPED")
		for _, e := range epochs {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\n",
				e.Phase, e.Epoch, e.Classifier, e.Train.Loss, e.Train.Accuracy,
				e.Val.Loss, e.Val.Accuracy, e.Train.SkippedBatches)
		}
		return nil
	}

	runs, err := ws.RunRepository().ListRuns(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTATE\tARCH\tTEST ACC\tPSEUDO")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.4f\t%d/%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status, r.State, r.Architecture,
			r.Test.Accuracy, r.PseudoLabeled, r.UnlabeledTotal)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
