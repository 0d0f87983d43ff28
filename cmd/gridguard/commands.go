package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"gridguard/app"
	"gridguard/config"
	"gridguard/db"
	ghttp "gridguard/http"
	"gridguard/ml"
	"gridguard/pipeline"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction API and dashboard",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port, overrides the configuration",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	if port := c.Int("port"); port > 0 {
		cfg.HTTP.Port = port
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// A missing model disables inference but not the process.
	_ = a.LoadModel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go a.Hub.Run(ctx)

	server := ghttp.NewServer(a)
	errs := make(chan error, 1)
	go func() { errs <- server.Start() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	log.Infow("shutting down")
	return server.Stop(context.Background())
}

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Fit a model on a labelled survey table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Training CSV",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Model artifact path, defaults to model.path",
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "Target column, overrides training.target",
			},
			&cli.StringFlag{
				Name:  "classifier",
				Usage: "random_forest or decision_tree",
			},
		},
		Action: runTrain,
	}
}

func runTrain(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	if target := c.String("target"); target != "" {
		cfg.Training.Target = target
	}
	if classifier := c.String("classifier"); classifier != "" {
		cfg.Training.Classifier = classifier
	}
	output := c.String("output")
	if output == "" {
		output = cfg.Model.Path
	}

	table, err := readTable(c.String("input"))
	if err != nil {
		return err
	}
	result, err := ml.Train(table, trainConfig(cfg.Training), time.Now())
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	for _, warning := range result.Warnings {
		log.Warnw(warning)
	}
	if err := ml.SaveModel(output, result.Model); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	metrics := result.Model.Metrics()
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer store.Close()
		err = store.SaveTrainingLog(db.TrainingLog{
			ModelName:  result.Model.Name(),
			ModelPath:  output,
			Accuracy:   metrics.Accuracy,
			Precision:  metrics.Precision,
			Recall:     metrics.Recall,
			TrainedAt:  result.Model.CreatedAt(),
			DataPoints: metrics.TrainRows + metrics.TestRows,
		})
		if err != nil {
			log.Warnw("failed to record training run", "error", err)
		}
	}

	log.Infow("model trained",
		"classifier", result.Model.Name(),
		"features", result.Model.Schema().Len(),
		"train_rows", metrics.TrainRows,
		"test_rows", metrics.TestRows,
		"accuracy", metrics.Accuracy,
		"precision", metrics.Precision,
		"recall", metrics.Recall,
	)
	fmt.Printf("model saved to %s (accuracy %s%%, precision %s%%, recall %s%%)\n",
		output, ml.Percent(metrics.Accuracy), ml.Percent(metrics.Precision), ml.Percent(metrics.Recall))
	return nil
}

// trainConfig maps the training section onto trainer settings.
func trainConfig(t config.TrainingConfig) ml.TrainConfig {
	tc := ml.DefaultTrainConfig()
	if t.Classifier != "" {
		tc.Classifier = t.Classifier
	}
	if t.Trees > 0 {
		tc.Forest.Trees = t.Trees
	}
	tc.Forest.MaxDepth = t.MaxDepth
	if t.MinLeaf > 0 {
		tc.Forest.MinSamplesLeaf = t.MinLeaf
	}
	if t.TestRatio > 0 {
		tc.TestRatio = t.TestRatio
	}
	tc.Seed = t.Seed
	tc.Forest.Seed = t.Seed
	tc.Options = ml.TrainingOptions{
		Target:        t.Target,
		PositiveLabel: t.PositiveLabel,
		Features:      t.Features,
		Exclude:       t.Exclude,
		Defaults:      t.Defaults,
		Aliases:       t.Aliases,
	}
	if tc.Options.Target == "" {
		tc.Options.Target = ml.DefaultTarget
	}
	return tc
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Annotate a survey table with predictions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "CSV to score",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   ghttp.DownloadFilename,
				Usage:   "Annotated CSV path",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model artifact, defaults to model.path",
			},
		},
		Action: runScore,
	}
}

func runScore(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	path := c.String("model")
	if path == "" {
		path = cfg.Model.Path
	}

	model, err := ml.LoadModel(path)
	if err != nil {
		return err
	}
	table, err := readTable(c.String("input"))
	if err != nil {
		return err
	}
	result, err := ml.ScoreTable(model, table)
	if err != nil {
		return err
	}
	for _, warning := range result.Report.Warnings() {
		log.Warnw(warning)
	}
	if stats := result.Report.Stats(); len(stats.Issues) > 0 {
		log.Infow("input quality", "rows", stats.TotalProcessed, "corrected", stats.Corrected, "issues", stats.Issues)
	}

	out, err := os.Create(c.String("output"))
	if err != nil {
		return err
	}
	if err := table.Write(out); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", c.String("output"), err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	classes := make([]int, 0, len(result.ClassCounts))
	for class := range result.ClassCounts {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	for _, class := range classes {
		label := fmt.Sprint(class)
		if model.Target().Categorical() {
			label = model.Target().Decode(class)
		}
		fmt.Printf("%s: %d\n", label, result.ClassCounts[class])
	}
	fmt.Printf("%d healthy, %d expected failures, written to %s\n", result.Healthy, result.Failures, c.String("output"))
	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the feature schema of a model artifact",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model artifact, defaults to model.path",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			path := c.String("model")
			if path == "" {
				path = cfg.Model.Path
			}
			model, err := ml.LoadModel(path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Classifier string                  `json:"classifier"`
				Features   pipeline.FeatureSchema  `json:"schema"`
				Target     pipeline.TargetEncoding `json:"target"`
				Metrics    ml.Metrics              `json:"metrics"`
			}{model.Name(), model.Schema(), model.Target(), model.Metrics()})
		},
	}
}

func readTable(path string) (*pipeline.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := pipeline.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return table, nil
}
