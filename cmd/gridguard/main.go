// gridguard predicts distribution transformer failures from tabular survey data.
//
// Usage:
//
//	gridguard serve --config config.yaml
//	gridguard train --input survey.csv --output transformer_failure_model.json
//	gridguard score --input survey.csv --output predictions.csv
//	gridguard schema
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gridguard/config"
	"gridguard/logging"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "gridguard",
		Usage:   "Transformer failure prediction service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"GRIDGUARD_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			trainCommand(),
			scoreCommand(),
			schemaCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command shares.
func setup(c *cli.Context) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
