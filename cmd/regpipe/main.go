// Command regpipe ingests a CSV dataset, trains the model catalog and keeps
// the best regressor under the artifacts directory. The winning R2 score is
// printed on stdout.
//
// Usage:
//
//	regpipe [-config regpipe.yaml] [-input notebook/stud.csv] [-artifacts artifacts] [-log-level info]
//	regpipe -graph | dot -Tsvg > pipeline.svg
//	regpipe -artifacts artifacts -predict new_students.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/pipeline"
	"github.com/YuminosukeSato/regpipe/pipeline/predict"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("regpipe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML configuration file (optional)")
		input      = fs.String("input", "", "input CSV, overrides input_path")
		artifacts  = fs.String("artifacts", "", "artifacts directory, overrides artifacts_dir")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error, overrides log.level")
		printGraph = fs.Bool("graph", false, "print the stage graph in DOT format and exit")
		predictCSV = fs.String("predict", "", "score this CSV with the saved artifacts instead of training")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "regpipe: unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(stderr, err)
	}
	if *input != "" {
		cfg.InputPath = *input
	}
	if *artifacts != "" {
		cfg.ArtifactsDir = *artifacts
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fail(stderr, err)
	}

	log.SetupLogger(stderr, cfg.Log.Level)

	p := pipeline.New(cfg)
	if *printGraph {
		if err := p.WriteDOT(stdout); err != nil {
			return fail(stderr, err)
		}
		return exitOK
	}

	if *predictCSV != "" {
		return runPredict(cfg.ArtifactsDir, *predictCSV, stdout, stderr)
	}

	res, err := p.Run()
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, res.Score)
	return exitOK
}

func runPredict(artifactsDir, path string, stdout, stderr io.Writer) int {
	pr, err := predict.Load(artifactsDir)
	if err != nil {
		return fail(stderr, err)
	}
	pred, err := pr.PredictCSV(path)
	if err != nil {
		return fail(stderr, err)
	}
	for _, v := range pred {
		fmt.Fprintln(stdout, v)
	}
	return exitOK
}

func fail(w io.Writer, err error) int {
	fmt.Fprintf(w, "regpipe: %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(w, "hint: %s\n", hint)
	}
	return exitFailure
}
