// Package pipeline wires the ingestion, transformation and trainer stages
// into a single run driven by one config.Config.
//
// The stages are vertices of a small dependency graph; Run executes them in
// topological order, records their durations and writes the run metrics
// next to the other artifacts.
//
//	cfg, _ := config.Load("regpipe.yaml")
//	res, err := pipeline.New(cfg).Run()
//	if err != nil { ... }
//	fmt.Println(res.Score)
package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/metrics"
	"github.com/YuminosukeSato/regpipe/pipeline/ingestion"
	"github.com/YuminosukeSato/regpipe/pipeline/trainer"
	"github.com/YuminosukeSato/regpipe/pipeline/transformation"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/telemetry"
)

// Result collects the outputs of a run.
type Result struct {
	TrainPath        string
	TestPath         string
	PreprocessorPath string
	ModelPath        string
	MetricsPath      string

	ModelName string
	Score     float64
	Params    map[string]interface{}
	Report    trainer.Report
	Metrics   metrics.RegressionReport
}

// Pipeline runs the three stages. Stage fields may be replaced before Run,
// e.g. to install a smaller model catalog.
type Pipeline struct {
	Config      config.Config
	Ingestor    *ingestion.Ingestor
	Transformer *transformation.Transformer
	Trainer     *trainer.Trainer
	Recorder    *telemetry.Recorder
	Logger      log.Logger
}

// New builds a Pipeline whose stages share one metrics recorder.
func New(cfg config.Config) *Pipeline {
	rec := telemetry.NewRecorder()
	tr := trainer.New(cfg)
	tr.Recorder = rec
	return &Pipeline{
		Config:      cfg,
		Ingestor:    ingestion.New(cfg),
		Transformer: transformation.New(cfg),
		Trainer:     tr,
		Recorder:    rec,
		Logger:      log.GetLoggerWithName("pipeline"),
	}
}

type runState struct {
	train, test *mat.Dense
	result      Result
}

type stage struct {
	name string
	run  func(*runState) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{ingestion.Stage, func(s *runState) error {
			trainPath, testPath, err := p.Ingestor.Run()
			s.result.TrainPath, s.result.TestPath = trainPath, testPath
			return err
		}},
		{transformation.Stage, func(s *runState) error {
			train, test, prePath, err := p.Transformer.Run(s.result.TrainPath, s.result.TestPath)
			s.train, s.test, s.result.PreprocessorPath = train, test, prePath
			return err
		}},
		{trainer.Stage, func(s *runState) error {
			res, err := p.Trainer.Run(s.train, s.test)
			s.result.Report = res.Report
			if err != nil {
				return err
			}
			s.result.ModelPath = res.ModelPath
			s.result.ModelName = res.Name
			s.result.Score = res.Score
			s.result.Params = res.Params
			s.result.Metrics = res.Metrics
			return nil
		}},
	}
}

// Graph returns the stage dependency graph.
func (p *Pipeline) Graph() (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles())
	stages := p.stages()
	for _, s := range stages {
		if err := g.AddVertex(s.name, graph.VertexAttribute("shape", "box")); err != nil {
			return nil, errors.Wrapf(err, "add stage %s", s.name)
		}
	}
	for i := 1; i < len(stages); i++ {
		if err := g.AddEdge(stages[i-1].name, stages[i].name); err != nil {
			return nil, errors.Wrapf(err, "link %s to %s", stages[i-1].name, stages[i].name)
		}
	}
	return g, nil
}

// Order returns the stage names in execution order.
func (p *Pipeline) Order() ([]string, error) {
	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	return graph.TopologicalSort(g)
}

// WriteDOT renders the stage graph in Graphviz DOT format.
func (p *Pipeline) WriteDOT(w io.Writer) error {
	g, err := p.Graph()
	if err != nil {
		return err
	}
	return draw.DOT(g, w, draw.GraphAttribute("rankdir", "LR"))
}

// Run executes every stage. The first failing stage ends the run; its error
// is a StageError. A partial Result is returned alongside the error, e.g.
// the model report when no candidate reached the threshold.
func (p *Pipeline) Run() (Result, error) {
	order, err := p.Order()
	if err != nil {
		return Result{}, err
	}
	byName := make(map[string]stage)
	for _, s := range p.stages() {
		byName[s.name] = s
	}

	p.Logger.Info("Pipeline started",
		log.PathKey, p.Config.InputPath,
		log.ArtifactPathKey, p.Config.ArtifactsDir,
	)

	state := &runState{}
	runErr := p.runStages(order, byName, state)

	if metricsPath, err := p.writeMetrics(); err != nil {
		p.Logger.Warn("Could not write run metrics", err)
	} else {
		state.result.MetricsPath = metricsPath
	}

	if runErr != nil {
		p.Logger.Error("Pipeline failed", runErr, log.StageKey, errors.StageOf(runErr))
		return state.result, runErr
	}
	p.Logger.Info("Pipeline finished",
		log.ModelNameKey, state.result.ModelName,
		log.R2ScoreKey, state.result.Score,
	)
	return state.result, nil
}

func (p *Pipeline) runStages(order []string, byName map[string]stage, state *runState) error {
	for _, name := range order {
		timer := telemetry.Start()
		err := byName[name].run(state)
		p.Recorder.ObserveStage(name, timer.Elapsed())
		if err != nil {
			return err
		}
		p.Logger.Info("Stage finished",
			log.StageKey, name,
			log.DurationMsKey, timer.Elapsed().Milliseconds(),
		)
	}
	return nil
}

// writeMetrics is skipped when the run never created the artifacts directory.
func (p *Pipeline) writeMetrics() (string, error) {
	if p.Recorder == nil {
		return "", nil
	}
	if _, err := os.Stat(p.Config.ArtifactsDir); err != nil {
		return "", nil
	}
	path := filepath.Join(p.Config.ArtifactsDir, config.MetricsFile)
	if err := p.Recorder.WriteFile(path); err != nil {
		return "", err
	}
	return path, nil
}
