package trainer

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/report"
	"github.com/YuminosukeSato/regpipe/sklearn/linear_model"
	"github.com/YuminosukeSato/regpipe/sklearn/model_selection"
	"github.com/YuminosukeSato/regpipe/sklearn/neighbors"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
	"github.com/YuminosukeSato/regpipe/telemetry"
)

// linearArrays returns [a | b | y] with y = 3a + 2b + 1, split 30/10.
func linearArrays() (train, test *mat.Dense) {
	all := mat.NewDense(40, 3, nil)
	for i := 0; i < 40; i++ {
		a := float64(i % 7)
		b := float64((3 * i) % 11)
		all.SetRow(i, []float64{a, b, 3*a + 2*b + 1})
	}
	return mat.DenseCopyOf(all.Slice(0, 30, 0, 3)), mat.DenseCopyOf(all.Slice(30, 40, 0, 3))
}

func smallCatalog() Catalog {
	return Catalog{
		{
			Name: "Decision Tree",
			New:  func() model.Regressor { return tree.NewDecisionTreeRegressor() },
			Grid: model_selection.ParamGrid{"criterion": {"squared_error", "friedman_mse"}},
		},
		{
			Name: "Linear Regression",
			New:  func() model.Regressor { return linear_model.NewLinearRegression() },
			Grid: model_selection.ParamGrid{},
		},
		{
			Name: "K-Neighbors Regressor",
			New:  func() model.Regressor { return neighbors.NewKNeighborsRegressor() },
		},
	}
}

func newTrainer(t *testing.T, catalog Catalog) (*Trainer, *log.TestLogger) {
	t.Helper()
	cfg := config.Default()
	cfg.ArtifactsDir = filepath.Join(t.TempDir(), "artifacts")
	tr := New(cfg)
	tr.Catalog = catalog
	logger, _ := log.NewTestLogger(log.LevelDebug)
	tr.Logger = logger
	return tr, logger
}

func TestTrainerRun(t *testing.T) {
	train, test := linearArrays()
	tr, logger := newTrainer(t, smallCatalog())
	tr.Recorder = telemetry.NewRecorder()

	res, err := tr.Run(train, test)
	require.NoError(t, err)

	require.Len(t, res.Report, 3)
	assert.Equal(t, []string{"Decision Tree", "Linear Regression", "K-Neighbors Regressor"},
		[]string{res.Report[0].Name, res.Report[1].Name, res.Report[2].Name})
	assert.Equal(t, "Linear Regression", res.Name)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.InDelta(t, res.Report[res.Report.Best()].Score, res.Score, 1e-12)
	for _, e := range res.Report {
		assert.LessOrEqual(t, e.Score, res.Score+1e-12)
	}
	assert.Contains(t, []interface{}{"squared_error", "friedman_mse"}, res.Report[0].BestParams["criterion"])
	assert.Empty(t, res.Report[1].BestParams)
	assert.InDelta(t, 0, res.Metrics.MSE, 1e-9)

	assert.Equal(t, filepath.Join(tr.ArtifactsDir, config.ModelFile), res.ModelPath)
	artifact, err := LoadModel(res.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "Linear Regression", artifact.Name)
	assert.IsType(t, &linear_model.LinearRegression{}, artifact.Model)
	score, err := artifact.Model.Score(test.Slice(0, 10, 0, 2), test.Slice(0, 10, 2, 3))
	require.NoError(t, err)
	assert.InDelta(t, res.Score, score, 1e-12)

	assert.True(t, logger.ContainsMessage("Best model found"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "Linear Regression"))

	families, err := tr.Recorder.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "regpipe_candidate_test_r2" {
			found = true
			assert.Len(t, mf.GetMetric(), 3)
		}
	}
	assert.True(t, found)
}

func TestTrainerWritesReport(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, smallCatalog())

	res, err := tr.Run(train, test)
	require.NoError(t, err)

	var entries []struct {
		Name       string                 `json:"name"`
		Score      *float64               `json:"score"`
		BestParams map[string]interface{} `json:"best_params"`
	}
	require.NoError(t, report.ReadJSON(filepath.Join(tr.ArtifactsDir, config.ReportJSONFile), &entries))
	require.Len(t, entries, len(res.Report))
	for i, e := range entries {
		assert.Equal(t, res.Report[i].Name, e.Name)
		require.NotNil(t, e.Score)
		assert.InDelta(t, res.Report[i].Score, *e.Score, 1e-12)
	}

	_, err = os.Stat(filepath.Join(tr.ArtifactsDir, config.ReportPNGFile))
	assert.NoError(t, err)
}

func TestTrainerReportDisabled(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, smallCatalog())
	tr.ReportEnabled = false

	_, err := tr.Run(train, test)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(tr.ArtifactsDir, config.ReportJSONFile))
	assert.True(t, os.IsNotExist(err))
}

func TestTrainerBelowThreshold(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, smallCatalog())
	tr.Threshold = 1.5

	res, err := tr.Run(train, test)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQualityBelowThreshold))
	assert.Equal(t, errors.KindQualityBelowThreshold, errors.KindOf(err))
	assert.Len(t, res.Report, 3)

	_, statErr := os.Stat(filepath.Join(tr.ArtifactsDir, config.ModelFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrainerBelowThresholdRemovesStaleModel(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, smallCatalog())
	modelPath := filepath.Join(tr.ArtifactsDir, config.ModelFile)

	_, err := tr.Run(train, test)
	require.NoError(t, err)
	require.FileExists(t, modelPath)

	tr.Threshold = 1.5
	_, err = tr.Run(train, test)
	assert.Equal(t, errors.KindQualityBelowThreshold, errors.KindOf(err))
	assert.NoFileExists(t, modelPath)
}

func TestTrainerTiesKeepFirst(t *testing.T) {
	train, test := linearArrays()
	lr := func() model.Regressor { return linear_model.NewLinearRegression() }
	tr, _ := newTrainer(t, Catalog{
		{Name: "first", New: lr},
		{Name: "second", New: lr},
	})

	res, err := tr.Run(train, test)
	require.NoError(t, err)
	assert.Equal(t, res.Report[0].Score, res.Report[1].Score)
	assert.Equal(t, "first", res.Name)
}

func TestTrainerFitFailure(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, Catalog{{
		Name: "K-Neighbors Regressor",
		New:  func() model.Regressor { return neighbors.NewKNeighborsRegressor() },
		Grid: model_selection.ParamGrid{"n_neighbors": {100}},
	}})

	_, err := tr.Run(train, test)
	require.Error(t, err)
	assert.Equal(t, errors.KindFitFailure, errors.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "K-Neighbors Regressor"))
}

func TestTrainerInvalidInput(t *testing.T) {
	train, test := linearArrays()
	tr, _ := newTrainer(t, smallCatalog())

	_, err := tr.Run(mat.NewDense(3, 1, []float64{1, 2, 3}), test)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	_, err = tr.Run(train, mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	tr.Catalog = Catalog{}
	_, err = tr.Run(train, test)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestReportBest(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"max", []float64{0.1, 0.9, 0.5}, 1},
		{"tie keeps first", []float64{0.7, 0.9, 0.9}, 1},
		{"nan ignored", []float64{nan, 0.2, nan}, 1},
		{"all nan", []float64{nan, nan}, 0},
		{"negative", []float64{-3, -1, -2}, 1},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Report
			for i, s := range tt.scores {
				r = append(r, ReportEntry{Name: string(rune('a' + i)), Score: s})
			}
			assert.Equal(t, tt.want, r.Best())
		})
	}
}

func TestReportEntryJSON(t *testing.T) {
	b, err := ReportEntry{Name: "x", Score: math.NaN()}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","score":null,"best_params":{}}`, string(b))

	b, err = ReportEntry{Name: "y", Score: 0.5, BestParams: map[string]interface{}{"n_estimators": 8}}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"y","score":0.5,"best_params":{"n_estimators":8}}`, string(b))
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog(42)
	assert.Equal(t, []string{
		"Random Forest", "Decision Tree", "Gradient Boosting", "Linear Regression",
		"K-Neighbors Regressor", "XGBRegressor", "CatBoosting Regressor", "AdaBoost Regressor",
	}, c.Names())
	require.NoError(t, c.Validate())

	sizes := map[string]int{
		"Random Forest":         6,
		"Decision Tree":         4,
		"Gradient Boosting":     144,
		"Linear Regression":     1,
		"K-Neighbors Regressor": 1,
		"XGBRegressor":          24,
		"CatBoosting Regressor": 27,
		"AdaBoost Regressor":    24,
	}
	for _, e := range c {
		assert.Equal(t, sizes[e.Name], e.Grid.Size(), e.Name)
		a, b := e.New(), e.New()
		assert.NotSame(t, a, b, "constructors must return fresh estimators")
		assert.False(t, a.IsFitted())
	}

	params := c[0].New().GetParams()
	assert.Equal(t, 42, params["random_state"])
	assert.Equal(t, 7, DefaultCatalog(7)[0].New().GetParams()["random_state"])
}

func TestCatalogValidate(t *testing.T) {
	lr := func() model.Regressor { return linear_model.NewLinearRegression() }
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{"empty", Catalog{}},
		{"no name", Catalog{{New: lr}}},
		{"duplicate", Catalog{{Name: "a", New: lr}, {Name: "a", New: lr}}},
		{"no constructor", Catalog{{Name: "a"}}},
		{"empty values", Catalog{{Name: "a", New: lr, Grid: model_selection.ParamGrid{"fit_intercept": {}}}}},
		{"unknown param", Catalog{{Name: "a", New: lr, Grid: model_selection.ParamGrid{"max_depth": {3}}}}},
		{"bad value", Catalog{{Name: "a", New: lr, Grid: model_selection.ParamGrid{"fit_intercept": {"yes"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			require.Error(t, err)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}

	assert.NoError(t, Catalog{{Name: "a", New: lr, Grid: model_selection.ParamGrid{"fit_intercept": {true, false}}}}.Validate())
}
