package predict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/dataset"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/preprocessing"
	"github.com/YuminosukeSato/regpipe/sklearn/linear_model"
)

// saveArtifacts fits y = 2*reading + 10 (+5 for lunch=standard) and writes
// the preprocessor and model under a temp directory.
func saveArtifacts(t *testing.T) string {
	t.Helper()
	train, err := dataset.New(
		[]string{"lunch", "reading", "math"},
		[][]string{
			{"standard", "1", "17"},
			{"free", "2", "14"},
			{"standard", "3", "21"},
			{"free", "4", "18"},
			{"standard", "5", "25"},
		})
	require.NoError(t, err)

	pre := preprocessing.NewColumnTransformer([]string{"reading"}, []string{"lunch"})
	X, err := pre.FitTransform(train)
	require.NoError(t, err)

	y, err := train.Column("math")
	require.NoError(t, err)
	yv := make([]float64, len(y))
	for i, s := range y {
		yv[i], _ = preprocessing.ParseNumeric(s)
	}
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, model.ColumnVector(yv)))

	dir := t.TempDir()
	require.NoError(t, model.SaveModel(pre, filepath.Join(dir, config.PreprocessorFile)))
	require.NoError(t, model.SaveArtifact(&model.Artifact{Name: "Linear Regression", Score: 1, Model: lr},
		filepath.Join(dir, config.ModelFile)))
	return dir
}

func TestPredictor(t *testing.T) {
	p, err := Load(saveArtifacts(t))
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	p.Logger = logger
	assert.Equal(t, "Linear Regression", p.Artifact.Name)

	path := filepath.Join(t.TempDir(), "new.csv")
	require.NoError(t, os.WriteFile(path, []byte("reading,lunch\n10,standard\n10,free\n"), 0o600))

	pred, err := p.PredictCSV(path)
	require.NoError(t, err)
	require.Len(t, pred, 2)
	assert.InDelta(t, 35, pred[0], 1e-9)
	assert.InDelta(t, 30, pred[1], 1e-9)
	assert.True(t, logger.ContainsMessage("Predicted"))
}

func TestPredictorErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Equal(t, errors.KindSerialization, errors.KindOf(err))

	p, err := Load(saveArtifacts(t))
	require.NoError(t, err)

	f, err := dataset.New([]string{"lunch"}, [][]string{{"free"}})
	require.NoError(t, err)
	_, err = p.Predict(f)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	_, err = p.PredictCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}
