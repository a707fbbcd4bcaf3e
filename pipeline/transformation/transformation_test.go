package transformation

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/dataset"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
)

const (
	trainCSV = `gender,reading_score,math_score
female,70,60
male,80,75
female,NA,65
male,90,85
`
	testCSV = `gender,reading_score,math_score
female,85,70
other,75,72
`
)

func writeSplits(t *testing.T, train, test string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	trainPath := filepath.Join(dir, config.TrainFile)
	testPath := filepath.Join(dir, config.TestFile)
	require.NoError(t, os.WriteFile(trainPath, []byte(train), 0o600))
	require.NoError(t, os.WriteFile(testPath, []byte(test), 0o600))
	return trainPath, testPath
}

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	cfg := config.Default()
	cfg.ArtifactsDir = filepath.Join(t.TempDir(), "artifacts")
	tr := New(cfg)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	tr.Logger = logger
	return tr
}

func TestTransformerRun(t *testing.T) {
	trainPath, testPath := writeSplits(t, trainCSV, testCSV)
	tr := newTransformer(t)

	train, test, prePath, err := tr.Run(trainPath, testPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tr.ArtifactsDir, config.PreprocessorFile), prePath)

	// reading_score | gender_female | gender_male | math_score
	r, c := train.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	r, c = test.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)

	assert.Equal(t, []float64{60, 75, 65, 85}, mat.Col(nil, 3, train))
	assert.Equal(t, []float64{70, 72}, mat.Col(nil, 3, test))

	// NA is imputed with the median 80, then standardised with mean 80 and std sqrt(50).
	assert.InDelta(t, -math.Sqrt2, train.At(0, 0), 1e-12)
	assert.InDelta(t, 0, train.At(2, 0), 1e-12)
	assert.InDelta(t, 0.5*math.Sqrt2, test.At(0, 0), 1e-12)

	// one-hot columns are scaled by their std 0.5 without centering
	assert.InDelta(t, 2, train.At(0, 1), 1e-12)
	assert.InDelta(t, 0, train.At(0, 2), 1e-12)
	// unseen category encodes as all zeros
	assert.Equal(t, 0.0, test.At(1, 1))
	assert.Equal(t, 0.0, test.At(1, 2))

	pre, err := LoadPreprocessor(prePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"reading_score", "gender_female", "gender_male"}, pre.FeatureNames())

	testFrame, err := dataset.ReadCSV(testPath)
	require.NoError(t, err)
	features, err := testFrame.Drop("math_score")
	require.NoError(t, err)
	again, err := pre.Transform(features)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(again, test.Slice(0, 2, 0, 3), 1e-12))
}

func TestTransformerMinMaxScaler(t *testing.T) {
	trainPath, testPath := writeSplits(t, trainCSV, testCSV)
	tr := newTransformer(t)
	tr.NumericScaler = "minmax"

	train, _, _, err := tr.Run(trainPath, testPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1}, mat.Col(nil, 0, train))
}

func TestClassifyColumns(t *testing.T) {
	f, err := dataset.New(
		[]string{"a", "b", "c", "d"},
		[][]string{
			{"1", "x", "", "2.5"},
			{"NaN", "y", "null", "-1e3"},
			{"3", "4", "NA", "0"},
		})
	require.NoError(t, err)

	numeric, categorical := ClassifyColumns(f)
	assert.Equal(t, []string{"a", "c", "d"}, numeric)
	assert.Equal(t, []string{"b"}, categorical)
}

func TestTransformerErrors(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		trainPath, testPath := writeSplits(t, "a,b\n1,2\n3,4\n", "a,b\n5,6\n")
		_, _, _, err := newTransformer(t).Run(trainPath, testPath)
		require.Error(t, err)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})

	t.Run("non numeric target", func(t *testing.T) {
		trainPath, testPath := writeSplits(t, "a,math_score\n1,2\n3,high\n", "a,math_score\n5,6\n")
		_, _, _, err := newTransformer(t).Run(trainPath, testPath)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
	})

	t.Run("missing target value", func(t *testing.T) {
		trainPath, testPath := writeSplits(t, "a,math_score\n1,2\n3,NA\n", "a,math_score\n5,6\n")
		_, _, _, err := newTransformer(t).Run(trainPath, testPath)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
	})

	t.Run("no features", func(t *testing.T) {
		trainPath, testPath := writeSplits(t, "math_score\n1\n2\n", "math_score\n3\n")
		_, _, _, err := newTransformer(t).Run(trainPath, testPath)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
	})

	t.Run("missing split file", func(t *testing.T) {
		trainPath, _ := writeSplits(t, trainCSV, testCSV)
		_, _, _, err := newTransformer(t).Run(trainPath, filepath.Join(t.TempDir(), "nope.csv"))
		assert.Equal(t, errors.KindInputNotFound, errors.KindOf(err))
	})

	t.Run("text in numeric test column", func(t *testing.T) {
		trainPath, testPath := writeSplits(t, trainCSV, "gender,reading_score,math_score\nmale,high,70\n")
		tr := newTransformer(t)
		_, _, _, err := tr.Run(trainPath, testPath)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
		_, statErr := os.Stat(filepath.Join(tr.ArtifactsDir, config.PreprocessorFile))
		assert.True(t, os.IsNotExist(statErr))
	})
}
