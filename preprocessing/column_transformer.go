package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// ColumnSource gives column-wise access to raw string cells.
// dataset.Frame implements it.
type ColumnSource interface {
	Column(name string) ([]string, error)
	Len() int
}

// ColumnTransformer applies a numeric pipeline
// (SimpleImputer(median) → scaler) and a categorical pipeline
// (StringImputer(most_frequent) → OneHotEncoder → StandardScaler(with_mean=false))
// and concatenates the results as [numeric | one-hot].
type ColumnTransformer struct {
	NumericColumns     []string
	CategoricalColumns []string

	NumericImputer *SimpleImputer
	NumericScaler  model.InverseTransformer

	CategoricalImputer *StringImputer
	Encoder            *OneHotEncoder
	CategoricalScaler  *StandardScaler

	Fitted bool
}

// ColumnTransformerOption configures a ColumnTransformer.
type ColumnTransformerOption func(*ColumnTransformer)

// WithNumericScaler replaces the default StandardScaler of the numeric pipeline.
func WithNumericScaler(s model.InverseTransformer) ColumnTransformerOption {
	return func(ct *ColumnTransformer) {
		ct.NumericScaler = s
	}
}

// NewColumnTransformer builds the preprocessor for the given column split.
func NewColumnTransformer(numeric, categorical []string, opts ...ColumnTransformerOption) *ColumnTransformer {
	ct := &ColumnTransformer{
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
		NumericImputer:     NewSimpleImputer(StrategyMedian),
		NumericScaler:      NewStandardScalerDefault(),
		CategoricalImputer: NewStringImputer(StrategyMostFrequent),
		Encoder:            NewOneHotEncoder(),
		CategoricalScaler:  NewStandardScaler(false, true),
	}
	for _, opt := range opts {
		opt(ct)
	}
	return ct
}

// Fit learns every step from src.
func (ct *ColumnTransformer) Fit(src ColumnSource) error {
	_, err := ct.fitTransform(src, true)
	return err
}

// FitTransform fits on src and returns its transformed features.
func (ct *ColumnTransformer) FitTransform(src ColumnSource) (*mat.Dense, error) {
	return ct.fitTransform(src, true)
}

// Transform applies the fitted pipelines to src.
func (ct *ColumnTransformer) Transform(src ColumnSource) (*mat.Dense, error) {
	if !ct.Fitted {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	return ct.fitTransform(src, false)
}

func (ct *ColumnTransformer) fitTransform(src ColumnSource, fit bool) (*mat.Dense, error) {
	if len(ct.NumericColumns)+len(ct.CategoricalColumns) == 0 {
		return nil, errors.NewValueError("ColumnTransformer", "no feature columns")
	}
	if src.Len() == 0 {
		return nil, errors.NewModelError("ColumnTransformer", "empty data", errors.ErrEmptyData)
	}

	var blocks []mat.Matrix

	if len(ct.NumericColumns) > 0 {
		raw, err := numericMatrix(src, ct.NumericColumns)
		if err != nil {
			return nil, err
		}
		block, err := ct.numeric(raw, fit)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if len(ct.CategoricalColumns) > 0 {
		cols := make([][]string, len(ct.CategoricalColumns))
		for j, name := range ct.CategoricalColumns {
			col, err := src.Column(name)
			if err != nil {
				return nil, err
			}
			cols[j] = col
		}
		block, err := ct.categorical(cols, fit)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if fit {
		ct.Fitted = true
	}
	return hstack(blocks), nil
}

func (ct *ColumnTransformer) numeric(raw *mat.Dense, fit bool) (mat.Matrix, error) {
	if fit {
		imputed, err := ct.NumericImputer.FitTransform(raw)
		if err != nil {
			return nil, err
		}
		return ct.NumericScaler.FitTransform(imputed)
	}
	imputed, err := ct.NumericImputer.Transform(raw)
	if err != nil {
		return nil, err
	}
	return ct.NumericScaler.Transform(imputed)
}

func (ct *ColumnTransformer) categorical(cols [][]string, fit bool) (mat.Matrix, error) {
	if fit {
		if err := ct.CategoricalImputer.Fit(cols); err != nil {
			return nil, err
		}
	}
	imputed, err := ct.CategoricalImputer.Transform(cols)
	if err != nil {
		return nil, err
	}
	if fit {
		if err := ct.Encoder.Fit(imputed); err != nil {
			return nil, err
		}
	}
	encoded, err := ct.Encoder.Transform(imputed)
	if err != nil {
		return nil, err
	}
	if fit {
		return ct.CategoricalScaler.FitTransform(encoded)
	}
	return ct.CategoricalScaler.Transform(encoded)
}

// FeatureNames returns the output column names in matrix order.
func (ct *ColumnTransformer) FeatureNames() []string {
	names := append([]string(nil), ct.NumericColumns...)
	return append(names, ct.Encoder.FeatureNames(ct.CategoricalColumns)...)
}

// NFeaturesOut is the width of the transformed matrix.
func (ct *ColumnTransformer) NFeaturesOut() int {
	return len(ct.NumericColumns) + ct.Encoder.NFeaturesOut()
}

func numericMatrix(src ColumnSource, names []string) (*mat.Dense, error) {
	out := mat.NewDense(src.Len(), len(names), nil)
	for j, name := range names {
		col, err := src.Column(name)
		if err != nil {
			return nil, err
		}
		for i, cell := range col {
			v, ok := ParseNumeric(cell)
			if !ok {
				return nil, errors.NewValueError("ColumnTransformer",
					"column "+name+" has non-numeric value "+cell)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

func hstack(blocks []mat.Matrix) *mat.Dense {
	if len(blocks) == 1 {
		return mat.DenseCopyOf(blocks[0])
	}
	rows, _ := blocks[0].Dims()
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out
}
