// Package model implements the per-variable regression used by the forecaster.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

const (
	// ridgeAlpha scales the L2 penalty with the number of rows. It only has
	// to keep the normal equations positive definite when columns are
	// constant or collinear.
	ridgeAlpha = 1e-6

	// MinRowsPerFeature is the training-set size threshold: Fit requires at
	// least this many rows per feature column.
	MinRowsPerFeature = 2
)

// Linear is a ridge-regularised linear regression over min-max scaled inputs.
// The scaling parameters are captured by Fit and reused by every Predict.
// A Linear is not safe for concurrent Fit calls.
type Linear struct {
	fitted    bool
	mins      []float64
	maxs      []float64
	coef      []float64
	intercept float64
	rows      int
}

// New returns an unfitted model.
func New() *Linear {
	return &Linear{}
}

// Fitted reports whether Fit has succeeded.
func (m *Linear) Fitted() bool {
	return m.fitted
}

// Rows returns the number of rows the model was fitted on.
func (m *Linear) Rows() int {
	return m.rows
}

// Ranges returns copies of the per-column minimum and maximum seen during Fit.
func (m *Linear) Ranges() (mins, maxs []float64, err error) {
	if !m.fitted {
		return nil, nil, domain.ErrModelNotFitted
	}

	return append([]float64(nil), m.mins...), append([]float64(nil), m.maxs...), nil
}

// Coefficients returns the intercept and a copy of the per-column weights in
// scaled space.
func (m *Linear) Coefficients() (float64, []float64, error) {
	if !m.fitted {
		return 0, nil, domain.ErrModelNotFitted
	}

	return m.intercept, append([]float64(nil), m.coef...), nil
}

// Fit trains the model on x (rows of equal length) and y. It returns
// domain.ErrEmptyTrainingSet when there are fewer than MinRowsPerFeature
// rows per column.
func (m *Linear) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: no rows", domain.ErrEmptyTrainingSet)
	}

	if len(x) != len(y) {
		return fmt.Errorf("model: %d rows but %d targets", len(x), len(y))
	}

	n, p := len(x), len(x[0])
	if p == 0 {
		return fmt.Errorf("model: rows have no columns")
	}

	if n < MinRowsPerFeature*p {
		return fmt.Errorf("%w: %d rows for %d features, need %d",
			domain.ErrEmptyTrainingSet, n, p, MinRowsPerFeature*p)
	}

	mins := make([]float64, p)
	maxs := make([]float64, p)
	copy(mins, x[0])
	copy(maxs, x[0])

	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("model: row %d has %d columns, want %d", i, len(row), p)
		}

		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("model: non-finite value at row %d column %d", i, j)
			}

			mins[j] = math.Min(mins[j], v)
			maxs[j] = math.Max(maxs[j], v)
		}
	}

	// scaled and centred design matrix
	zMean := make([]float64, p)
	z := mat.NewDense(n, p, nil)

	for i, row := range x {
		for j, v := range row {
			s := scale(v, mins[j], maxs[j])
			z.Set(i, j, s)
			zMean[j] += s
		}
	}

	var yMean float64
	for _, v := range y {
		yMean += v
	}

	yMean /= float64(n)

	for j := range zMean {
		zMean[j] /= float64(n)
	}

	yc := mat.NewVecDense(n, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			z.Set(i, j, z.At(i, j)-zMean[j])
		}

		yc.SetVec(i, y[i]-yMean)
	}

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, z.T())

	lambda := ridgeAlpha * float64(n)
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(z.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("model: normal equations are not positive definite")
	}

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("model: solve normal equations: %w", err)
		}
	}

	coef := make([]float64, p)
	intercept := yMean

	for j := range coef {
		coef[j] = beta.AtVec(j)
		intercept -= coef[j] * zMean[j]
	}

	m.mins, m.maxs = mins, maxs
	m.coef, m.intercept = coef, intercept
	m.rows = n
	m.fitted = true

	return nil
}

// Normalize scales x with the ranges captured by Fit, clamping each column
// to [0,1].
func (m *Linear) Normalize(x []float64) ([]float64, error) {
	if !m.fitted {
		return nil, domain.ErrModelNotFitted
	}

	if len(x) != len(m.coef) {
		return nil, fmt.Errorf("model: got %d features, fitted on %d", len(x), len(m.coef))
	}

	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = clamp01(scale(v, m.mins[j], m.maxs[j]))
	}

	return out, nil
}

// Predict returns the model output for one feature vector.
func (m *Linear) Predict(x []float64) (float64, error) {
	z, err := m.Normalize(x)
	if err != nil {
		return 0, err
	}

	y := m.intercept
	for j, v := range z {
		y += m.coef[j] * v
	}

	return y, nil
}

// scale maps v into [0,1] relative to [lo,hi]; a constant column maps to 0.
func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}

	return (v - lo) / (hi - lo)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
