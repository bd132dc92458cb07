// internal/quant/regression.go
//
// Ordinary least squares fit delegated to gonum, plus the fit-quality
// summary the browsing pages surface (R², MSE, MAE).

package quant

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Fit is the result of a single-predictor OLS regression y = Alpha + Beta*x.
type Fit struct {
	Alpha float64 `json:"alpha"` // intercept
	Beta  float64 `json:"beta"`  // slope
	R2    float64 `json:"r2"`
	MSE   float64 `json:"mse"`
	MAE   float64 `json:"mae"`
	N     int     `json:"n"` // observations used
}

// ErrTooFewPoints is returned when the series is too short to fit.
var ErrTooFewPoints = errors.New("regression needs at least two points")

// FitOLS fits y on x by ordinary least squares. NaN pairs are dropped
// before fitting.
func FitOLS(xs, ys []float64) (Fit, error) {
	if len(xs) != len(ys) {
		return Fit{}, errors.New("regression: mismatched series lengths")
	}
	var fx, fy []float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		fx = append(fx, xs[i])
		fy = append(fy, ys[i])
	}
	if len(fx) < 2 {
		return Fit{}, ErrTooFewPoints
	}

	alpha, beta := stat.LinearRegression(fx, fy, nil, false)

	est := make([]float64, len(fx))
	var mse, mae float64
	for i, x := range fx {
		est[i] = alpha + beta*x
		d := fy[i] - est[i]
		mse += d * d
		mae += math.Abs(d)
	}
	n := float64(len(fx))

	return Fit{
		Alpha: alpha,
		Beta:  beta,
		R2:    stat.RSquaredFrom(est, fy, nil),
		MSE:   mse / n,
		MAE:   mae / n,
		N:     len(fx),
	}, nil
}

// Predict evaluates the fitted line at x.
func (f Fit) Predict(x float64) float64 {
	return f.Alpha + f.Beta*x
}
