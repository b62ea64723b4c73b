package generator

import (
	"errors"
	"math"
)

// errNotPositiveDefinite is returned when the kernel matrix cannot be factored.
var errNotPositiveDefinite = errors.New("kernel matrix is not positive definite")

// gaussianProcess is a zero-mean GP with a squared exponential kernel over
// inputs already scaled to the unit cube. Targets are standardized on fit.
type gaussianProcess struct {
	lengthScale float64
	noise       float64

	x     [][]float64
	chol  [][]float64 // lower triangular factor of K + noise*I
	alpha []float64   // (K + noise*I)^-1 y
	mean  float64
	std   float64
}

func newGaussianProcess(lengthScale, noise float64) *gaussianProcess {
	return &gaussianProcess{lengthScale: lengthScale, noise: noise}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return math.Exp(-0.5 * d2 / (gp.lengthScale * gp.lengthScale))
}

// fit conditions the process on x and y. The jitter grows until the
// factorization succeeds or gives up after a few attempts.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	n := len(x)
	gp.x = x
	gp.mean, gp.std = meanStd(y)

	z := make([]float64, n)
	for i, v := range y {
		z[i] = (v - gp.mean) / gp.std
	}

	jitter := gp.noise
	for attempt := 0; attempt < 5; attempt++ {
		k := make([][]float64, n)
		for i := range k {
			k[i] = make([]float64, n)
			for j := 0; j <= i; j++ {
				k[i][j] = gp.kernel(x[i], x[j])
				k[j][i] = k[i][j]
			}
			k[i][i] += jitter
		}
		l, err := cholesky(k)
		if err == nil {
			gp.chol = l
			gp.alpha = backSubstitute(l, forwardSubstitute(l, z))
			return nil
		}
		jitter = math.Max(jitter*10, 1e-8)
	}
	return errNotPositiveDefinite
}

// predict returns the posterior mean and standard deviation at p in the
// original target units.
func (gp *gaussianProcess) predict(p []float64) (float64, float64) {
	ks := make([]float64, len(gp.x))
	for i, xi := range gp.x {
		ks[i] = gp.kernel(p, xi)
	}

	var mu float64
	for i := range ks {
		mu += ks[i] * gp.alpha[i]
	}

	v := forwardSubstitute(gp.chol, ks)
	variance := 1.0
	for _, vi := range v {
		variance -= vi * vi
	}
	if variance < 1e-12 {
		variance = 1e-12
	}
	return gp.mean + mu*gp.std, math.Sqrt(variance) * gp.std
}

func meanStd(y []float64) (float64, float64) {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ss float64
	for _, v := range y {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(y)))
	if std < 1e-12 {
		std = 1
	}
	return mean, std
}

func cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errNotPositiveDefinite
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// forwardSubstitute solves L x = b.
func forwardSubstitute(l [][]float64, b []float64) []float64 {
	x := make([]float64, len(b))
	for i := range b {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// backSubstitute solves L^T x = b.
func backSubstitute(l [][]float64, b []float64) []float64 {
	n := len(b)
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}
