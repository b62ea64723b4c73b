package generator

import "math"

// Acquisition scores a posterior (mean, std) so that lower is better. The
// surrogate always models a minimized target; best is the lowest seen so far.
type acquisition func(mean, std, best float64) float64

// upperConfidenceBound returns the negated optimistic bound for a
// minimization target, i.e. mean - beta*std.
func upperConfidenceBound(beta float64) acquisition {
	return func(mean, std, _ float64) float64 {
		return mean - beta*std
	}
}

// expectedImprovement returns the negated expected improvement over best.
func expectedImprovement(xi float64) acquisition {
	return func(mean, std, best float64) float64 {
		if std <= 0 {
			return -math.Max(best-mean-xi, 0)
		}
		imp := best - mean - xi
		z := imp / std
		return -(imp*normCDF(z) + std*normPDF(z))
	}
}

func normPDF(z float64) float64 {
	return math.Exp(-0.5*z*z) / math.Sqrt(2*math.Pi)
}

func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}
