package model

import (
	"math"
	"math/rand"
)

// logit is an L2-regularised logistic regression on standardised inputs.
type logit struct {
	W    []float64 `json:"w"`
	B    float64   `json:"b"`
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

type fitOptions struct {
	lr       float64
	l2       float64
	epochs   int
	batch    int
	patience int
}

var defaultFit = fitOptions{lr: 0.1, l2: 1e-3, epochs: 200, batch: 64, patience: 10}

func sigmoid(z float64) float64 {
	if z > 20 {
		return 1
	}
	if z < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

func (m *logit) dim() int { return len(m.W) }

// scale standardises x with the stored moments.
func (m *logit) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - m.Mean[i]) / m.Std[i]
	}
	return out
}

func (m *logit) raw(z []float64) float64 {
	s := m.B
	for i, v := range z {
		s += m.W[i] * v
	}
	return sigmoid(s)
}

// predict expects unscaled features; a dimension mismatch yields 0.5.
func (m *logit) predict(x []float64) float64 {
	if len(x) != m.dim() {
		return 0.5
	}
	return m.raw(m.scale(x))
}

// fitMoments computes per-feature mean and population std. Constant
// features get std 1.
func fitMoments(xs [][]float64, dim int) (mean, std []float64) {
	mean, std = make([]float64, dim), make([]float64, dim)
	n := float64(len(xs))
	for _, x := range xs {
		for j, v := range x {
			mean[j] += v / n
		}
	}
	for _, x := range xs {
		for j, v := range x {
			std[j] += (v - mean[j]) * (v - mean[j]) / n
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j])
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}
	return mean, std
}

// classWeights balances the two labels so each contributes half the loss.
func classWeights(ys []float64) (w0, w1 float64) {
	var n1 float64
	for _, y := range ys {
		n1 += y
	}
	n := float64(len(ys))
	n0 := n - n1
	if n0 == 0 || n1 == 0 {
		return 1, 1
	}
	return n / (2 * n0), n / (2 * n1)
}

func (m *logit) loss(zs [][]float64, ys []float64, w0, w1 float64) float64 {
	if len(zs) == 0 {
		return 0
	}
	total := 0.0
	for i, z := range zs {
		p := math.Min(math.Max(m.raw(z), 1e-8), 1-1e-8)
		if ys[i] == 1 {
			total -= w1 * math.Log(p)
		} else {
			total -= w0 * math.Log(1-p)
		}
	}
	return total / float64(len(zs))
}

// fit runs weighted mini-batch gradient descent on already scaled inputs,
// starting from the current weights. Validation loss drives early stopping;
// without a validation set the training loss is used.
func (m *logit) fit(train [][]float64, ys []float64, val [][]float64, vys []float64, opt fitOptions, rng *rand.Rand) {
	if len(train) == 0 {
		return
	}
	w0, w1 := classWeights(ys)
	evalX, evalY := val, vys
	if len(evalX) == 0 {
		evalX, evalY = train, ys
	}

	bestW := append([]float64(nil), m.W...)
	bestB := m.B
	bestLoss := m.loss(evalX, evalY, w0, w1)
	wait := 0

	for e := 0; e < opt.epochs; e++ {
		perm := rng.Perm(len(train))
		for off := 0; off < len(perm); off += opt.batch {
			end := min(off+opt.batch, len(perm))
			gW := make([]float64, m.dim())
			var gB float64
			for _, i := range perm[off:end] {
				cw := w0
				if ys[i] == 1 {
					cw = w1
				}
				g := cw * (m.raw(train[i]) - ys[i])
				for j, v := range train[i] {
					gW[j] += g * v
				}
				gB += g
			}
			eta := opt.lr / float64(end-off)
			for j := range m.W {
				m.W[j] -= eta * (gW[j] + opt.l2*m.W[j])
			}
			m.B -= eta * gB
		}

		l := m.loss(evalX, evalY, w0, w1)
		if l < bestLoss-1e-6 {
			bestLoss = l
			copy(bestW, m.W)
			bestB = m.B
			wait = 0
			continue
		}
		wait++
		if wait >= opt.patience {
			break
		}
	}
	m.W, m.B = bestW, bestB
}
