package metrics

import "math"

// MeanLogProb averages the finite walker log-probabilities over the
// generations observed.
type MeanLogProb struct {
	name    string
	sum     float64
	samples int
}

func NewMeanLogProb() *MeanLogProb {
	return &MeanLogProb{
		name: "mean_log_prob",
	}
}

func (m *MeanLogProb) Name() string { return m.name }

func (m *MeanLogProb) Observe(g Generation) {
	for _, lp := range g.LogProb {
		if math.IsInf(lp, 0) || math.IsNaN(lp) {
			continue
		}
		m.sum += lp
		m.samples++
	}
}

func (m *MeanLogProb) Value() float64 {
	if m.samples == 0 {
		return math.Inf(-1)
	}
	return m.sum / float64(m.samples)
}

func (m *MeanLogProb) Reset() {
	m.sum = 0
	m.samples = 0
}

// Stuck is the fraction of walkers that never accepted a move. A large
// value means the initial ball or the prior is badly placed.
type Stuck struct {
	name  string
	moved []bool
}

func NewStuck() *Stuck {
	return &Stuck{
		name: "stuck_walkers",
	}
}

func (s *Stuck) Name() string { return s.name }

func (s *Stuck) Observe(g Generation) {
	if s.moved == nil {
		s.moved = make([]bool, len(g.Accepted))
	}
	for i, ok := range g.Accepted {
		if ok && i < len(s.moved) {
			s.moved[i] = true
		}
	}
}

func (s *Stuck) Value() float64 {
	if len(s.moved) == 0 {
		return 0
	}
	stuck := 0
	for _, m := range s.moved {
		if !m {
			stuck++
		}
	}
	return float64(stuck) / float64(len(s.moved))
}

func (s *Stuck) Reset() {
	s.moved = nil
}
