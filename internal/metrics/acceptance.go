package metrics

type Acceptance struct {
	name     string
	accepted int
	proposed int
}

func NewAcceptance() *Acceptance {
	return &Acceptance{
		name: "acceptance_fraction",
	}
}

func (a *Acceptance) Name() string { return a.name }

func (a *Acceptance) Observe(g Generation) {
	for _, ok := range g.Accepted {
		if ok {
			a.accepted++
		}
	}
	a.proposed += len(g.Accepted)
}

func (a *Acceptance) Value() float64 {
	if a.proposed == 0 {
		return 0
	}
	return float64(a.accepted) / float64(a.proposed)
}

func (a *Acceptance) Reset() {
	a.accepted = 0
	a.proposed = 0
}
