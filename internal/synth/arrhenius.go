package synth

import (
	"fmt"
	"math"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/distribution"
)

// Boltzmann is the Boltzmann constant in eV/K.
const Boltzmann = 8.617333262e-5

// ArrheniusD returns A·exp(-Ea/(k_B·T)) with Ea in eV.
func ArrheniusD(temperature, ea, prefactor float64) float64 {
	return prefactor * math.Exp(-ea/(Boltzmann*temperature))
}

// ArrheniusSeries draws one diffusion distribution per temperature, each
// normal around the Arrhenius value with standard deviation relNoise times
// that value. Temperature i draws from stream id i.
func ArrheniusSeries(temps []float64, ea, prefactor, relNoise float64, samples int, seed int64) ([]distribution.Distribution, error) {
	if samples < 1 {
		return nil, fmt.Errorf("%w: need at least one sample, got %d", diffusion.ErrInvalidOption, samples)
	}
	stream := diffusion.NewStream(seed)
	out := make([]distribution.Distribution, len(temps))
	for i, temp := range temps {
		if temp <= 0 {
			return nil, fmt.Errorf("%w: temperature %f", diffusion.ErrInvalidOption, temp)
		}
		d := ArrheniusD(temp, ea, prefactor)
		dist, err := distribution.FromNormal(fmt.Sprintf("D(%gK)", temp), d, relNoise*d, samples, stream.Source(uint64(i)))
		if err != nil {
			return nil, err
		}
		out[i] = dist
	}
	return out, nil
}
