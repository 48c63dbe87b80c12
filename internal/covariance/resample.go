package covariance

import (
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
)

type resampler interface {
	// scratch returns a per-goroutine buffer for resample.
	scratch() []float64
	// resample writes one resampled mean per interval into out.
	resample(rng *rand.Rand, out, buf []float64)
}

// particleResampler draws particles with replacement. A particle's whole
// trajectory is one block, so every cross-interval correlation within a
// particle is preserved.
type particleResampler struct {
	particles int
	means     [][]float64 // [interval][particle]
}

func newParticleResampler(samples []diffusion.IntervalSample) *particleResampler {
	r := &particleResampler{
		particles: samples[0].Particles,
		means:     make([][]float64, len(samples)),
	}
	for i, s := range samples {
		r.means[i] = s.ParticleMeans()
	}
	return r
}

func (r *particleResampler) scratch() []float64 {
	return make([]float64, r.particles)
}

func (r *particleResampler) resample(rng *rand.Rand, out, buf []float64) {
	for p := range buf {
		buf[p] = float64(rng.IntN(r.particles))
	}
	for i, pm := range r.means {
		sum := 0.0
		for _, idx := range buf {
			sum += pm[int(idx)]
		}
		out[i] = sum / float64(r.particles)
	}
}

// blockResampler draws blocks of consecutive time origins within every
// particle. Block starts are drawn once per resample in absolute frame
// coordinates and share one length across intervals, so every interval
// averages the origins of the same trajectory segments. Origin t of every
// interval starts at frame t.
type blockResampler struct {
	particles int
	length    int
	blocks    int
	// maxStart is the last admissible block start. It never exceeds the
	// origin range of the longest interval, so each block contributes to
	// every interval.
	maxStart  int
	intervals []blockInterval
}

type blockInterval struct {
	origins int
	prefix  [][]float64 // [particle][origin+1] cumulative sums
}

func newBlockResampler(samples []diffusion.IntervalSample, blockSize int) *blockResampler {
	maxOrigins, minOrigins, maxSteps := 0, samples[0].Origins, 0
	for _, s := range samples {
		maxOrigins = max(maxOrigins, s.Origins)
		minOrigins = min(minOrigins, s.Origins)
		maxSteps = max(maxSteps, s.Steps)
	}

	length := blockSize
	if length == 0 {
		length = maxSteps
	}
	length = max(1, min(length, maxOrigins))

	r := &blockResampler{
		particles: samples[0].Particles,
		length:    length,
		blocks:    (maxOrigins + length - 1) / length,
		maxStart:  min(maxOrigins-length, minOrigins-1),
		intervals: make([]blockInterval, len(samples)),
	}
	for i, s := range samples {
		bi := blockInterval{
			origins: s.Origins,
			prefix:  make([][]float64, s.Particles),
		}
		for p := 0; p < s.Particles; p++ {
			row := s.Particle(p)
			pre := make([]float64, len(row)+1)
			for t, d := range row {
				pre[t+1] = pre[t] + d
			}
			bi.prefix[p] = pre
		}
		r.intervals[i] = bi
	}
	return r
}

func (r *blockResampler) scratch() []float64 {
	return make([]float64, r.particles*r.blocks)
}

func (r *blockResampler) resample(rng *rand.Rand, out, buf []float64) {
	for j := range buf {
		buf[j] = float64(rng.IntN(r.maxStart + 1))
	}
	for i, bi := range r.intervals {
		sum, count := 0.0, 0
		for p, pre := range bi.prefix {
			for _, s := range buf[p*r.blocks : (p+1)*r.blocks] {
				start := int(s)
				end := min(start+r.length, bi.origins)
				sum += pre[end] - pre[start]
				count += end - start
			}
		}
		out[i] = sum / float64(count)
	}
}
