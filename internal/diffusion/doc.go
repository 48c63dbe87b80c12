// Package diffusion provides the core types shared by every stage of the
// diffusion analysis pipeline.
//
// The package defines the data that flows between stages:
//
//   - [Trajectory]: immutable particle positions over stored frames
//   - [IntervalSample]: squared displacements for one time interval
//   - [CovarianceBundle]: interval means and their joint covariance
//   - [Stream]: explicit, partitionable source of pseudorandom numbers
//
// It also holds the error taxonomy used across the module
// ([InsufficientDataError], [SingularCovarianceError],
// [OptimizationDivergenceError], [SamplingError]) and the [ParallelFor]
// helper used to spread independent work over goroutines.
//
// # Example
//
//	traj, _ := diffusion.NewTrajectory(positions, species, 1.0, 1)
//	samples, _, _ := sampler.Sample(traj, sampler.DefaultOptions())
//	bundle, _ := covariance.Estimate(samples, covariance.DefaultOptions())
//	result, _ := regress.Fit(ctx, bundle, regress.MSD(traj.Dims()), regress.DefaultOptions())
//
// # Thread Safety
//
// All values in this package are read-only after construction and may be
// shared between goroutines. A [Stream] hands out independent generators, so
// no generator is ever shared by two goroutines.
package diffusion
