package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/san-kum/diffusim/internal/diffusion"
)

var trajectoryHeader = []string{"frame", "particle", "specie", "x", "y", "z"}

// LoadTrajectory reads a CSV with columns frame,particle,specie,x[,y[,z]].
// Positions must be unwrapped. Every frame must list every particle.
func LoadTrajectory(path string, timeStep float64, stepSkip int) (*diffusion.Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrajectory(f, timeStep, stepSkip)
}

func ReadTrajectory(r io.Reader, timeStep float64, stepSkip int) (*diffusion.Trajectory, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("trajectory header: %w", err)
	}
	dims := len(header) - 3
	if dims < 1 || dims > 3 {
		return nil, fmt.Errorf("%w: trajectory has %d columns", diffusion.ErrInvalidOption, len(header))
	}
	for i, name := range header {
		if name != trajectoryHeader[i] {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", diffusion.ErrInvalidOption, i, name, trajectoryHeader[i])
		}
	}

	frames := map[int]map[int][]float64{}
	species := map[int]string{}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("trajectory line %d: %w", line, err)
		}
		frame, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("trajectory line %d: %w", line, err)
		}
		particle, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("trajectory line %d: %w", line, err)
		}
		pos := make([]float64, dims)
		for d := range pos {
			if pos[d], err = strconv.ParseFloat(record[3+d], 64); err != nil {
				return nil, fmt.Errorf("trajectory line %d: %w", line, err)
			}
		}
		if frames[frame] == nil {
			frames[frame] = map[int][]float64{}
		}
		frames[frame][particle] = pos
		species[particle] = record[2]
	}

	frameIDs := sortedInts(frames)
	particleIDs := sortedInts(species)
	positions := make([][][]float64, len(frameIDs))
	for i, fid := range frameIDs {
		positions[i] = make([][]float64, len(particleIDs))
		for j, pid := range particleIDs {
			pos, ok := frames[fid][pid]
			if !ok {
				return nil, fmt.Errorf("%w: frame %d is missing particle %d", diffusion.ErrDimensionMismatch, fid, pid)
			}
			positions[i][j] = pos
		}
	}
	labels := make([]string, len(particleIDs))
	for j, pid := range particleIDs {
		labels[j] = species[pid]
	}

	return diffusion.NewTrajectory(positions, labels, timeStep, stepSkip)
}

// SaveTrajectory writes traj in the format read by LoadTrajectory.
func SaveTrajectory(path string, traj *diffusion.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(trajectoryHeader[:3+traj.Dims()]); err != nil {
		return err
	}
	for fr := 0; fr < traj.Frames(); fr++ {
		for p := 0; p < traj.Particles(); p++ {
			row := []string{strconv.Itoa(fr), strconv.Itoa(p), traj.Specie(p)}
			for _, v := range traj.Position(fr, p) {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func sortedInts[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

const trajectoryFile = "trajectory.csv"

// SaveTrajectoryRun stores traj as a trajectory run and returns its id.
func (s *Store) SaveTrajectoryRun(meta RunMetadata, traj *diffusion.Trajectory) (string, error) {
	meta.Kind = KindTrajectory
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
	meta.Metrics["frames"] = float64(traj.Frames())
	meta.Metrics["particles"] = float64(traj.Particles())
	meta.Metrics["dims"] = float64(traj.Dims())
	meta.Metrics["time_step"] = traj.TimeStep()
	meta.Metrics["step_skip"] = float64(traj.StepSkip())

	id, err := s.Save(meta, nil)
	if err != nil {
		return "", err
	}
	if err := SaveTrajectory(s.TrajectoryPath(id), traj); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) TrajectoryPath(runID string) string {
	return filepath.Join(s.baseDir, runID, trajectoryFile)
}

// LoadTrajectoryRun reads the trajectory of a stored run with the time
// step it was saved with.
func (s *Store) LoadTrajectoryRun(runID string) (*diffusion.Trajectory, *RunMetadata, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	if meta.Kind != KindTrajectory {
		return nil, nil, fmt.Errorf("%s is a %s run, not a trajectory", runID, meta.Kind)
	}
	traj, err := LoadTrajectory(s.TrajectoryPath(runID), meta.Metrics["time_step"], int(meta.Metrics["step_skip"]))
	if err != nil {
		return nil, nil, err
	}
	return traj, meta, nil
}
