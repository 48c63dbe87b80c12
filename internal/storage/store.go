package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/fit"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Kind of a stored run.
const (
	KindMSD        = "msd"
	KindArrhenius  = "arrhenius"
	KindTrajectory = "trajectory"
)

type ParamSummary struct {
	Name          string  `json:"name"`
	Unit          string  `json:"unit,omitempty"`
	MaxLikelihood float64 `json:"max_likelihood"`
	Mean          float64 `json:"mean,omitempty"`
	Std           float64 `json:"std,omitempty"`
	Median        float64 `json:"median,omitempty"`
	Lower         float64 `json:"lower,omitempty"`
	Upper         float64 `json:"upper,omitempty"`
}

// Curve is the observed MSD with its bootstrap errors and, when a fit is
// attached, the fitted model and its 95% posterior-predictive band.
type Curve struct {
	Times  []float64 `json:"times"`
	Mean   []float64 `json:"mean"`
	StdErr []float64 `json:"std_err"`
	Fit    []float64 `json:"fit,omitempty"`
	Lower  []float64 `json:"lower,omitempty"`
	Upper  []float64 `json:"upper,omitempty"`
}

const bandCI = 0.95

type RunMetadata struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Temperature float64            `json:"temperature,omitempty"`
	Source      string             `json:"source,omitempty"`
	Params      []ParamSummary     `json:"params,omitempty"`
	Curve       *Curve             `json:"curve,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// NewRunMetadata summarises a fit result. bundle may be nil.
func NewRunMetadata(kind string, seed int64, result *fit.Result, bundle *diffusion.CovarianceBundle) RunMetadata {
	meta := RunMetadata{
		Kind:    kind,
		Seed:    seed,
		Metrics: map[string]float64{},
	}
	if bundle != nil {
		meta.Curve = &Curve{Times: bundle.Times, Mean: bundle.Mean, StdErr: bundle.StdErr}
	}
	if result == nil {
		return meta
	}
	if meta.Curve != nil {
		meta.Curve.Fit = result.Evaluate(meta.Curve.Times)
		if result.Sampled() {
			if band, err := result.Band(meta.Curve.Times, bandCI); err == nil {
				meta.Curve.Lower, meta.Curve.Upper = band.Lower, band.Upper
			}
		}
	}

	model := result.Model()
	meta.Model = model.Name
	params := result.Params()
	for i, name := range model.Params {
		ps := ParamSummary{Name: name, MaxLikelihood: params[i]}
		if i < len(model.Units) {
			ps.Unit = model.Units[i]
		}
		if d, ok := result.Distribution(name); ok {
			ps.Mean, ps.Std, ps.Median = d.Mean(), d.Std(), d.Median()
			ps.Lower, ps.Upper = d.CredibleInterval()
		}
		meta.Params = append(meta.Params, ps)
	}

	diag := result.Diagnostics()
	meta.Metrics["log_likelihood"] = diag.LogLikelihood
	meta.Metrics["aic"] = diag.AIC
	meta.Metrics["retries"] = float64(diag.Retries)
	meta.Metrics["evaluations"] = float64(diag.Evaluations)
	if result.Sampled() {
		meta.Metrics["acceptance_fraction"] = diag.AcceptanceFraction
		meta.Metrics["samples"] = float64(diag.Samples)
	}
	for k, v := range diag.Metrics {
		meta.Metrics[k] = v
	}
	// encoding/json rejects NaN and Inf.
	for k, v := range meta.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(meta.Metrics, k)
		}
	}
	return meta
}

// Param returns the named parameter summary.
func (m *RunMetadata) Param(name string) (ParamSummary, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSummary{}, false
}

// Save writes a run directory holding metadata.json and, when the result
// was sampled, samples.csv with one column per parameter.
func (s *Store) Save(meta RunMetadata, result *fit.Result) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Kind, now.UnixNano())
	meta.Timestamp = now
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if result == nil || !result.Sampled() {
		return meta.ID, nil
	}
	if err := writeSamples(filepath.Join(runDir, "samples.csv"), result.Model().Params, result.Samples()); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// Path returns the directory of a run.
func (s *Store) Path(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, names []string, samples [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(names); err != nil {
		return err
	}
	row := make([]string, len(names))
	for _, s := range samples {
		for j, v := range s {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadSamples reads samples.csv back as the parameter names and one column
// of samples per parameter.
func (s *Store) LoadSamples(runID string) ([]string, [][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty samples file", runID)
	}

	names := records[0]
	cols := make([][]float64, len(names))
	for i := range cols {
		cols[i] = make([]float64, 0, len(records)-1)
	}
	for line, record := range records[1:] {
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: line %d: %w", runID, line+2, err)
			}
			cols[j] = append(cols[j], v)
		}
	}
	return names, cols, nil
}
