package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/diffusim/internal/storage"
)

type ExportData struct {
	storage.RunMetadata
	Parameters []string    `json:"parameters,omitempty"`
	Samples    [][]float64 `json:"samples,omitempty"`
	Band       *BandData   `json:"band,omitempty"`
}

// BandData is a posterior-predictive band over the exported curve.
type BandData struct {
	CI    float64   `json:"ci"`
	X     []float64 `json:"x"`
	Lower []float64 `json:"lower"`
	Fit   []float64 `json:"fit"`
	Upper []float64 `json:"upper"`
}

// NewExportData joins the stored metadata with its samples, given column
// major as returned by storage.LoadSamples.
func NewExportData(meta storage.RunMetadata, names []string, cols [][]float64) ExportData {
	data := ExportData{RunMetadata: meta, Parameters: names}
	if len(cols) == 0 {
		return data
	}
	data.Samples = make([][]float64, len(cols[0]))
	for i := range data.Samples {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		data.Samples[i] = row
	}
	return data
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return Encode(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return Encode(os.Stdout, data)
}

func Encode(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
