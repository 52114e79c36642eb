package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// CSV ingestion for interpolated measurement dumps.
//
// Real-world dumps are messy: the same physical column appears under many
// header spellings, sometimes several times per file, and rows for one
// physical state arrive split across multiple lines (one property per row).
// Ingestion therefore scans multiple candidate columns per property and
// merges rows into states keyed by (composition, sample, rounded T) before
// any physics runs.

// ErrMissingColumns is returned when a file carries no recognizable
// temperature column at all; nothing can be keyed without one.
var ErrMissingColumns = fmt.Errorf("ingest: required columns not found")

type stateKey struct {
	composition string
	sampleID    string
	temperature int64
}

type thermoState struct {
	s, sigma, kappa          float64
	hasS, hasSigma, hasKappa bool
}

type columnMap struct {
	t, s, sigma, rho, kappa []int
	comp, sample            int
}

func mapColumns(headers []string) columnMap {
	cols := columnMap{comp: -1, sample: -1}
	for i, h := range headers {
		n := strings.ToLower(strings.TrimSpace(h))
		switch {
		case n == "temperature" || n == "t":
			cols.t = append(cols.t, i)
		case strings.Contains(n, "seebeck") || n == "s" || n == "tep" || n == "thermopower":
			cols.s = append(cols.s, i)
		case n == "electrical conductivity" || n == "conductance":
			cols.sigma = append(cols.sigma, i)
		case strings.Contains(n, "resistivity") || n == "ρ" || n == "resistyvity":
			cols.rho = append(cols.rho, i)
		case n == "thermal conductivity" || n == "total thermal conductivity" || n == "kappa":
			cols.kappa = append(cols.kappa, i)
		case n == "composition":
			cols.comp = i
		case strings.Contains(n, "sampleid"):
			cols.sample = i
		}
	}
	return cols
}

// ComputeZTFromCSV streams one CSV dataset, merges split rows into physical
// states, gates each reconstructed state through the hard and empirical
// bounds and reports the surviving zT statistics. Bad rows and violating
// states are counted, never fatal; only structural failures abort the pass.
func ComputeZTFromCSV(path string) (models.IngestReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.IngestReport{}, fmt.Errorf("ingest: open dataset: %w", err)
	}
	defer f.Close()
	return computeZT(f)
}

func computeZT(r io.Reader) (models.IngestReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return models.IngestReport{}, fmt.Errorf("ingest: read header: %w", err)
	}
	cols := mapColumns(headers)
	if len(cols.t) == 0 {
		return models.IngestReport{}, ErrMissingColumns
	}

	states := make(map[stateKey]*thermoState)
	var report models.IngestReport
	report.MinZT = math.MaxFloat64
	report.MaxZT = -math.MaxFloat64

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.IngestReport{}, fmt.Errorf("ingest: read record: %w", err)
		}
		report.TotalRows++

		tRaw, ok := firstValid(record, cols.t)
		if !ok {
			continue // rows without a temperature cannot be keyed
		}

		key := stateKey{temperature: int64(math.Round(tRaw))}
		if cols.comp >= 0 && cols.comp < len(record) {
			key.composition = record[cols.comp]
		}
		key.sampleID = "unknown"
		if cols.sample >= 0 && cols.sample < len(record) {
			if s := strings.TrimSpace(record[cols.sample]); s != "" {
				key.sampleID = s
			}
		}

		state, exists := states[key]
		if !exists {
			state = &thermoState{}
			states[key] = state
		}

		if v, ok := firstValid(record, cols.s); ok {
			state.s, state.hasS = v, true
		}
		if v, ok := firstValid(record, cols.sigma); ok {
			state.sigma, state.hasSigma = v, true
		} else if v, ok := firstValid(record, cols.rho); ok && v > 1e-12 {
			state.sigma, state.hasSigma = 1.0/v, true
		}
		if v, ok := firstValid(record, cols.kappa); ok {
			state.kappa, state.hasKappa = v, true
		}
	}

	report.TotalStates = len(states)

	for key, state := range states {
		if !state.hasS || !state.hasSigma || !state.hasKappa {
			report.IncompleteStates++
			continue
		}
		t := float64(key.temperature)
		if t <= 0 || state.kappa <= 0 || state.sigma <= 0 {
			report.SkippedStates++
			continue
		}
		// Interpolated database dumps carry garbage rows well past any
		// physical magnitude; gate before computing.
		if math.Abs(state.s) > 0.05 || state.sigma > 1e8 || state.kappa > 5000.0 {
			report.SkippedStates++
			continue
		}
		zt := (state.s * state.s * state.sigma * t) / state.kappa
		if math.IsNaN(zt) || math.IsInf(zt, 0) || zt < 0 || zt > 5.0 {
			report.SkippedStates++
			continue
		}

		report.ValidStates++
		// Welford running mean keeps the pass single-shot and stable.
		report.MeanZT += (zt - report.MeanZT) / float64(report.ValidStates)
		if zt < report.MinZT {
			report.MinZT = zt
		}
		if zt > report.MaxZT {
			report.MaxZT = zt
		}
	}

	if report.ValidStates == 0 {
		report.MeanZT = math.NaN()
		report.MinZT = math.NaN()
		report.MaxZT = math.NaN()
	}
	return report, nil
}

// firstValid returns the first parseable value among the candidate columns.
func firstValid(record []string, indices []int) (float64, bool) {
	for _, idx := range indices {
		if idx >= len(record) {
			continue
		}
		if v, ok := parseFloatCell(record[idx]); ok {
			return v, true
		}
	}
	return 0, false
}

// parseFloatCell parses a cell that may be a plain number or a serialized
// array literal like "[10.0, 20.0, 30.0]", in which case the terminal
// element is taken.
func parseFloatCell(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		interior := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if interior == "" {
			return 0, false
		}
		if idx := strings.LastIndex(interior, ","); idx >= 0 {
			interior = interior[idx+1:]
		}
		trimmed = strings.TrimSpace(interior)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
