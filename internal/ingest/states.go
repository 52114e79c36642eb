package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

// StateSet is the column-oriented batch of complete physical states
// reconstructed from one dataset, ordered deterministically by
// (composition, sample, temperature) so repeated ingestion of the same
// file always yields the same batch.
type StateSet struct {
	Composition  []string
	SampleID     []string
	Seebeck      []float64
	Conductivity []float64
	Thermal      []float64
	Temperature  []float64
}

// Len returns the number of complete states in the set.
func (ss StateSet) Len() int { return len(ss.Temperature) }

// ReadStates ingests one CSV dataset and returns every complete merged
// state, unvalidated. Incomplete states (missing S, sigma or kappa) are
// dropped; physics gating is the caller's concern.
func ReadStates(path string) (StateSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return StateSet{}, fmt.Errorf("ingest: open dataset: %w", err)
	}
	defer f.Close()
	return readStates(f)
}

func readStates(r io.Reader) (StateSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return StateSet{}, fmt.Errorf("ingest: read header: %w", err)
	}
	cols := mapColumns(headers)
	if len(cols.t) == 0 {
		return StateSet{}, ErrMissingColumns
	}

	states := make(map[stateKey]*thermoState)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return StateSet{}, fmt.Errorf("ingest: read record: %w", err)
		}

		tRaw, ok := firstValid(record, cols.t)
		if !ok {
			continue
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

	keys := make([]stateKey, 0, len(states))
	for key, state := range states {
		if state.hasS && state.hasSigma && state.hasKappa {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].composition != keys[j].composition {
			return keys[i].composition < keys[j].composition
		}
		if keys[i].sampleID != keys[j].sampleID {
			return keys[i].sampleID < keys[j].sampleID
		}
		return keys[i].temperature < keys[j].temperature
	})

	var ss StateSet
	for _, key := range keys {
		state := states[key]
		ss.Composition = append(ss.Composition, key.composition)
		ss.SampleID = append(ss.SampleID, key.sampleID)
		ss.Seebeck = append(ss.Seebeck, state.s)
		ss.Conductivity = append(ss.Conductivity, state.sigma)
		ss.Thermal = append(ss.Thermal, state.kappa)
		ss.Temperature = append(ss.Temperature, float64(key.temperature))
	}
	return ss, nil
}
