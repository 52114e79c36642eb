package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// StarryData JSON ingestion.
//
// Two schemas coexist in the wild: pre-normalized exports carrying a root
// sample_id and a data_points array, and raw database dumps carrying a
// rawdata array with per-point sample identifiers. Both are handled by one
// parser; point-level identifiers win over the root-level one. Points with
// no resolvable identity, missing coordinates or non-finite coordinates
// are dropped silently, never fatal.

type starrydataRoot struct {
	SampleID   json.RawMessage   `json:"sample_id"`
	DataPoints []json.RawMessage `json:"data_points"`
	RawData    []json.RawMessage `json:"rawdata"`
}

type starrydataPoint struct {
	SampleID  json.RawMessage `json:"sampleid"`
	SampleID2 json.RawMessage `json:"sample_id"`
	X         json.RawMessage `json:"x"`
	Y         json.RawMessage `json:"y"`
}

// ParseStarrydataFile reads one StarryData JSON record and returns its
// validated measurement points.
func ParseStarrydataFile(path string) ([]models.DataPoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open starrydata record: %w", err)
	}
	return ParseStarrydata(raw)
}

// ParseStarrydata parses a StarryData JSON document from memory.
func ParseStarrydata(raw []byte) ([]models.DataPoint, error) {
	var root starrydataRoot
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("ingest: starrydata schema divergence: %w", err)
	}

	globalID, hasGlobalID := coerceUint32(root.SampleID)

	target := root.DataPoints
	if target == nil {
		target = root.RawData
	}
	if target == nil {
		return nil, fmt.Errorf("ingest: missing data arrays (data_points or rawdata)")
	}

	points := make([]models.DataPoint, 0, len(target))
	for _, item := range target {
		var p starrydataPoint
		if err := json.Unmarshal(item, &p); err != nil {
			continue
		}

		id, ok := coerceUint32(p.SampleID)
		if !ok {
			id, ok = coerceUint32(p.SampleID2)
		}
		if !ok {
			if !hasGlobalID {
				continue
			}
			id = globalID
		}

		x, ok := coerceFloat64(p.X)
		if !ok {
			continue
		}
		y, ok := coerceFloat64(p.Y)
		if !ok {
			continue
		}
		// NaN and Inf artifacts poison every downstream gradient; expel
		// them at the boundary.
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}

		points = append(points, models.DataPoint{SampleID: id, X: x, Y: y})
	}
	return points, nil
}

// coerceFloat64 accepts a JSON number, integer or stringified scientific
// notation.
func coerceFloat64(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, perr := strconv.ParseFloat(s, 64); perr == nil {
			return f, true
		}
	}
	return 0, false
}

func coerceUint32(raw json.RawMessage) (uint32, bool) {
	if raw == nil {
		return 0, false
	}
	var u uint64
	if err := json.Unmarshal(raw, &u); err == nil && u <= math.MaxUint32 {
		return uint32(u), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if u, perr := strconv.ParseUint(s, 10, 32); perr == nil {
			return uint32(u), true
		}
	}
	return 0, false
}
