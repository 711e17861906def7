package transcoder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NormalizationType reports whether loudnorm applied a single linear
// gain or a time-varying correction during measurement.
type NormalizationType string

const (
	NormalizationLinear  NormalizationType = "linear"
	NormalizationDynamic NormalizationType = "dynamic"
)

// Stats are the measured loudness characteristics of one source file,
// produced by the analysis pass and consumed by the encode pass. They
// are never persisted.
type Stats struct {
	InputIntegrated   float64 // input_i, LUFS
	InputRange        float64 // input_lra, LU
	InputTruePeak     float64 // input_tp, dBTP
	InputThreshold    float64 // input_thresh, LUFS
	TargetOffset      float64 // offset for the second pass
	NormalizationType NormalizationType
}

// ParseError reports that the analysis diagnostic text did not contain
// a usable loudnorm measurement block.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse loudnorm stats: " + e.Reason
}

// rawStats mirrors the JSON block loudnorm prints; every value,
// numeric or not, is a JSON string.
type rawStats struct {
	InputI            string `json:"input_i"`
	InputLRA          string `json:"input_lra"`
	InputTP           string `json:"input_tp"`
	InputThresh       string `json:"input_thresh"`
	TargetOffset      string `json:"target_offset"`
	NormalizationType string `json:"normalization_type"`
}

// ParseStats extracts the measurement block from the analysis pass
// diagnostic text. The block is the span between the first '{' and the
// last '}'; everything around it is banner and progress noise.
func ParseStats(diagnostic string) (Stats, error) {
	start := strings.Index(diagnostic, "{")
	end := strings.LastIndex(diagnostic, "}")
	if start == -1 || end == -1 || end <= start {
		return Stats{}, &ParseError{Reason: "no measurement block in tool output"}
	}

	var raw rawStats
	if err := json.Unmarshal([]byte(diagnostic[start:end+1]), &raw); err != nil {
		return Stats{}, &ParseError{Reason: fmt.Sprintf("decode measurement block: %v", err)}
	}

	stats := Stats{NormalizationType: NormalizationType(raw.NormalizationType)}
	for _, field := range []struct {
		name  string
		value string
		dst   *float64
	}{
		{"input_i", raw.InputI, &stats.InputIntegrated},
		{"input_lra", raw.InputLRA, &stats.InputRange},
		{"input_tp", raw.InputTP, &stats.InputTruePeak},
		{"input_thresh", raw.InputThresh, &stats.InputThreshold},
		{"target_offset", raw.TargetOffset, &stats.TargetOffset},
	} {
		v, err := strconv.ParseFloat(field.value, 64)
		if err != nil {
			return Stats{}, &ParseError{Reason: fmt.Sprintf("field %s: %v", field.name, err)}
		}
		*field.dst = v
	}
	return stats, nil
}
