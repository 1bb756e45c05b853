package encoding

import (
	"context"
	"fmt"
	"math"

	"arcmigrate/internal/services"
)

// DurationMatches reports whether output is within tolerance of original,
// measured as a fraction of original. The boundary is inclusive.
func DurationMatches(original, output, tolerance float64) bool {
	if math.IsNaN(original) || math.IsNaN(output) {
		return false
	}
	return math.Abs(original-output) <= original*tolerance
}

// validateDuration probes source and output and compares their durations.
// The catalog duration stands in when the source cannot be probed.
func (e *Encoder) validateDuration(ctx context.Context, source, output string, catalogDuration float64) error {
	original := catalogDuration
	if result, err := e.prober.Probe(ctx, source); err == nil {
		if d := result.DurationSeconds(); d > 0 && !math.IsNaN(d) {
			original = d
		}
	}

	result, err := e.prober.Probe(ctx, output)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcode", "validate", "probe output", err)
	}
	transcoded := result.DurationSeconds()
	if !DurationMatches(original, transcoded, e.tolerance) {
		return services.Wrap(services.ErrValidation, "transcode", "validate",
			fmt.Sprintf("length of original and transcoded files is different: original %.2fs, transcoded %.2fs", original, transcoded), nil)
	}
	return nil
}
