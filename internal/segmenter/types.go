package segmenter

// Segment is one time slice of a source recording. Segments are created
// once per submission and never mutated; re-segmentation produces a new
// set under fresh ids.
type Segment struct {
	ID          string
	SourceID    string
	Index       int
	StartOffset float64
	EndOffset   float64
}

func (s Segment) DurationSeconds() float64 {
	return s.EndOffset - s.StartOffset
}

type Config struct {
	// TargetDurationSeconds is the per-segment length goal. Cuts land on
	// the silence candidate closest to, but not past, this duration.
	TargetDurationSeconds float64

	// SilenceThresholdDb is the RMS level (dBFS) at or below which a
	// window counts as silent.
	SilenceThresholdDb float64

	// MinSilenceDurationSeconds is the shortest silent run treated as a
	// cut candidate.
	MinSilenceDurationSeconds float64

	// LookaheadSeconds bounds how far past the target the segmenter may
	// reach for a silence candidate before falling back to a hard cut.
	LookaheadSeconds float64
}

const (
	DefaultTargetDuration     = 30.0
	DefaultSilenceThresholdDb = -40.0
	DefaultMinSilenceDuration = 0.5
	DefaultLookahead          = 5.0
)

func (c Config) withDefaults() Config {
	if c.TargetDurationSeconds <= 0 {
		c.TargetDurationSeconds = DefaultTargetDuration
	}
	if c.SilenceThresholdDb >= 0 {
		c.SilenceThresholdDb = DefaultSilenceThresholdDb
	}
	if c.MinSilenceDurationSeconds <= 0 {
		c.MinSilenceDurationSeconds = DefaultMinSilenceDuration
	}
	if c.LookaheadSeconds <= 0 {
		c.LookaheadSeconds = DefaultLookahead
	}
	return c
}
