package segmenter

import (
	"github.com/scriba-app/transcribe-backend/internal/audio"
	"github.com/scriba-app/transcribe-backend/internal/shared"
)

// frameSeconds is the RMS analysis window. Cut candidates snap to frame
// boundaries, so boundary resolution is 10ms.
const frameSeconds = 0.01

// Split turns a decoded source into an ordered, contiguous, gap-free
// sequence of segments covering [0, totalDuration). Cuts prefer the
// midpoints of detected silences; a hard time cut is the fallback when
// no silence lands near the target. The result depends only on the
// samples and the config.
func Split(src *audio.Source, sourceID string, cfg Config) ([]Segment, error) {
	if src == nil || len(src.Samples) == 0 {
		return nil, &audio.DecodeError{Reason: "empty source"}
	}
	cfg = cfg.withDefaults()

	total := src.DurationSeconds()
	candidates := silenceCandidates(src, cfg)

	var segments []Segment
	cursor := 0.0
	for cursor < total {
		end := cursor + cfg.TargetDurationSeconds
		if end >= total {
			end = total
		} else {
			end = chooseCut(candidates, cursor, cfg)
		}
		segments = append(segments, Segment{
			ID:          shared.NewID("seg_"),
			SourceID:    sourceID,
			Index:       len(segments),
			StartOffset: cursor,
			EndOffset:   end,
		})
		cursor = end
	}

	return segments, nil
}

// chooseCut picks the latest silence candidate not past the target, or
// failing that the earliest one inside the lookahead window. With no
// usable candidate the cut falls at exactly the target duration.
func chooseCut(candidates []float64, cursor float64, cfg Config) float64 {
	target := cursor + cfg.TargetDurationSeconds

	best := -1.0
	for _, c := range candidates {
		if c <= cursor {
			continue
		}
		if c <= target {
			best = c
			continue
		}
		break
	}
	if best > 0 {
		return best
	}

	for _, c := range candidates {
		if c > target && c <= target+cfg.LookaheadSeconds {
			return c
		}
	}

	return target
}

// silenceCandidates scans fixed windows for runs at or below the
// threshold lasting at least the minimum silence duration, and records
// each run's midpoint.
func silenceCandidates(src *audio.Source, cfg Config) []float64 {
	frameLen := int(frameSeconds * float64(src.SampleRate))
	if frameLen == 0 {
		frameLen = 1
	}
	minFrames := int(cfg.MinSilenceDurationSeconds / frameSeconds)
	if minFrames < 1 {
		minFrames = 1
	}

	var candidates []float64
	runStart := -1
	frames := len(src.Samples) / frameLen

	flush := func(endFrame int) {
		if runStart >= 0 && endFrame-runStart >= minFrames {
			mid := float64(runStart+endFrame) / 2 * frameSeconds
			candidates = append(candidates, mid)
		}
		runStart = -1
	}

	for f := 0; f < frames; f++ {
		window := src.Samples[f*frameLen : (f+1)*frameLen]
		if audio.RMSDecibels(window) <= cfg.SilenceThresholdDb {
			if runStart < 0 {
				runStart = f
			}
		} else {
			flush(f)
		}
	}
	flush(frames)

	return candidates
}
