package analyzer

import "math/rand"

// SweepStrategy selects how wide-spectrum partitions are ordered within
// one sweep (spec.md §3, "Sweep Plan").
type SweepStrategy int

const (
	SweepLinear SweepStrategy = iota
	SweepRandom
)

// SpectrumPartitioning selects how the [MinFreq, MaxFreq] range is cut
// into one-acquisition-wide partitions.
type SpectrumPartitioning int

const (
	// PartitionContiguous tiles the range with non-overlapping,
	// sample-rate-wide partitions.
	PartitionContiguous SpectrumPartitioning = iota
	// PartitionOverlapped tiles the range with 50%-overlapping
	// partitions, trading sweep time for fewer band-edge gaps.
	PartitionOverlapped
)

// SweepPlan is the wide-spectrum retuning policy (spec.md §3): range,
// partitioning strategy and per-hop dwell, in samples.
type SweepPlan struct {
	MinFreq       float64
	MaxFreq       float64
	Strategy      SweepStrategy
	Partitioning  SpectrumPartitioning
	FFTMinSamples int
}

// partitionCenters computes the ordered list of center frequencies this
// plan visits over one full sweep at sampleRate, the Go analog of
// suscan's sweep partitioning (spec.md Testable Properties scenario 5:
// "verify that the source center frequency visits every partition in
// the configured partitioning exactly once per sweep").
func (p SweepPlan) partitionCenters(sampleRate float64) []float64 {
	if sampleRate <= 0 || p.MaxFreq <= p.MinFreq {
		return nil
	}

	step := sampleRate
	if p.Partitioning == PartitionOverlapped {
		step = sampleRate / 2
	}

	var centers []float64
	for f := p.MinFreq + sampleRate/2; f <= p.MaxFreq-sampleRate/2+1e-6; f += step {
		centers = append(centers, f)
	}
	if len(centers) == 0 {
		centers = append(centers, (p.MinFreq+p.MaxFreq)/2)
	}

	if p.Strategy == SweepRandom {
		// Deterministic per-length shuffle rather than a time-seeded
		// one: the only property this module promises (spec.md §8
		// scenario 5) is full coverage exactly once per sweep, and a
		// reproducible order makes that property testable.
		rng := rand.New(rand.NewSource(int64(len(centers))))
		rng.Shuffle(len(centers), func(i, j int) { centers[i], centers[j] = centers[j], centers[i] })
	}

	return centers
}

// sweepCursor walks a SweepPlan's partition list hop by hop, tracking
// how many samples have been collected at the current center.
type sweepCursor struct {
	centers    []float64
	idx        int
	hopSamples int
}

func newSweepCursor(plan SweepPlan, sampleRate float64) *sweepCursor {
	return &sweepCursor{centers: plan.partitionCenters(sampleRate)}
}

// currentFreq returns the center frequency the cursor is parked at.
func (c *sweepCursor) currentFreq() float64 {
	if len(c.centers) == 0 {
		return 0
	}
	return c.centers[c.idx]
}

// advance accounts for n newly collected samples at the current
// center, returning true if the hop boundary was crossed (the caller
// should retune and, if requested, swap in a pending plan).
func (c *sweepCursor) advance(n, fftMinSamples int) bool {
	c.hopSamples += n
	if c.hopSamples < fftMinSamples {
		return false
	}
	c.hopSamples = 0
	if len(c.centers) > 0 {
		c.idx = (c.idx + 1) % len(c.centers)
	}
	return true
}

// reset re-derives the partition list for a newly published plan,
// preserving sweep position at index 0 (a fresh plan always starts its
// sweep from the first partition, the simplest well-defined behavior
// when strategy/partitioning/range change mid-flight).
func (c *sweepCursor) reset(plan SweepPlan, sampleRate float64) {
	c.centers = plan.partitionCenters(sampleRate)
	c.idx = 0
	c.hopSamples = 0
}
