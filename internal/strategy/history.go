package strategy

import "time"

// Sample is one observed price.
type Sample struct {
	At    time.Time
	Price float64
}

// PriceHistory is a time-ordered window of samples for one instrument.
// Samples are appended at the newest end and evicted from the oldest end.
type PriceHistory struct {
	samples []Sample
	head    int // index of the oldest live sample
}

// Push appends a sample.
func (h *PriceHistory) Push(at time.Time, price float64) {
	h.samples = append(h.samples, Sample{At: at, Price: price})
}

// Evict drops samples older than now-window.
func (h *PriceHistory) Evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	for h.head < len(h.samples) && h.samples[h.head].At.Before(cutoff) {
		h.head++
	}
	// Compact once the dead prefix dominates so the slice does not grow forever.
	if h.head > 64 && h.head*2 > len(h.samples) {
		n := copy(h.samples, h.samples[h.head:])
		h.samples = h.samples[:n]
		h.head = 0
	}
}

// Oldest returns the oldest retained sample.
func (h *PriceHistory) Oldest() (Sample, bool) {
	if h.Len() == 0 {
		return Sample{}, false
	}
	return h.samples[h.head], true
}

// Newest returns the most recent sample.
func (h *PriceHistory) Newest() (Sample, bool) {
	if h.Len() == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Len is the number of retained samples.
func (h *PriceHistory) Len() int { return len(h.samples) - h.head }
