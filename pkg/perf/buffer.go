// Package perf records per-request-cycle timing breakdowns in a fixed
// capacity FIFO buffer and exposes rolling averages for the /perf endpoint.
package perf

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of samples retained per data source.
const DefaultCapacity = 50

// Sample is the timing breakdown of one request cycle, in milliseconds.
type Sample struct {
	FetchMs    float64   `json:"fetchTimeMs"`
	ParseMs    float64   `json:"parseTimeMs"`
	EnrichMs   float64   `json:"enrichTimeMs"`
	TotalMs    float64   `json:"totalTimeMs"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Averages holds the arithmetic mean over all retained samples.
type Averages struct {
	FetchMs  float64 `json:"fetchTimeMs"`
	ParseMs  float64 `json:"parseTimeMs"`
	EnrichMs float64 `json:"enrichTimeMs"`
	TotalMs  float64 `json:"totalTimeMs"`
}

// Buffer is a bounded FIFO of timing samples. At capacity, an insertion
// evicts exactly the oldest sample.
type Buffer struct {
	mu       sync.Mutex
	samples  []Sample
	capacity int
}

// NewBuffer creates a buffer with DefaultCapacity.
func NewBuffer() *Buffer {
	return NewBufferWithCapacity(DefaultCapacity)
}

// NewBufferWithCapacity creates a buffer with an explicit capacity.
func NewBufferWithCapacity(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		samples:  make([]Sample, 0, capacity),
		capacity: capacity,
	}
}

// Record appends a sample, evicting the oldest when full.
func (b *Buffer) Record(s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) >= b.capacity {
		copy(b.samples, b.samples[1:])
		b.samples = b.samples[:len(b.samples)-1]
	}
	b.samples = append(b.samples, s)
}

// Last returns the most recent sample, if any.
func (b *Buffer) Last() (Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Average computes the arithmetic mean over all retained samples. An empty
// buffer averages to zeros, never NaN.
func (b *Buffer) Average() Averages {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.samples)
	if n == 0 {
		return Averages{}
	}

	var avg Averages
	for _, s := range b.samples {
		avg.FetchMs += s.FetchMs
		avg.ParseMs += s.ParseMs
		avg.EnrichMs += s.EnrichMs
		avg.TotalMs += s.TotalMs
	}
	avg.FetchMs /= float64(n)
	avg.ParseMs /= float64(n)
	avg.EnrichMs /= float64(n)
	avg.TotalMs /= float64(n)
	return avg
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
