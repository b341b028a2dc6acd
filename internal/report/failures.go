package report

import (
	"sync"
	"time"
)

// FailureSample is one failed signal delivery.
type FailureSample struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Error  string    `json:"error"`
}

// FailureLog keeps the last N signal failures for the /failures endpoint.
type FailureLog struct {
	samples []FailureSample
	maxSize int
	total   uint64
	mu      sync.RWMutex
}

// NewFailureLog creates a failure log with fixed size
func NewFailureLog(maxSize int) *FailureLog {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &FailureLog{
		samples: make([]FailureSample, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a failure sample (ring buffer)
func (f *FailureLog) Record(action string, err error) {
	if err == nil {
		return
	}

	sample := FailureSample{
		Time:   time.Now(),
		Action: action,
		Error:  err.Error(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.total++
	if len(f.samples) >= f.maxSize {
		f.samples = f.samples[1:]
	}
	f.samples = append(f.samples, sample)
}

// Recent returns up to n failures, newest first
func (f *FailureLog) Recent(n int) []FailureSample {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.samples) {
		n = len(f.samples)
	}

	result := make([]FailureSample, n)
	for i := 0; i < n; i++ {
		result[i] = f.samples[len(f.samples)-1-i]
	}
	return result
}

// Total returns how many failures were ever recorded.
func (f *FailureLog) Total() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.total
}
