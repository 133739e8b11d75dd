package lifecycle

import (
	"runtime"
	"time"
)

const bytesPerMB = 1024 * 1024

// MemoryReading is the heap in use (allocated minus free) at one instant.
type MemoryReading struct {
	InUseBytes uint64
	TakenAt    time.Time
}

// MB returns the reading in megabytes.
func (r MemoryReading) MB() float64 {
	return float64(r.InUseBytes) / bytesPerMB
}

// MemoryReader takes a MemoryReading.
type MemoryReader func() MemoryReading

// ReadRuntimeMemory reads the Go heap. HeapAlloc counts bytes of allocated heap
// objects, which excludes spans the runtime holds as free.
func ReadRuntimeMemory() MemoryReading {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryReading{InUseBytes: ms.HeapAlloc, TakenAt: time.Now()}
}
