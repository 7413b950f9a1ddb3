package notes

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the pipeline.
var metrics struct {
	ProcessRequests    atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	TranscriptRequests atomic.Int64
	TranscriptErrors   atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	PersistErrors      atomic.Int64
}

// IncrLLMCall and IncrLLMError are exported for the generator clients.
func IncrLLMCall()  { metrics.LLMCalls.Add(1) }
func IncrLLMError() { metrics.LLMErrors.Add(1) }

// IncrTranscriptRequest is exported for the transcript source.
func IncrTranscriptRequest() { metrics.TranscriptRequests.Add(1) }

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"process_requests":    metrics.ProcessRequests.Load(),
		"cache_hits":          metrics.CacheHits.Load(),
		"cache_misses":        metrics.CacheMisses.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_errors":   metrics.TranscriptErrors.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"persist_errors":      metrics.PersistErrors.Load(),
	}
}

// FormatMetrics renders the counters as plain text for the /metrics endpoint.
func FormatMetrics() string {
	snap := GetMetrics()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, snap[k])
	}
	return sb.String()
}
