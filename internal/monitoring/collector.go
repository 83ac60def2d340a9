// internal/monitoring/collector.go
package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"das-service/internal/domain"

	"go.uber.org/zap"
)

// Collector counts pipeline outcomes for the health endpoint. It implements
// das.Observer and is safe for concurrent use.
type Collector struct {
	logger *zap.Logger

	processed       atomic.Int64
	warnings        atomic.Int64
	totalLatencyNs  atomic.Int64
	mu              sync.Mutex
	rejectedReasons map[string]int64
	issueKinds      map[domain.IssueKind]int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Processed              int64                      `json:"processed"`
	Rejected               int64                      `json:"rejected"`
	RejectedByReason       map[string]int64           `json:"rejectedByReason"`
	ReconciliationWarnings int64                      `json:"reconciliationWarnings"`
	IssuesByKind           map[domain.IssueKind]int64 `json:"issuesByKind"`
	AverageLatency         string                     `json:"averageLatency"`
}

// NewCollector creates an empty collector.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:          logger,
		rejectedReasons: make(map[string]int64),
		issueKinds:      make(map[domain.IssueKind]int64),
	}
}

func (c *Collector) DocumentProcessed(rec *domain.FiscalRecord, elapsed time.Duration) {
	c.processed.Add(1)
	c.totalLatencyNs.Add(elapsed.Nanoseconds())
	if rec.Taxes.ReconciliationWarning {
		c.warnings.Add(1)
		c.logger.Warn("divergência entre total declarado e soma dos tributos",
			zap.String("delta", rec.Taxes.ReconciliationDelta.StringFixed(2)))
	}

	c.mu.Lock()
	for _, issue := range rec.Metadata.Issues {
		c.issueKinds[issue.Kind]++
	}
	c.mu.Unlock()
}

func (c *Collector) DocumentRejected(reason string) {
	c.mu.Lock()
	c.rejectedReasons[reason]++
	c.mu.Unlock()
}

// Snapshot copies the current counters.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Processed:              c.processed.Load(),
		ReconciliationWarnings: c.warnings.Load(),
		RejectedByReason:       make(map[string]int64),
		IssuesByKind:           make(map[domain.IssueKind]int64),
		AverageLatency:         "0s",
	}

	c.mu.Lock()
	for reason, n := range c.rejectedReasons {
		s.RejectedByReason[reason] = n
		s.Rejected += n
	}
	for kind, n := range c.issueKinds {
		s.IssuesByKind[kind] = n
	}
	c.mu.Unlock()

	if s.Processed > 0 {
		s.AverageLatency = time.Duration(c.totalLatencyNs.Load() / s.Processed).String()
	}
	return s
}

// TopIssues returns the n most frequent issue kinds, most frequent first.
func (s Snapshot) TopIssues(n int) []domain.IssueKind {
	kinds := make([]domain.IssueKind, 0, len(s.IssuesByKind))
	for k := range s.IssuesByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if s.IssuesByKind[kinds[i]] == s.IssuesByKind[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return s.IssuesByKind[kinds[i]] > s.IssuesByKind[kinds[j]]
	})
	if n >= 0 && len(kinds) > n {
		kinds = kinds[:n]
	}
	return kinds
}
