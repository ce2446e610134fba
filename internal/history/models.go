package history

import (
	"time"
)

// Entry records one drag of tree rows, applied or refused.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Drag request
	Rows         []int `json:"rows"`
	InsertBefore int   `json:"insert_before"`

	// Outcome
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`

	// Moved holds the tree ids of the dragged rows.
	Moved []string `json:"moved,omitempty"`
	// ZOrder is the draw order after the drag, top-most first.
	ZOrder []string `json:"zorder,omitempty"`
}

// QueryOptions specifies filters and pagination for journal queries.
type QueryOptions struct {
	// Filters
	AppliedOnly  bool
	RejectedOnly bool
	Reason       string    // Only entries refused for this reason
	Moved        string    // Only entries that dragged this id
	After        time.Time // Only entries after this time
	Before       time.Time // Only entries before this time

	// Pagination
	Limit  int // Maximum number of results (0 = no limit)
	Offset int // Number of results to skip
}

// Stats provides aggregate statistics about the journal.
type Stats struct {
	TotalEntries int64            `json:"total_entries"`
	Applied      int64            `json:"applied"`
	Rejected     int64            `json:"rejected"`
	ReasonCounts map[string]int64 `json:"reason_counts"`
	ApplyRate    float64          `json:"apply_rate"`
}

// PruneOptions specifies criteria for pruning old entries. The first
// non-zero field wins.
type PruneOptions struct {
	OlderThan time.Duration // Delete entries older than this duration
	KeepLast  int           // Keep only the last N entries
	Before    time.Time     // Delete entries before this time
}

// PruneResult contains the result of a prune operation.
type PruneResult struct {
	DeletedCount int64 `json:"deleted_count"`
}
