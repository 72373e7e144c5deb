package persistence

import (
	"context"
	"time"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// DefaultWindow is the implicit query range when the caller gives no dates:
// the "recent" real-time view.
const DefaultWindow = 30 * time.Minute

// QueryFilter narrows a historical read. Zero times mean unset.
type QueryFilter struct {
	DeviceID string
	From     time.Time
	To       time.Time
	Page     int // 1-based
	Limit    int
}

func (f QueryFilter) normalized(now time.Time) QueryFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.From.IsZero() && f.To.IsZero() {
		f.From = now.Add(-DefaultWindow)
	}
	if f.To.IsZero() {
		f.To = now
	}
	return f
}

// Window returns the effective [from, to] range of the filter.
func (f QueryFilter) Window(now time.Time) (time.Time, time.Time) {
	n := f.normalized(now)
	return n.From, n.To
}

// Page is one page of readings, newest first.
type Page struct {
	Items       []model.SensorReading `json:"items"`
	TotalPages  int                   `json:"totalPages"`
	CurrentPage int                   `json:"currentPage"`
}

// Store is the append-only durable home of readings. Append failures are
// infrastructure faults and wrap model.ErrStoreUnavailable.
type Store interface {
	Append(ctx context.Context, reading model.SensorReading) error
	Query(ctx context.Context, filter QueryFilter) (Page, error)
}
