package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("record not found")

// Record is one persisted sensor document. Documents are schemaless: the
// ingest path writes {topic, message, time_sensor, data_sensor, timestamp},
// the create endpoint writes whatever the caller sent. The store adds "id".
type Record = map[string]any

// Group is a set of records sharing the same time_sensor value.
type Group struct {
	TimeSensor any      `json:"time_sensor"`
	Data       []Record `json:"data"`
}

// Storage defines the document collection operations used by the ingest
// pipeline and the query API.
type Storage interface {
	// Insert persists doc and returns it with the assigned id.
	Insert(ctx context.Context, doc Record) (Record, error)
	// Get looks up a record by id.
	Get(ctx context.Context, id int64) (Record, error)
	// Update shallow-merges patch into the stored document and returns the result.
	Update(ctx context.Context, id int64, patch Record) (Record, error)
	// Delete removes the record.
	Delete(ctx context.Context, id int64) error
	// ListGrouped groups all records by their time_sensor value, orders groups
	// by the newest member timestamp descending, and returns the page-th slice
	// of limit groups (1-based; pages below 1 behave like page 1).
	ListGrouped(ctx context.Context, page, limit int) ([]Group, error)
	// CountGroups returns the number of distinct time_sensor groups.
	CountGroups(ctx context.Context) (int64, error)
}
