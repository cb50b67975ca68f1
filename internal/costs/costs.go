// Package costs persists monthly vendor cost records keyed by
// (user, vendor, identifier, month).
package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/vnmchuo/vendor-spend/internal/month"
)

const DefaultIdentifier = "Default Configuration"

// Key identifies one cost series: a user's configuration for a vendor.
type Key struct {
	UserID     int64
	Vendor     string
	Identifier string
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.UserID, k.Vendor, k.Identifier)
}

type Point struct {
	Month month.Month `json:"month"`
	Cost  float64     `json:"cost"`
}

type Record struct {
	ID        int64
	Key       Key
	Month     month.Month
	Cost      float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Record) Point() Point {
	return Point{Month: r.Month, Cost: r.Cost}
}

type Store interface {
	// Find returns every record for the key in no particular order.
	Find(ctx context.Context, key Key) ([]Record, error)
	// Upsert inserts or updates one record per point in a single
	// transaction, stamping updated_at with at.
	Upsert(ctx context.Context, key Key, points []Point, at time.Time) error
	// Delete removes every record for the key.
	Delete(ctx context.Context, key Key) error
}

// StorageError wraps any failure talking to the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
