package vendor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
)

const (
	AWS     = "aws"
	Datadog = "datadog"
)

// Known lists every vendor tag a configuration may carry.
var Known = []string{AWS, Datadog}

func IsKnown(v string) bool {
	return slices.Contains(Known, v)
}

var displayNames = map[string]string{
	AWS:     "AWS",
	Datadog: "Datadog",
}

// DisplayName is the human readable vendor name used in messages.
func DisplayName(v string) string {
	if name, ok := displayNames[v]; ok {
		return name
	}
	return v
}

var (
	ErrUnsupportedVendor     = errors.New("unsupported vendor")
	ErrConfigurationNotFound = errors.New("vendor configuration not found")
	ErrUnauthorized          = errors.New("vendor rejected credentials")
)

// Credentials holds resolved secret material keyed by the names each
// Source documents. It never leaves the vendor call path.
type Credentials map[string]string

func (c Credentials) Require(names ...string) error {
	for _, n := range names {
		if c[n] == "" {
			return fmt.Errorf("missing credential %q", n)
		}
	}
	return nil
}

// Source is a per-vendor billing adapter. Months without billing history
// are absent from the result rather than reported as errors.
type Source interface {
	Vendor() string
	MonthlyCosts(ctx context.Context, creds Credentials, r month.Range) ([]costs.Point, error)
}

// FetchError wraps any failure to obtain costs from a vendor.
type FetchError struct {
	Key costs.Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s costs for configuration %q: %v", e.Key.Vendor, e.Key.Identifier, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func UnsupportedVendor(v string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedVendor, v)
}
