package ordering

import (
	"errors"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// ErrNilResolveFunc is returned when a nil resolve function is supplied to NewResolver.
var ErrNilResolveFunc = errors.New("nil resolve function supplied")

// ResolveFunc extracts the partition id that owns a request, typically the id
// of the owning entity (cart id, account id). It must be deterministic and
// pure: the same request always maps to the same partition.
type ResolveFunc func(request any) (dedup.PartitionID, error)

// Resolver derives a partition identifier from a request.
//
// The resolver itself adds no state; it exists so that callers share one
// validated resolution rule instead of scattering ad-hoc key extraction.
type Resolver struct {
	resolve ResolveFunc
}

// NewResolver creates a new Resolver around the given resolve function.
func NewResolver(resolve ResolveFunc) (Resolver, error) {
	if resolve == nil {
		return Resolver{}, ErrNilResolveFunc
	}

	return Resolver{resolve: resolve}, nil
}

// Resolve maps the request to its partition.
// Returns an error if the resolve function fails or yields an empty partition id.
func (r Resolver) Resolve(request any) (dedup.PartitionID, error) {
	partition, err := r.resolve(request)
	if err != nil {
		return "", err
	}

	if partition == "" {
		return "", ErrEmptyPartitionID
	}

	return partition, nil
}
