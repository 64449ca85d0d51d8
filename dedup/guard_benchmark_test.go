package dedup_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/memoryengine"
)

func Benchmark_IsNew_With_FreshKeys(b *testing.B) {
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(b, err, "creating the guard failed")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		key, _ := BuildIdempotencyKey(fmt.Sprintf("bench-key-%d", i))

		isNew, decideErr := guard.IsNew(ctx, key)
		if decideErr != nil || !isNew {
			b.Fatal("a fresh key must be accepted")
		}
	}
}

func Benchmark_IsNew_With_DuplicateKey(b *testing.B) {
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(b, err, "creating the guard failed")

	key := NewIdempotencyKey()
	_, err = guard.IsNew(ctx, key)
	assert.NoError(b, err, "error in arranging benchmark data")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		isNew, decideErr := guard.IsNew(ctx, key)
		if decideErr != nil || isNew {
			b.Fatal("a seen key must be rejected")
		}
	}
}

func Benchmark_IsNew_Parallel_With_FreshKeys(b *testing.B) {
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(b, err, "creating the guard failed")

	var counter atomic.Int64

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key, _ := BuildIdempotencyKey(fmt.Sprintf("bench-key-%d", counter.Add(1)))

			if _, decideErr := guard.IsNew(ctx, key); decideErr != nil {
				b.Fatal(decideErr)
			}
		}
	})
}
