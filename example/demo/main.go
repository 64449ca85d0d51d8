// Demo wires the guard and the ordering applier together for a small
// cart-notification flow: duplicate submissions of the same request are
// suppressed, and cart snapshot updates are applied in per-cart order
// even when they arrive shuffled.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/memoryengine"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/ordering"
)

type cartSnapshot struct {
	CartID string   `json:"cart_id"`
	Items  []string `json:"items"`
	Total  int      `json:"total"`
}

// slogAdapter bridges *slog.Logger to the dedup.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

func main() {
	ctx := context.Background()
	logger := slogAdapter{logger: slog.New(slog.NewTextHandler(os.Stdout, nil))}

	guard, err := dedup.NewGuard(
		memoryengine.NewKeyStore(),
		dedup.WithLogger(logger),
		dedup.WithStoreTimeout(2*time.Second),
	)
	if err != nil {
		logger.Error("creating the guard failed", "error", err.Error())
		os.Exit(1)
	}

	// A client submits the same notification request twice (e.g. a retry
	// after a lost response). Only the first submission may send the email.
	requestKey, _ := dedup.BuildIdempotencyKey("order-confirmation-4711")

	for attempt := 1; attempt <= 2; attempt++ {
		isNew, decideErr := guard.IsNew(ctx, requestKey)
		if decideErr != nil {
			logger.Error("decision failed, retry the request", "error", decideErr.Error())
			os.Exit(1)
		}

		if isNew {
			logger.Info("sending order confirmation", "attempt", attempt)
		} else {
			logger.Info("duplicate submission, skipping", "attempt", attempt)
		}
	}

	// Cart snapshot updates: the sender assigns per-cart sequence numbers,
	// the consumer applies them in order even when delivery shuffles them.
	sequencer := ordering.NewSequencer()

	applier, err := ordering.NewApplier(
		func(_ context.Context, update ordering.Update) error {
			var snapshot cartSnapshot
			if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(update.SnapshotJSON, &snapshot); unmarshalErr != nil {
				return unmarshalErr
			}

			logger.Info("cart state overwritten",
				"cart", snapshot.CartID,
				"sequence", update.SequenceNumber,
				"total", snapshot.Total)

			return nil
		},
		ordering.WithLogger(logger),
		ordering.WithGapTimeout(5*time.Second),
	)
	if err != nil {
		logger.Error("creating the applier failed", "error", err.Error())
		os.Exit(1)
	}

	cart := dedup.PartitionID("cart-4711")
	var updates []ordering.Update

	for _, snapshot := range []cartSnapshot{
		{CartID: string(cart), Items: []string{"book"}, Total: 20},
		{CartID: string(cart), Items: []string{"book", "pen"}, Total: 23},
		{CartID: string(cart), Items: []string{"book", "pen", "mug"}, Total: 35},
	} {
		seq, seqErr := sequencer.Next(cart)
		if seqErr != nil {
			logger.Error("assigning a sequence number failed", "error", seqErr.Error())
			os.Exit(1)
		}

		payload, _ := jsoniter.ConfigFastest.Marshal(snapshot)

		update, buildErr := ordering.BuildUpdate(cart, seq, payload, time.Now())
		if buildErr != nil {
			logger.Error("building an update failed", "error", buildErr.Error())
			os.Exit(1)
		}

		updates = append(updates, update)
	}

	// Deliver them shuffled: 2 arrives first and is buffered until 1 closes the gap.
	for _, idx := range []int{1, 0, 2} {
		if applyErr := applier.Apply(ctx, updates[idx]); applyErr != nil {
			logger.Error("applying an update failed", "error", applyErr.Error())
			os.Exit(1)
		}
	}

	logger.Info("demo finished",
		"last_applied", applier.LastApplied(cart),
		"buffered", applier.BufferedCount(cart))
}
