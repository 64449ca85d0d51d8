// Package redisengine provides a Redis-backed implementation of the
// dedup.KeyStore contract using github.com/redis/go-redis/v9.
//
// The atomic insert-if-absent primitive maps to a single SETNX call; Redis
// arbitrates concurrent callers racing on the same key. The stored value is
// the JSON-encoded processing record.
//
// Records live forever by default, matching the contract that a record is
// deleted only by out-of-band administrative reconciliation. Deployments that
// bound their retry horizon can set a TTL via WithTTL; expiring a key before
// the last retry of its logical request reintroduces duplicate execution.
package redisengine
