// Package lock serializes reconciliations that share an identifier key, so two
// requests carrying the same unseen email or phone cannot both create a
// primary.
package lock

import (
	"context"
	"hash/fnv"
	"sort"
)

// numShards bounds the memory of the local lock. Unrelated keys landing in the
// same shard only wait for each other.
const numShards = 128

// Local is an in-process Locker over FNV-sharded semaphores.
type Local struct {
	shards [numShards]chan struct{}
}

func NewLocal() *Local {
	l := &Local{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock acquires the shards of every key in ascending shard order, so
// overlapping key sets never deadlock. It gives up when ctx is done.
func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	shards := shardsFor(keys)
	acquired := make([]int, 0, len(shards))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-l.shards[acquired[i]]
		}
	}

	for _, shard := range shards {
		select {
		case l.shards[shard] <- struct{}{}:
			acquired = append(acquired, shard)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func shardsFor(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	shards := make([]int, 0, len(keys))
	for _, key := range keys {
		shard := int(hashKey(key) % numShards)
		if _, ok := seen[shard]; ok {
			continue
		}
		seen[shard] = struct{}{}
		shards = append(shards, shard)
	}
	sort.Ints(shards)
	return shards
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Noop never blocks. Only suitable where another layer already serializes.
type Noop struct{}

func (Noop) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}
