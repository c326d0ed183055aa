package ratings

import "sync"

const lockShards = 64

// placeLocks is a striped mutex set keyed by place id. Distinct places may
// share a shard; that only costs a little extra serialization, never
// correctness.
type placeLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *placeLocks) forPlace(placeID int64) *sync.Mutex {
	return &l.shards[uint64(placeID)%lockShards]
}
