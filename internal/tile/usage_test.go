package tile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageTracker(t *testing.T) {
	u := NewUsageTracker()
	a, b := NewOwner(), NewOwner()

	assert.False(t, u.IsUsed())

	u.Use(a)
	assert.True(t, u.IsUsed())

	u.Use(a)
	assert.Equal(t, 1, u.Count(), "Use is idempotent")

	u.Use(b)
	assert.Equal(t, 2, u.Count())

	u.Release(a)
	u.Release(a)
	assert.Equal(t, 1, u.Count(), "Release is idempotent")
	assert.True(t, u.IsUsed())

	u.Release(b)
	assert.False(t, u.IsUsed())
}

func TestUsageTrackerReleaseUnknownOwner(t *testing.T) {
	u := NewUsageTracker()
	u.Release(NewOwner())
	assert.False(t, u.IsUsed())
}

func TestUsageTrackerConcurrent(t *testing.T) {
	u := NewUsageTracker()
	owners := make([]Owner, 64)
	for i := range owners {
		owners[i] = NewOwner()
	}

	var wg sync.WaitGroup
	for _, o := range owners {
		wg.Add(1)
		go func(o Owner) {
			defer wg.Done()
			u.Use(o)
			u.Use(o)
		}(o)
	}
	wg.Wait()
	assert.Equal(t, len(owners), u.Count())

	for _, o := range owners {
		wg.Add(1)
		go func(o Owner) {
			defer wg.Done()
			u.Release(o)
		}(o)
	}
	wg.Wait()
	assert.False(t, u.IsUsed())
}
