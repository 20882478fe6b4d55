package balancer

import (
	"container/list"
	"sync"

	"github.com/dom/inhouse-league/internal/domain"
)

// DefaultRoleCacheSize bounds the number of memoized preference tuples.
const DefaultRoleCacheSize = 1024

// perms120 holds every permutation of the five positions in lexicographic
// order. Buckets built from it stay lexicographically sorted for free.
var perms120 = buildPermutations()

func buildPermutations() [][5]domain.Role {
	var out [][5]domain.Role
	var cur [5]domain.Role
	var used [6]bool
	var walk func(depth int)
	walk = func(depth int) {
		if depth == 5 {
			out = append(out, cur)
			return
		}
		for r := domain.RoleCarry; r <= domain.RoleHardSupport; r++ {
			if used[r] {
				continue
			}
			used[r] = true
			cur[depth] = r
			walk(depth + 1)
			used[r] = false
		}
	}
	walk(0)
	return out
}

// RoleCache memoizes the optimal role permutations for a 5-tuple of
// preference sets. It is a pure function of its key with an LRU bound, safe
// for concurrent use, and may be shared across balancer calls.
type RoleCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[[5]domain.RoleSet]*list.Element
	order    *list.List
}

type roleCacheEntry struct {
	key   [5]domain.RoleSet
	perms [][5]domain.Role
}

// NewRoleCache creates a cache holding up to capacity preference tuples.
func NewRoleCache(capacity int) *RoleCache {
	if capacity <= 0 {
		capacity = DefaultRoleCacheSize
	}
	return &RoleCache{
		capacity: capacity,
		entries:  make(map[[5]domain.RoleSet]*list.Element),
		order:    list.New(),
	}
}

// OptimalPermutations returns every role permutation achieving the minimum
// off-role count for the given ordered preference tuple, lexicographically
// sorted. The result is shared; callers must not mutate it.
func (c *RoleCache) OptimalPermutations(prefs [5]domain.RoleSet) [][5]domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[prefs]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*roleCacheEntry).perms
	}

	perms := optimalPermutations(prefs)
	el := c.order.PushFront(&roleCacheEntry{key: prefs, perms: perms})
	c.entries[prefs] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*roleCacheEntry).key)
	}
	return perms
}

// MinOffRole returns the off-role count every optimal permutation shares.
func (c *RoleCache) MinOffRole(prefs [5]domain.RoleSet) int {
	perms := c.OptimalPermutations(prefs)
	return offRoleCount(prefs, perms[0])
}

func optimalPermutations(prefs [5]domain.RoleSet) [][5]domain.Role {
	best := 6
	var bucket [][5]domain.Role
	for _, perm := range perms120 {
		n := offRoleCount(prefs, perm)
		if n < best {
			best = n
			bucket = bucket[:0]
		}
		if n == best {
			bucket = append(bucket, perm)
		}
	}
	out := make([][5]domain.Role, len(bucket))
	copy(out, bucket)
	return out
}

func offRoleCount(prefs [5]domain.RoleSet, perm [5]domain.Role) int {
	n := 0
	for i := 0; i < 5; i++ {
		if !prefs[i].Has(perm[i]) {
			n++
		}
	}
	return n
}
