package balancer

import (
	"testing"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefsOf(roleLists ...[]domain.Role) [5]domain.RoleSet {
	var prefs [5]domain.RoleSet
	for i, roles := range roleLists {
		prefs[i] = domain.NewRoleSet(roles...)
	}
	return prefs
}

func TestRoleCache_DistinctPreferencesZeroOffRole(t *testing.T) {
	cache := NewRoleCache(16)
	prefs := prefsOf(
		[]domain.Role{domain.RoleCarry},
		[]domain.Role{domain.RoleMid},
		[]domain.Role{domain.RoleOfflane},
		[]domain.Role{domain.RoleSoftSupport},
		[]domain.Role{domain.RoleHardSupport},
	)

	perms := cache.OptimalPermutations(prefs)
	require.Len(t, perms, 1)
	assert.Equal(t, [5]domain.Role{
		domain.RoleCarry, domain.RoleMid, domain.RoleOfflane,
		domain.RoleSoftSupport, domain.RoleHardSupport,
	}, perms[0])
	assert.Equal(t, 0, cache.MinOffRole(prefs))
}

func TestRoleCache_AllFlexibleYieldsAllPermutations(t *testing.T) {
	cache := NewRoleCache(16)
	var prefs [5]domain.RoleSet
	for i := range prefs {
		prefs[i] = domain.AllRolesSet
	}

	perms := cache.OptimalPermutations(prefs)
	assert.Len(t, perms, 120)
	assert.Equal(t, 0, cache.MinOffRole(prefs))

	// Lexicographic order.
	for i := 1; i < len(perms); i++ {
		assert.True(t, permLess(perms[i-1], perms[i]), "perm %d not in order", i)
	}
}

func permLess(a, b [5]domain.Role) bool {
	for i := 0; i < 5; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestRoleCache_ForcedOffRole(t *testing.T) {
	cache := NewRoleCache(16)
	// Everyone insists on carry: four of five must be off-role.
	var prefs [5]domain.RoleSet
	for i := range prefs {
		prefs[i] = domain.NewRoleSet(domain.RoleCarry)
	}

	assert.Equal(t, 4, cache.MinOffRole(prefs))
	perms := cache.OptimalPermutations(prefs)
	for _, perm := range perms {
		assert.Equal(t, 4, offRoleCount(prefs, perm))
	}
}

func TestRoleCache_MinimalityExhaustive(t *testing.T) {
	cache := NewRoleCache(16)
	prefs := prefsOf(
		[]domain.Role{domain.RoleCarry, domain.RoleMid},
		[]domain.Role{domain.RoleCarry, domain.RoleMid},
		[]domain.Role{domain.RoleOfflane},
		[]domain.Role{domain.RoleOfflane},
		[]domain.Role{domain.RoleHardSupport},
	)

	min := cache.MinOffRole(prefs)
	perms := cache.OptimalPermutations(prefs)

	// Every returned permutation achieves the minimum, and nothing beats it.
	for _, perm := range perms {
		assert.Equal(t, min, offRoleCount(prefs, perm))
	}
	for _, perm := range perms120 {
		assert.GreaterOrEqual(t, offRoleCount(prefs, perm), min)
	}
}

func TestRoleCache_SameSliceOnRepeatLookup(t *testing.T) {
	cache := NewRoleCache(16)
	var prefs [5]domain.RoleSet
	for i := range prefs {
		prefs[i] = domain.AllRolesSet
	}

	first := cache.OptimalPermutations(prefs)
	second := cache.OptimalPermutations(prefs)
	assert.Equal(t, &first[0], &second[0], "cache hit should return the memoized slice")
}

func TestRoleCache_EvictsBeyondCapacity(t *testing.T) {
	cache := NewRoleCache(2)

	a := prefsOf(
		[]domain.Role{domain.RoleCarry}, []domain.Role{domain.RoleMid},
		[]domain.Role{domain.RoleOfflane}, []domain.Role{domain.RoleSoftSupport},
		[]domain.Role{domain.RoleHardSupport},
	)
	b := prefsOf(
		[]domain.Role{domain.RoleMid}, []domain.Role{domain.RoleCarry},
		[]domain.Role{domain.RoleOfflane}, []domain.Role{domain.RoleSoftSupport},
		[]domain.Role{domain.RoleHardSupport},
	)
	c := prefsOf(
		[]domain.Role{domain.RoleOfflane}, []domain.Role{domain.RoleCarry},
		[]domain.Role{domain.RoleMid}, []domain.Role{domain.RoleSoftSupport},
		[]domain.Role{domain.RoleHardSupport},
	)

	firstA := cache.OptimalPermutations(a)
	cache.OptimalPermutations(b)
	cache.OptimalPermutations(c) // evicts a

	assert.Len(t, cache.entries, 2)

	// Recomputation after eviction still gives the same answer.
	again := cache.OptimalPermutations(a)
	assert.Equal(t, firstA, again)
}

func TestRoleCache_ConcurrentAccess(t *testing.T) {
	cache := NewRoleCache(8)
	var prefs [5]domain.RoleSet
	for i := range prefs {
		prefs[i] = domain.AllRolesSet
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				perms := cache.OptimalPermutations(prefs)
				if len(perms) != 120 {
					t.Errorf("got %d perms", len(perms))
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	close(done)
}
