// Package selection picks the next candidate for a role. The choice is pure
// and deterministic: the same inputs always yield the same member.
package selection

import (
	"sort"

	"github.com/rolesclub/rolesbot/internal/models"
)

// ChooseCandidate returns the id of the member to offer the role to, or ""
// when the eligible pool is empty.
//
// Tiers are scanned in order and the first non-empty one wins:
//
//  1. level >= difficulty, role not yet done this cycle
//  2. level >= difficulty, role already done (repeaters, when nobody fresh
//     remains at adequate level)
//  3. descending level from difficulty-1 down to 1; within each level first
//     the fresh members, then the repeaters
//
// Within a tier, ties break by fewest roles completed this cycle, then by
// name, then by id. Guests are eligible. cycles is the round ledger keyed by
// member id; members without an entry fall back to their catalog history.
func ChooseCandidate(members []*models.Member, role models.Role, cycles map[string][]string, excluded map[string]bool) string {
	pool := make([]*models.Member, 0, len(members))
	for _, m := range members {
		if excluded[m.ID] {
			continue
		}
		pool = append(pool, m)
	}
	if len(pool) == 0 {
		return ""
	}

	doneList := func(m *models.Member) []string {
		if done, ok := cycles[m.ID]; ok {
			return done
		}
		return m.RolesDone
	}
	hasDone := func(m *models.Member) bool {
		for _, r := range doneList(m) {
			if r == role.Name {
				return true
			}
		}
		return false
	}

	pickFrom := func(match func(m *models.Member) bool) string {
		var tier []*models.Member
		for _, m := range pool {
			if match(m) {
				tier = append(tier, m)
			}
		}
		if len(tier) == 0 {
			return ""
		}
		sort.Slice(tier, func(i, j int) bool {
			di, dj := len(doneList(tier[i])), len(doneList(tier[j]))
			if di != dj {
				return di < dj
			}
			if tier[i].Name != tier[j].Name {
				return tier[i].Name < tier[j].Name
			}
			return tier[i].ID < tier[j].ID
		})
		return tier[0].ID
	}

	if id := pickFrom(func(m *models.Member) bool {
		return m.Level >= role.Difficulty && !hasDone(m)
	}); id != "" {
		return id
	}
	if id := pickFrom(func(m *models.Member) bool {
		return m.Level >= role.Difficulty && hasDone(m)
	}); id != "" {
		return id
	}

	for level := role.Difficulty - 1; level >= 1; level-- {
		if id := pickFrom(func(m *models.Member) bool {
			return m.Level == level && !hasDone(m)
		}); id != "" {
			return id
		}
		if id := pickFrom(func(m *models.Member) bool {
			return m.Level == level && hasDone(m)
		}); id != "" {
			return id
		}
	}

	return ""
}
