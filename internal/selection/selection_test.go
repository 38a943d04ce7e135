package selection

import (
	"testing"

	"github.com/rolesclub/rolesbot/internal/models"
)

func member(name, id string, level int, done ...string) *models.Member {
	return &models.Member{Name: name, ID: id, Level: level, RolesDone: done}
}

func cyclesOf(members []*models.Member) map[string][]string {
	cycles := make(map[string][]string, len(members))
	for _, m := range members {
		cycles[m.ID] = m.RolesDone
	}
	return cycles
}

func TestChooseCandidateTiers(t *testing.T) {
	role := models.Role{Name: "Toastmaster", Difficulty: 3}

	tests := []struct {
		name    string
		members []*models.Member
		want    string
	}{
		{
			name: "fresh at adequate level beats repeater",
			members: []*models.Member{
				member("Ana", "111", 3, "Toastmaster"),
				member("Beto", "222", 3),
			},
			want: "222",
		},
		{
			name: "repeater at adequate level beats fresh below level",
			members: []*models.Member{
				member("Ana", "111", 3, "Toastmaster"),
				member("Beto", "222", 2),
			},
			want: "111",
		},
		{
			name: "fallback scans levels downward",
			members: []*models.Member{
				member("Ana", "111", 1),
				member("Beto", "222", 2),
			},
			want: "222",
		},
		{
			name: "fresh first within a fallback level",
			members: []*models.Member{
				member("Ana", "111", 2, "Toastmaster"),
				member("Beto", "222", 2),
			},
			want: "222",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChooseCandidate(tc.members, role, cyclesOf(tc.members), nil)
			if got != tc.want {
				t.Errorf("ChooseCandidate = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestChooseCandidateTieBreaks(t *testing.T) {
	role := models.Role{Name: "Evaluador", Difficulty: 1}

	tests := []struct {
		name    string
		members []*models.Member
		want    string
	}{
		{
			name: "fewest completed this cycle wins",
			members: []*models.Member{
				member("Ana", "111", 1, "Otro"),
				member("Beto", "222", 1),
			},
			want: "222",
		},
		{
			name: "then lexicographic name",
			members: []*models.Member{
				member("Beto", "222", 1),
				member("Ana", "111", 1),
			},
			want: "111",
		},
		{
			name: "then id",
			members: []*models.Member{
				member("Ana", "555", 1),
				member("Ana", "111", 1),
			},
			want: "111",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChooseCandidate(tc.members, role, cyclesOf(tc.members), nil)
			if got != tc.want {
				t.Errorf("ChooseCandidate = %q, want %q", got, tc.want)
			}
		})
	}
}

// All members below the required level: the fallback descends to level 1 and
// picks by name order.
func TestChooseCandidateFallbackBelowLevel(t *testing.T) {
	role := models.Role{Name: "Director", Difficulty: 3}
	members := []*models.Member{
		member("Carla", "333", 1),
		member("Ana", "111", 1),
		member("Beto", "222", 1),
	}

	got := ChooseCandidate(members, role, cyclesOf(members), nil)
	if got != "111" {
		t.Errorf("ChooseCandidate = %q, want Ana (111)", got)
	}
}

func TestChooseCandidateExclusions(t *testing.T) {
	role := models.Role{Name: "Evaluador", Difficulty: 1}
	members := []*models.Member{
		member("Ana", "111", 1),
		member("Beto", "222", 1),
	}

	got := ChooseCandidate(members, role, cyclesOf(members), map[string]bool{"111": true})
	if got != "222" {
		t.Errorf("ChooseCandidate with Ana excluded = %q, want 222", got)
	}

	got = ChooseCandidate(members, role, cyclesOf(members), map[string]bool{"111": true, "222": true})
	if got != "" {
		t.Errorf("ChooseCandidate with empty pool = %q, want none", got)
	}
}

func TestChooseCandidateIncludesGuests(t *testing.T) {
	role := models.Role{Name: "Evaluador", Difficulty: 1}
	members := []*models.Member{
		{Name: "Invitada", ID: "111", IsGuest: true, Level: 1},
	}

	if got := ChooseCandidate(members, role, cyclesOf(members), nil); got != "111" {
		t.Errorf("guest should be eligible, got %q", got)
	}
}

// Repeated calls on unchanged inputs must return the same member and leave
// the inputs untouched.
func TestChooseCandidateIsPure(t *testing.T) {
	role := models.Role{Name: "Toastmaster", Difficulty: 2}
	members := []*models.Member{
		member("Ana", "111", 2, "Otro"),
		member("Beto", "222", 2),
		member("Carla", "333", 1),
	}
	cycles := cyclesOf(members)
	excluded := map[string]bool{"333": true}

	first := ChooseCandidate(members, role, cycles, excluded)
	for i := 0; i < 10; i++ {
		if got := ChooseCandidate(members, role, cycles, excluded); got != first {
			t.Fatalf("call %d = %q, want %q", i, got, first)
		}
	}

	if len(cycles["111"]) != 1 || len(cycles["222"]) != 0 {
		t.Error("cycles mutated by selection")
	}
	if !excluded["333"] || len(excluded) != 1 {
		t.Error("exclusions mutated by selection")
	}
	if members[0].Name != "Ana" || members[1].Name != "Beto" || members[2].Name != "Carla" {
		t.Error("member order mutated by selection")
	}
}
