package models

import (
	"errors"
	"testing"
)

func testCatalog() *Catalog {
	return &Catalog{
		Members: []*Member{
			{Name: "Ana", ID: "5211111111111", Level: 2, RolesDone: []string{}},
			{Name: "Beto", ID: "5212222222222", Level: 1, RolesDone: []string{}},
		},
		Roles: []Role{
			{Name: "Evaluador del tiempo", Difficulty: 1},
			{Name: "Toastmaster", Difficulty: 5},
			{Name: "Evaluador general", Difficulty: 5},
		},
	}
}

func TestFindMember(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr bool
	}{
		{"by id", "5211111111111", "5211111111111", false},
		{"by name", "Beto", "5212222222222", false},
		{"by name case-insensitive", "beto", "5212222222222", false},
		{"unknown", "Carla", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := cat.FindMember(tc.ref)
			if tc.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("FindMember(%q) error = %v, want ErrNotFound", tc.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindMember(%q) unexpected error: %v", tc.ref, err)
			}
			if m.ID != tc.wantID {
				t.Errorf("FindMember(%q) = %s, want %s", tc.ref, m.ID, tc.wantID)
			}
		})
	}
}

func TestAddMemberDuplicate(t *testing.T) {
	cat := testCatalog()
	err := cat.AddMember(&Member{Name: "Otra Ana", ID: "5211111111111", Level: 1})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("AddMember duplicate error = %v, want ErrDuplicateID", err)
	}
}

func TestRemoveMember(t *testing.T) {
	cat := testCatalog()
	if err := cat.RemoveMember("5211111111111"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if len(cat.Members) != 1 {
		t.Fatalf("members after remove = %d, want 1", len(cat.Members))
	}
	if !errors.Is(cat.RemoveMember("5211111111111"), ErrNotFound) {
		t.Error("second RemoveMember should be ErrNotFound")
	}
}

func TestRolesByDifficultyOrdersDescThenName(t *testing.T) {
	cat := testCatalog()
	roles := cat.RolesByDifficulty()

	want := []string{"Evaluador general", "Toastmaster", "Evaluador del tiempo"}
	for i, name := range want {
		if roles[i].Name != name {
			t.Errorf("roles[%d] = %s, want %s", i, roles[i].Name, name)
		}
	}
}

func TestRecordRoleCompletionResetsCycle(t *testing.T) {
	cat := testCatalog() // 3 roles
	id := "5211111111111"

	for _, role := range []string{"Toastmaster", "Evaluador general"} {
		if err := cat.RecordRoleCompletion(id, role); err != nil {
			t.Fatalf("RecordRoleCompletion: %v", err)
		}
	}
	m, _ := cat.FindMemberByID(id)
	if len(m.RolesDone) != 2 {
		t.Fatalf("roles_done = %v, want 2 entries", m.RolesDone)
	}
	if !m.HasDone("Toastmaster") || m.HasDone("Evaluador del tiempo") {
		t.Error("HasDone disagrees with roles_done")
	}

	// Third completion fills the cycle: the list resets to empty.
	if err := cat.RecordRoleCompletion(id, "Evaluador del tiempo"); err != nil {
		t.Fatalf("RecordRoleCompletion: %v", err)
	}
	if len(m.RolesDone) != 0 {
		t.Errorf("roles_done after full cycle = %v, want empty", m.RolesDone)
	}
}

func TestRecordRoleCompletionCountsRepeats(t *testing.T) {
	cat := testCatalog() // 3 roles
	id := "5212222222222"

	// The same role done three times still completes a cycle.
	for i := 0; i < 3; i++ {
		if err := cat.RecordRoleCompletion(id, "Toastmaster"); err != nil {
			t.Fatalf("RecordRoleCompletion: %v", err)
		}
	}
	m, _ := cat.FindMemberByID(id)
	if len(m.RolesDone) != 0 {
		t.Errorf("roles_done after three repeats = %v, want empty", m.RolesDone)
	}
}

func TestRoundStateOfferFor(t *testing.T) {
	st := NewRoundState()
	st.Pending["Toastmaster"] = &PendingOffer{Candidate: "111", DeclinedBy: []string{}}
	st.Accepted["Evaluador general"] = Acceptance{WAID: "222", Name: "Beto"}

	if role, ok := st.OfferFor("111"); !ok || role != "Toastmaster" {
		t.Errorf("OfferFor(111) = %q, %v", role, ok)
	}
	if _, ok := st.OfferFor("222"); ok {
		t.Error("OfferFor(222) should be false: the member accepted, not pending")
	}
	if !st.Engaged("222") || !st.Engaged("111") {
		t.Error("both members should be engaged")
	}
	if st.Engaged("333") {
		t.Error("unknown member should not be engaged")
	}

	busy := st.BusyIDs()
	if !busy["111"] || !busy["222"] || len(busy) != 2 {
		t.Errorf("BusyIDs = %v", busy)
	}
}
