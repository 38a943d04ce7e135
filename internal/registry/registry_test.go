package registry

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/repository/clubfile"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type clubSeed struct {
	admins  []string
	catalog *models.Catalog
	state   *models.RoundState
}

// writeClubs lays out a clubs directory the way the seeding tooling does:
// registry.json plus one directory per club.
func writeClubs(t *testing.T, clubs map[string]clubSeed) string {
	t.Helper()
	dir := t.TempDir()

	manifest := map[string]any{"clubs": map[string]any{}}
	for id, seed := range clubs {
		manifest["clubs"].(map[string]any)[id] = map[string]any{"admins": seed.admins}

		if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
			t.Fatal(err)
		}
		store := clubfile.New(filepath.Join(dir, id))
		if seed.catalog != nil {
			if err := store.SaveCatalog(seed.catalog); err != nil {
				t.Fatal(err)
			}
		}
		if seed.state != nil {
			if err := store.SaveState(seed.state); err != nil {
				t.Fatal(err)
			}
		}
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "registry.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func catalogWith(members ...*models.Member) *models.Catalog {
	return &models.Catalog{
		Members: members,
		Roles:   []models.Role{{Name: "Toastmaster", Difficulty: 5}},
	}
}

func TestLoadAndContexts(t *testing.T) {
	dir := writeClubs(t, map[string]clubSeed{
		"club_b": {admins: []string{"900"}, catalog: catalogWith()},
		"club_a": {admins: []string{"900"}, catalog: catalogWith()},
	})

	reg, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctxs := reg.Contexts()
	if len(ctxs) != 2 || ctxs[0].ClubID != "club_a" || ctxs[1].ClubID != "club_b" {
		t.Errorf("Contexts order = %v", []string{ctxs[0].ClubID, ctxs[1].ClubID})
	}
}

// A member seeded after the last round start gets a cycle entry on load.
func TestLoadBackfillsCycles(t *testing.T) {
	st := models.NewRoundState()
	st.Round = 2
	dir := writeClubs(t, map[string]clubSeed{
		"club_x": {
			admins:  []string{"900"},
			catalog: catalogWith(&models.Member{Name: "Ana", ID: "111", Level: 1}),
			state:   st,
		},
	})

	reg, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tenant, _ := reg.Get("club_x")
	tenant.Lock()
	defer tenant.Unlock()
	if _, ok := tenant.State().MembersCycle["111"]; !ok {
		t.Error("cycle entry missing for seeded member")
	}
}

// A club whose files fail to decode is latched; the others load normally.
func TestLoadCorruptClubIsolated(t *testing.T) {
	dir := writeClubs(t, map[string]clubSeed{
		"good": {admins: []string{"900"}, catalog: catalogWith()},
		"bad":  {admins: []string{"900"}},
	})
	if err := os.WriteFile(filepath.Join(dir, "bad", "club.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad, _ := reg.Get("bad")
	if !bad.Corrupt() {
		t.Error("bad club should be latched corrupt")
	}
	good, _ := reg.Get("good")
	if good.Corrupt() {
		t.Error("good club should be usable")
	}
}

func TestInferTenant(t *testing.T) {
	engaged := models.NewRoundState()
	engaged.Pending["Toastmaster"] = &models.PendingOffer{Candidate: "777", DeclinedBy: []string{}}

	dir := writeClubs(t, map[string]clubSeed{
		"club_x": {
			admins:  []string{"900", "901"},
			catalog: catalogWith(&models.Member{Name: "Tina", ID: "555", Level: 1}),
		},
		"club_y": {
			admins:  []string{"900"},
			catalog: catalogWith(),
			state:   engaged,
		},
	})

	reg, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name      string
		sender    string
		bound     string
		wantClub  string
		wantPick  bool
		wantError bool
	}{
		{"session binding wins", "900", "club_y", "club_y", false, false},
		{"unique member", "555", "", "club_x", false, false},
		{"unique admin", "901", "", "club_x", false, false},
		{"engaged in a round", "777", "", "club_y", false, false},
		{"multi-club admin needs pick", "900", "", "", true, false},
		{"unknown sender", "000", "", "", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tenant, needsPick, err := reg.InferTenant(tc.sender, tc.bound)
			if tc.wantError {
				if !errors.Is(err, models.ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if needsPick != tc.wantPick {
				t.Fatalf("needsPick = %v, want %v", needsPick, tc.wantPick)
			}
			if tc.wantPick {
				return
			}
			if tenant.ClubID != tc.wantClub {
				t.Errorf("club = %s, want %s", tenant.ClubID, tc.wantClub)
			}
		})
	}
}

func TestMemberClubRequiresUniqueness(t *testing.T) {
	dir := writeClubs(t, map[string]clubSeed{
		"club_x": {admins: []string{"900"}, catalog: catalogWith(&models.Member{Name: "Ana", ID: "111", Level: 1})},
		"club_y": {admins: []string{"900"}, catalog: catalogWith(&models.Member{Name: "Ana", ID: "111", Level: 1})},
	})

	reg, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reg.MemberClub("111"); ok {
		t.Error("member of two clubs must not resolve to a unique club")
	}
}
