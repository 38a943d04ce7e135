// Package registry loads every club from the registry manifest and owns the
// per-club tenant contexts. The registry is frozen after Load; adding clubs
// at runtime is not supported.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/repository"
	"github.com/rolesclub/rolesbot/internal/repository/clubfile"
)

// manifest is the registry.json document: {"clubs": {id: {"admins": [...]}}}.
type manifest struct {
	Clubs map[string]struct {
		Admins []string `json:"admins"`
	} `json:"clubs"`
}

// Tenant is one club's context: catalog and round state mirrors, the
// persistence handle, and the admin set. One exclusive lock covers both
// mirrors; commands mutate and persist under it, then send after release.
type Tenant struct {
	ClubID string

	mu      sync.Mutex
	catalog *models.Catalog
	state   *models.RoundState
	store   repository.ClubStore
	admins  map[string]bool
	corrupt atomic.Bool
}

// NewTenant builds a tenant context. Exposed for tests; production tenants
// come from Load.
func NewTenant(clubID string, store repository.ClubStore, admins []string, cat *models.Catalog, st *models.RoundState) *Tenant {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return &Tenant{ClubID: clubID, store: store, admins: set, catalog: cat, state: st}
}

// Lock acquires the tenant's exclusive lock.
func (t *Tenant) Lock() { t.mu.Lock() }

// Unlock releases the tenant's exclusive lock.
func (t *Tenant) Unlock() { t.mu.Unlock() }

// Catalog returns the in-memory catalog mirror. Callers hold the lock.
func (t *Tenant) Catalog() *models.Catalog { return t.catalog }

// State returns the in-memory round state mirror. Callers hold the lock.
func (t *Tenant) State() *models.RoundState { return t.state }

// SaveCatalog persists the catalog mirror. Callers hold the lock.
func (t *Tenant) SaveCatalog() error { return t.store.SaveCatalog(t.catalog) }

// SaveState persists the round state mirror. Callers hold the lock.
func (t *Tenant) SaveState() error { return t.store.SaveState(t.state) }

// IsAdmin reports whether the sender may run admin commands on this club.
// An admin need not be a member.
func (t *Tenant) IsAdmin(senderID string) bool { return t.admins[senderID] }

// Admins returns the admin ids sorted, for stable broadcast order.
func (t *Tenant) Admins() []string {
	ids := make([]string, 0, len(t.admins))
	for id := range t.admins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarkCorrupt latches the tenant as unusable after a decode failure. Every
// command refuses until an operator intervenes; other tenants continue.
func (t *Tenant) MarkCorrupt() { t.corrupt.Store(true) }

// Corrupt reports whether the tenant is latched.
func (t *Tenant) Corrupt() bool { return t.corrupt.Load() }

// IsMember reports whether the sender is in this club's catalog.
func (t *Tenant) IsMember(senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.catalog.FindMemberByID(senderID)
	return err == nil
}

// Engaged reports whether the sender holds a pending offer or an accepted
// role in this club's current round.
func (t *Tenant) Engaged(senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Engaged(senderID)
}

// MemberName returns the display name for the id, falling back to the id.
func (t *Tenant) MemberName(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog.MemberName(id)
}

// HasOffer reports whether the sender currently holds a pending offer here.
func (t *Tenant) HasOffer(senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.state.OfferFor(senderID)
	return ok
}

// Registry maps club ids to tenant contexts.
type Registry struct {
	logger  *logrus.Logger
	tenants map[string]*Tenant
	order   []string
}

// Load reads the registry manifest under dir and builds a tenant per club.
// A club whose files fail to decode is latched as corrupt and logged loudly;
// the remaining clubs load normally.
func Load(dir string, logger *logrus.Logger) (*Registry, error) {
	path := filepath.Join(dir, "registry.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	if len(man.Clubs) == 0 {
		return nil, fmt.Errorf("registry %s: no clubs defined", path)
	}

	reg := &Registry{logger: logger, tenants: make(map[string]*Tenant, len(man.Clubs))}
	for clubID, entry := range man.Clubs {
		store := clubfile.New(filepath.Join(dir, clubID))
		tenant := loadTenant(clubID, store, entry.Admins, logger)
		reg.tenants[clubID] = tenant
		reg.order = append(reg.order, clubID)
	}
	sort.Strings(reg.order)

	logger.Infof("Loaded %d club(s) from %s", len(reg.tenants), dir)
	return reg, nil
}

func loadTenant(clubID string, store repository.ClubStore, admins []string, logger *logrus.Logger) *Tenant {
	tenant := NewTenant(clubID, store, admins, &models.Catalog{}, models.NewRoundState())

	cat, err := store.LoadCatalog()
	if err != nil {
		logger.WithError(err).Errorf("Club %s: catalog unusable, refusing all commands", clubID)
		tenant.MarkCorrupt()
		return tenant
	}
	st, err := store.LoadState()
	if err != nil {
		logger.WithError(err).Errorf("Club %s: state unusable, refusing all commands", clubID)
		tenant.MarkCorrupt()
		return tenant
	}

	// Members seeded after the last round started have no cycle entry yet.
	for _, m := range cat.Members {
		if _, ok := st.MembersCycle[m.ID]; !ok {
			st.MembersCycle[m.ID] = []string{}
		}
	}

	tenant.catalog = cat
	tenant.state = st
	return tenant
}

// Contexts enumerates the tenants in club-id order.
func (r *Registry) Contexts() []*Tenant {
	out := make([]*Tenant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tenants[id])
	}
	return out
}

// Get returns the tenant for the club id.
func (r *Registry) Get(clubID string) (*Tenant, bool) {
	t, ok := r.tenants[clubID]
	return t, ok
}

// AdminClubs lists the club ids where the sender is an admin.
func (r *Registry) AdminClubs(senderID string) []string {
	var out []string
	for _, id := range r.order {
		if r.tenants[id].IsAdmin(senderID) {
			out = append(out, id)
		}
	}
	return out
}

// MemberClub returns the unique club where the sender is a member. It
// returns false when the sender belongs to none, or to more than one.
func (r *Registry) MemberClub(senderID string) (*Tenant, bool) {
	var found *Tenant
	for _, id := range r.order {
		if r.tenants[id].IsMember(senderID) {
			if found != nil {
				return nil, false
			}
			found = r.tenants[id]
		}
	}
	return found, found != nil
}

// TenantWithOffer returns the club where the sender currently holds a
// pending offer, if any.
func (r *Registry) TenantWithOffer(senderID string) (*Tenant, bool) {
	for _, id := range r.order {
		if r.tenants[id].HasOffer(senderID) {
			return r.tenants[id], true
		}
	}
	return nil, false
}

// InferTenant resolves the club an inbound event targets. Resolution order:
// the session's bound club, then unique membership, then unique adminship,
// then any club where the sender is engaged in the current round. When the
// sender administers several clubs and none of the above decides, needsPick
// is true and the caller must ask; otherwise the sender is unknown.
func (r *Registry) InferTenant(senderID, boundClubID string) (t *Tenant, needsPick bool, err error) {
	if boundClubID != "" {
		if tenant, ok := r.Get(boundClubID); ok {
			return tenant, false, nil
		}
	}

	if tenant, ok := r.MemberClub(senderID); ok {
		return tenant, false, nil
	}

	adminOf := r.AdminClubs(senderID)
	if len(adminOf) == 1 {
		return r.tenants[adminOf[0]], false, nil
	}

	for _, id := range r.order {
		if r.tenants[id].Engaged(senderID) {
			return r.tenants[id], false, nil
		}
	}

	if len(adminOf) > 1 {
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("sender %s: %w", senderID, models.ErrNotFound)
}
