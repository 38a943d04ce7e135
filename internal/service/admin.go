package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/registry"
)

// waidPattern matches an E.164 number in digit form, without the leading "+".
var waidPattern = regexp.MustCompile(`^[0-9]{5,15}$`)

// AddMember inserts a new member with level 1 and an empty cycle.
func (s *Service) AddMember(t *registry.Tenant, name, id string) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}

	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if name == "" || !waidPattern.MatchString(id) {
		return "", fmt.Errorf("member %q (%q): %w", name, id, models.ErrInvalidID)
	}

	t.Lock()
	defer t.Unlock()

	cat := t.Catalog()
	st := t.State()

	member := &models.Member{Name: name, ID: id, Level: 1, RolesDone: []string{}}
	if err := cat.AddMember(member); err != nil {
		return "", err
	}
	st.MembersCycle[id] = []string{}

	if err := t.SaveCatalog(); err != nil {
		return "", fmt.Errorf("persist catalog: %w", err)
	}
	if err := t.SaveState(); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"club": t.ClubID, "member": id}).Info("Member added")
	return fmt.Sprintf("✅ Miembro agregado: %s (%s).", name, id), nil
}

// RemoveMember deletes a member by id or name. Members holding a pending
// offer or an accepted role in the current round cannot be removed.
func (s *Service) RemoveMember(t *registry.Tenant, ref string) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}

	t.Lock()
	defer t.Unlock()

	cat := t.Catalog()
	st := t.State()

	member, err := cat.FindMember(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if st.Engaged(member.ID) {
		return "", fmt.Errorf("member %s: %w", member.ID, models.ErrMemberBusy)
	}

	if err := cat.RemoveMember(member.ID); err != nil {
		return "", err
	}
	delete(st.MembersCycle, member.ID)

	if err := t.SaveCatalog(); err != nil {
		return "", fmt.Errorf("persist catalog: %w", err)
	}
	if err := t.SaveState(); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"club": t.ClubID, "member": member.ID}).Info("Member removed")
	return fmt.Sprintf("🗑️ Miembro eliminado: %s (%s).", member.Name, member.ID), nil
}

// MembersList renders the roster sorted by name.
func (s *Service) MembersList(t *registry.Tenant) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}

	t.Lock()
	defer t.Unlock()

	cat := t.Catalog()
	if len(cat.Members) == 0 {
		return "El club no tiene miembros registrados.", nil
	}

	members := make([]*models.Member, len(cat.Members))
	copy(members, cat.Members)
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})

	lines := []string{fmt.Sprintf("👥 Miembros de %s:", t.ClubID)}
	for _, m := range members {
		line := fmt.Sprintf("• %s (%s) – nivel %d", m.Name, m.ID, m.Level)
		if m.IsGuest {
			line += " [invitado]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
