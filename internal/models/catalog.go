package models

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog holds one club's members and roles. It is the in-memory mirror of
// the club.json file; all mutation happens under the owning tenant's lock.
type Catalog struct {
	Members []*Member `json:"members"`
	Roles   []Role    `json:"roles"`
}

// FindMemberByID returns the member with the given id.
func (c *Catalog) FindMemberByID(id string) (*Member, error) {
	for _, m := range c.Members {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
}

// FindMember resolves ref first as an id, then as a display name. Name
// matching is case-insensitive; inbound text arrives case-folded.
func (c *Catalog) FindMember(ref string) (*Member, error) {
	if m, err := c.FindMemberByID(ref); err == nil {
		return m, nil
	}
	for _, m := range c.Members {
		if strings.EqualFold(m.Name, ref) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("member %q: %w", ref, ErrNotFound)
}

// AddMember inserts a new member into the catalog.
func (c *Catalog) AddMember(m *Member) error {
	for _, existing := range c.Members {
		if existing.ID == m.ID {
			return fmt.Errorf("member %s: %w", m.ID, ErrDuplicateID)
		}
	}
	c.Members = append(c.Members, m)
	return nil
}

// RemoveMember deletes the member with the given id.
func (c *Catalog) RemoveMember(id string) error {
	for i, m := range c.Members {
		if m.ID == id {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", id, ErrNotFound)
}

// RoleByName returns the role with the given name.
func (c *Catalog) RoleByName(name string) (Role, error) {
	for _, r := range c.Roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("role %q: %w", name, ErrNotFound)
}

// RolesByDifficulty returns the roles ordered by descending difficulty,
// ties broken by name.
func (c *Catalog) RolesByDifficulty() []Role {
	roles := make([]Role, len(c.Roles))
	copy(roles, c.Roles)
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Difficulty != roles[j].Difficulty {
			return roles[i].Difficulty > roles[j].Difficulty
		}
		return roles[i].Name < roles[j].Name
	})
	return roles
}

// RecordRoleCompletion appends the role to the member's roles_done. Once the
// list holds as many entries as the club has roles (repeats count), it resets
// to empty so a new cycle begins.
func (c *Catalog) RecordRoleCompletion(memberID, roleName string) error {
	m, err := c.FindMemberByID(memberID)
	if err != nil {
		return err
	}
	m.RolesDone = append(m.RolesDone, roleName)
	if len(m.RolesDone) >= len(c.Roles) {
		m.RolesDone = []string{}
	}
	return nil
}

// MemberName returns the display name for the id, or the id itself when the
// member is unknown (e.g. removed mid-round).
func (c *Catalog) MemberName(id string) string {
	if m, err := c.FindMemberByID(id); err == nil {
		return m.Name
	}
	return id
}
