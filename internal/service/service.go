// Package service implements the assignment engine: the round state machine
// and the admin operations, applied per tenant under the tenant's lock.
//
// Every command mutates the in-memory mirrors, persists, and returns the
// outbound messages for the caller to send after the lock is released, so
// gateway latency never serializes commands on a tenant. Once a recipient
// sees a message, persistence has already committed.
package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/gateway"
	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/registry"
)

// Service runs round and admin commands against tenant contexts.
type Service struct {
	logger *logrus.Logger
}

// New creates the engine.
func New(logger *logrus.Logger) *Service {
	return &Service{logger: logger}
}

// adminBroadcast builds one message per club admin.
func adminBroadcast(t *registry.Tenant, text string) []gateway.Message {
	msgs := make([]gateway.Message, 0)
	for _, id := range t.Admins() {
		msgs = append(msgs, gateway.Message{To: id, Text: text})
	}
	return msgs
}

// offerText is the proposal sent to a fresh candidate at round start.
func offerText(name, role string, round int) string {
	return fmt.Sprintf(
		"Hola %s 👋\nPara la reunión #%d te propongo el rol *%s*.\n\n"+
			"Responde:\n• *1* o *ACEPTO* para confirmar\n• *2* o *RECHAZO* si no puedes\n• *3* para responder más tarde\n\n"+
			"(Si rechazas, se propondrá a otro miembro.)",
		name, round, role)
}

// reofferText is the proposal sent to a replacement candidate after a reject.
func reofferText(name, role string, round int) string {
	return fmt.Sprintf(
		"Hola %s 👋\n¿Podrías tomar el rol *%s* para la reunión #%d?\n"+
			"Responde *1* (ACEPTO), *2* (RECHAZO) o *3* (más tarde).",
		name, role, round)
}

// buildSummary renders the resolved-roles summary for the round. Callers
// hold the tenant lock.
func buildSummary(cat *models.Catalog, st *models.RoundState) string {
	lines := []string{fmt.Sprintf("🗓️ Reunión #%d – Roles asignados:", st.Round)}
	for _, role := range cat.RolesByDifficulty() {
		if acc, ok := st.Accepted[role.Name]; ok {
			lines = append(lines, fmt.Sprintf("• %s: %s", role.Name, acc.Name))
		} else {
			lines = append(lines, fmt.Sprintf("• %s: (pendiente)", role.Name))
		}
	}
	return strings.Join(lines, "\n")
}

// sortedRoleNames returns the keys of a role-keyed map in stable order.
func sortedRoleNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
