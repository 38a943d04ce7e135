package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/gateway"
	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/registry"
	"github.com/rolesclub/rolesbot/internal/selection"
)

// StartRound begins a new assignment round: one offer per role, highest
// difficulty first, no member holding more than one offer. Returns the reply
// for the initiating admin and the outbound offers and notifications.
func (s *Service) StartRound(t *registry.Tenant, byAdmin string) (string, []gateway.Message, error) {
	if t.Corrupt() {
		return "", nil, models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	cat := t.Catalog()

	if len(st.Pending) > 0 && !st.Canceled {
		return "", nil, models.ErrRoundInProgress
	}

	st.Round++
	st.Pending = map[string]*models.PendingOffer{}
	st.Accepted = map[string]models.Acceptance{}
	st.LastSummary = nil
	st.Canceled = false

	var offers []gateway.Message
	var noCandidate []string
	excluded := map[string]bool{}

	for _, role := range cat.RolesByDifficulty() {
		candidate := selection.ChooseCandidate(cat.Members, role, st.MembersCycle, excluded)
		if candidate == "" {
			noCandidate = append(noCandidate, role.Name)
			continue
		}
		st.Pending[role.Name] = &models.PendingOffer{Candidate: candidate, DeclinedBy: []string{}}
		excluded[candidate] = true
		offers = append(offers, gateway.Message{
			To:   candidate,
			Text: offerText(cat.MemberName(candidate), role.Name, st.Round),
		})
	}

	if err := t.SaveState(); err != nil {
		return "", nil, fmt.Errorf("persist round start: %w", err)
	}

	out := offers
	out = append(out, adminBroadcast(t,
		fmt.Sprintf("✅ Ronda #%d iniciada por %s. Escribe ESTADO para ver pendientes.", st.Round, byAdmin))...)
	if len(noCandidate) > 0 {
		out = append(out, adminBroadcast(t,
			fmt.Sprintf("⚠️ Sin candidato disponible para: %s.", strings.Join(noCandidate, ", ")))...)
	}

	s.logger.WithFields(logrus.Fields{
		"club":   t.ClubID,
		"round":  st.Round,
		"offers": len(offers),
	}).Info("Round started")

	return fmt.Sprintf("Ronda #%d iniciada.", st.Round), out, nil
}

// Accept confirms the sender's pending offer. The acceptance is recorded in
// the round ledger and the member's catalog history; when the last pending
// offer resolves and at least one role was accepted, the final summary goes
// out to the admins and the accepted members.
func (s *Service) Accept(t *registry.Tenant, senderID string) (string, []gateway.Message, error) {
	if t.Corrupt() {
		return "", nil, models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	cat := t.Catalog()

	role, ok := st.OfferFor(senderID)
	if !ok {
		return "", nil, models.ErrNoPendingOffer
	}

	delete(st.Pending, role)
	name := cat.MemberName(senderID)
	st.Accepted[role] = models.Acceptance{WAID: senderID, Name: name}

	recordCycle(st, senderID, role, len(cat.Roles))
	if err := cat.RecordRoleCompletion(senderID, role); err != nil {
		s.logger.WithError(err).Warnf("Club %s: acceptance by non-catalog member %s", t.ClubID, senderID)
	}

	var out []gateway.Message
	if len(st.Pending) == 0 && len(st.Accepted) > 0 {
		summary := buildSummary(cat, st)
		st.LastSummary = &summary

		recipients := map[string]bool{}
		for _, id := range t.Admins() {
			recipients[id] = true
		}
		for _, acc := range st.Accepted {
			recipients[acc.WAID] = true
		}
		out = gateway.Broadcast(recipients, fmt.Sprintf("✅ %s\n\n¡Nos vemos en la próxima reunión!", summary))
	}

	if err := t.SaveState(); err != nil {
		return "", nil, fmt.Errorf("persist acceptance: %w", err)
	}
	if err := t.SaveCatalog(); err != nil {
		return "", nil, fmt.Errorf("persist catalog: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"club":   t.ClubID,
		"round":  st.Round,
		"role":   role,
		"member": senderID,
	}).Info("Role accepted")

	reply := fmt.Sprintf("🎉 ¡Gracias %s! Quedaste como *%s* en la reunión #%d.", name, role, st.Round)
	return reply, out, nil
}

// Reject declines the sender's pending offer and re-selects. When nobody
// eligible remains, the role becomes exhausted and the admins are notified.
func (s *Service) Reject(t *registry.Tenant, senderID string) (string, []gateway.Message, error) {
	if t.Corrupt() {
		return "", nil, models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	cat := t.Catalog()

	roleName, ok := st.OfferFor(senderID)
	if !ok {
		return "", nil, models.ErrNoPendingOffer
	}
	info := st.Pending[roleName]
	info.DeclinedBy = append(info.DeclinedBy, senderID)

	role, err := cat.RoleByName(roleName)
	if err != nil {
		return "", nil, err
	}

	excluded := st.BusyIDs()
	for _, id := range info.DeclinedBy {
		excluded[id] = true
	}

	reply := fmt.Sprintf("Gracias por avisar, buscaremos otra opción para *%s* 👍", roleName)
	var out []gateway.Message

	candidate := selection.ChooseCandidate(cat.Members, role, st.MembersCycle, excluded)
	if candidate != "" {
		info.Candidate = candidate
		out = append(out, gateway.Message{
			To:   candidate,
			Text: reofferText(cat.MemberName(candidate), roleName, st.Round),
		})
	} else {
		delete(st.Pending, roleName)
		out = append(out, adminBroadcast(t,
			fmt.Sprintf("⚠️ No hay candidato disponible para %s. Resolver manualmente.", roleName))...)
	}

	if err := t.SaveState(); err != nil {
		return "", nil, fmt.Errorf("persist rejection: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"club":      t.ClubID,
		"round":     st.Round,
		"role":      roleName,
		"member":    senderID,
		"reoffered": candidate != "",
	}).Info("Role rejected")

	return reply, out, nil
}

// Defer acknowledges a "reply later" without touching the pending offer.
func (s *Service) Defer(t *registry.Tenant, senderID string) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	roleName, ok := t.State().OfferFor(senderID)
	if !ok {
		return "", models.ErrNoPendingOffer
	}
	return fmt.Sprintf("De acuerdo, te espero 🙂 El rol *%s* sigue reservado para ti.\n"+
		"Responde *1* (ACEPTO) o *2* (RECHAZO) cuando puedas.", roleName), nil
}

// CancelRound voids the pending offers. Accepted roles and the per-member
// cycles survive; a new round may start immediately.
func (s *Service) CancelRound(t *registry.Tenant, byAdmin string) (string, []gateway.Message, error) {
	if t.Corrupt() {
		return "", nil, models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()

	var voided []string
	for _, role := range sortedRoleNames(st.Pending) {
		voided = append(voided, st.Pending[role].Candidate)
	}

	st.Canceled = true
	st.Pending = map[string]*models.PendingOffer{}

	if err := t.SaveState(); err != nil {
		return "", nil, fmt.Errorf("persist cancel: %w", err)
	}

	var out []gateway.Message
	for _, id := range voided {
		out = append(out, gateway.Message{
			To:   id,
			Text: "⚠️ La ronda de roles fue *cancelada* por el administrador. Tu propuesta queda sin efecto.",
		})
	}
	out = append(out, adminBroadcast(t, fmt.Sprintf("❌ Ronda #%d cancelada por %s.", st.Round, byAdmin))...)

	s.logger.WithFields(logrus.Fields{"club": t.ClubID, "round": st.Round}).Info("Round canceled")

	return fmt.Sprintf("Ronda #%d cancelada.", st.Round), out, nil
}

// Reset clears the round ledger and every member's cycle. The round counter
// is preserved so history stays monotone.
func (s *Service) Reset(t *registry.Tenant, byAdmin string) (string, []gateway.Message, error) {
	if t.Corrupt() {
		return "", nil, models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	cat := t.Catalog()

	st.Pending = map[string]*models.PendingOffer{}
	st.Accepted = map[string]models.Acceptance{}
	st.LastSummary = nil
	st.Canceled = false
	st.MembersCycle = map[string][]string{}
	for _, m := range cat.Members {
		st.MembersCycle[m.ID] = []string{}
		m.RolesDone = []string{}
	}

	if err := t.SaveState(); err != nil {
		return "", nil, fmt.Errorf("persist reset: %w", err)
	}
	if err := t.SaveCatalog(); err != nil {
		return "", nil, fmt.Errorf("persist catalog: %w", err)
	}

	out := adminBroadcast(t, fmt.Sprintf("🔄 Estado reiniciado por %s (ronda #%d conservada).", byAdmin, st.Round))

	s.logger.WithFields(logrus.Fields{"club": t.ClubID, "round": st.Round}).Info("State reset")

	return "Estado reiniciado. Ciclos y asignaciones en blanco.", out, nil
}

// Status renders the round summary: accepted roles, pending offers with
// decline counts, and roles left without a candidate.
func (s *Service) Status(t *registry.Tenant) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	cat := t.Catalog()

	lines := []string{buildSummary(cat, st), "", "Pendientes:"}
	if len(st.Pending) == 0 {
		lines = append(lines, "• (ninguno)")
	} else {
		for _, role := range sortedRoleNames(st.Pending) {
			info := st.Pending[role]
			lines = append(lines, fmt.Sprintf("• %s: propuesto a %s (declinaron: %d)",
				role, cat.MemberName(info.Candidate), len(info.DeclinedBy)))
		}
	}

	if st.Round > 0 && !st.Canceled {
		var missing []string
		for _, role := range cat.RolesByDifficulty() {
			if _, pending := st.Pending[role.Name]; pending {
				continue
			}
			if _, accepted := st.Accepted[role.Name]; accepted {
				continue
			}
			missing = append(missing, role.Name)
		}
		if len(missing) > 0 {
			lines = append(lines, "", "Sin candidato:")
			for _, role := range missing {
				lines = append(lines, "• "+role)
			}
		}
	}

	if st.Canceled {
		lines = append(lines, "", "Estado: ❌ Ronda cancelada.")
	}
	return strings.Join(lines, "\n"), nil
}

// MyAssignment reports the sender's pending offer or accepted role.
func (s *Service) MyAssignment(t *registry.Tenant, senderID string) (string, error) {
	if t.Corrupt() {
		return "", models.ErrCorruptState
	}
	t.Lock()
	defer t.Unlock()

	st := t.State()
	if role, ok := st.OfferFor(senderID); ok {
		return fmt.Sprintf("Tienes pendiente el rol *%s* en la ronda #%d.\nResponde *1* (ACEPTO), *2* (RECHAZO) o *3* (más tarde).", role, st.Round), nil
	}
	if role, ok := st.AcceptedRoleFor(senderID); ok {
		return fmt.Sprintf("Ya aceptaste el rol *%s* en la ronda #%d.", role, st.Round), nil
	}
	return "No tienes asignaciones pendientes. Si esperas una propuesta, consulta al admin.", nil
}

// recordCycle appends the role to the member's round ledger, resetting the
// cycle once its length reaches the number of club roles. Repeats count:
// a member re-doing a role still advances toward the reset.
func recordCycle(st *models.RoundState, memberID, roleName string, totalRoles int) {
	done := append(st.MembersCycle[memberID], roleName)
	if len(done) >= totalRoles {
		done = []string{}
	}
	st.MembersCycle[memberID] = done
}
