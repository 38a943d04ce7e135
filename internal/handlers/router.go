// Package handlers routes normalized inbound events to round commands,
// admin operations, or menu navigation.
//
// Dispatch precedence is strict: a pending-offer reply ("1"/"2"/"3") wins
// over everything, then the session-driven menus, then the legacy text
// commands, and finally the root menu as fallback.
package handlers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/rolesclub/rolesbot/internal/gateway"
	"github.com/rolesclub/rolesbot/internal/metrics"
	"github.com/rolesclub/rolesbot/internal/models"
	"github.com/rolesclub/rolesbot/internal/registry"
	"github.com/rolesclub/rolesbot/internal/service"
)

var numericPattern = regexp.MustCompile(`^[0-9]{1,3}$`)

// Legacy admin commands kept for backward compatibility with prior releases.
var adminLegacy = map[string]string{
	"iniciar": "start", "/iniciar": "start", "roles": "start",
	"estado": "status", "/estado": "status",
	"cancelar": "cancel", "/cancelar": "cancel",
	"reset": "reset", "/reset": "reset",
	"miembros": "members", "/miembros": "members",
}

// Legacy member commands, including the spelling variants the club actually
// uses.
var memberLegacy = map[string]string{
	"acepto": "accept", "aceptar": "accept", "si acepto": "accept",
	"rechazo": "reject", "no acepto": "reject", "no puedo": "reject", "rechazar": "reject",
	"mi rol": "whoami", "mirol": "whoami", "miasignacion": "whoami",
	"hola": "hello", "hi": "hello", "hello": "hello",
}

// Router owns the session table and dispatches inbound events.
type Router struct {
	registry *registry.Registry
	svc      *service.Service
	gw       gateway.Sender
	sessions *Sessions
	logger   *logrus.Logger
}

// NewRouter creates the router.
func NewRouter(reg *registry.Registry, svc *service.Service, gw gateway.Sender, logger *logrus.Logger) *Router {
	return &Router{
		registry: reg,
		svc:      svc,
		gw:       gw,
		sessions: NewSessions(),
		logger:   logger,
	}
}

// Normalize case-folds, trims, and strips diacritics so accented and
// capitalized spellings hit the same command table entries.
func Normalize(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

// HandleEvent processes one inbound {sender, text} event. Application is
// serialized per sender by the session mutex.
func (r *Router) HandleEvent(ctx context.Context, senderID, text string) {
	sess := r.sessions.Get(senderID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	body := Normalize(text)
	r.logger.WithFields(logrus.Fields{
		"sender": senderID,
		"text":   body,
	}).Info("Inbound message")

	if body == "" {
		return
	}

	// 1. A pending-offer reply bypasses the menus entirely.
	if body == "1" || body == "2" || body == "3" {
		if tenant, ok := r.registry.TenantWithOffer(senderID); ok {
			r.handleOfferReply(ctx, tenant, senderID, body)
			return
		}
	}

	// 2a. An awaited free-text argument consumes the whole message.
	if sess.Awaiting != AwaitNone {
		r.handleAwaiting(ctx, sess, senderID, body, strings.TrimSpace(text))
		return
	}

	// 2b. Menu selection by number.
	if numericPattern.MatchString(body) {
		if r.handleMenuNumber(ctx, sess, senderID, body) {
			return
		}
		// Option not present in the rendered menu: fall through.
		r.send(ctx, senderID, r.rootMenu(sess, senderID))
		return
	}

	// 3. Legacy text commands.
	if r.handleLegacy(ctx, sess, senderID, body, strings.TrimSpace(text)) {
		return
	}

	// 4. Fallback.
	r.send(ctx, senderID, r.rootMenu(sess, senderID))
}

// ---------------------------------------------------------------------------
// Pending-offer replies
// ---------------------------------------------------------------------------

func (r *Router) handleOfferReply(ctx context.Context, tenant *registry.Tenant, senderID, body string) {
	switch body {
	case "1":
		metrics.Commands.WithLabelValues("accept").Inc()
		reply, out, err := r.svc.Accept(tenant, senderID)
		r.finish(ctx, senderID, reply, out, err)
	case "2":
		metrics.Commands.WithLabelValues("reject").Inc()
		reply, out, err := r.svc.Reject(tenant, senderID)
		r.finish(ctx, senderID, reply, out, err)
	case "3":
		metrics.Commands.WithLabelValues("defer").Inc()
		reply, err := r.svc.Defer(tenant, senderID)
		r.finish(ctx, senderID, reply, nil, err)
	}
}

// ---------------------------------------------------------------------------
// Awaited free-text arguments
// ---------------------------------------------------------------------------

func (r *Router) handleAwaiting(ctx context.Context, sess *Session, senderID, body, raw string) {
	if body == "volver" || body == "cancelar" {
		sess.Awaiting = AwaitNone
		sess.Mode = ModeAdmin
		r.send(ctx, senderID, adminMenu(sess.ClubID))
		return
	}

	switch sess.Awaiting {
	case AwaitAddMember:
		idx := strings.LastIndex(raw, ",")
		if idx < 0 {
			r.send(ctx, senderID, "Formato: *Nombre, Número* (ej. Ana López, 5215512345678). Escribe VOLVER para salir.")
			return
		}
		name, id := raw[:idx], raw[idx+1:]
		tenant, ok := r.adminTenant(ctx, sess, senderID)
		if !ok {
			return
		}
		metrics.Commands.WithLabelValues("add_member").Inc()
		sess.Awaiting = AwaitNone
		sess.Mode = ModeAdmin
		reply, err := r.svc.AddMember(tenant, name, id)
		r.finish(ctx, senderID, reply, nil, err)

	case AwaitRemoveMember:
		tenant, ok := r.adminTenant(ctx, sess, senderID)
		if !ok {
			return
		}
		metrics.Commands.WithLabelValues("remove_member").Inc()
		sess.Awaiting = AwaitNone
		sess.Mode = ModeAdmin
		reply, err := r.svc.RemoveMember(tenant, raw)
		r.finish(ctx, senderID, reply, nil, err)

	case AwaitPickClub:
		if !numericPattern.MatchString(body) {
			r.send(ctx, senderID, pickMenu(sess.pickClubs))
			return
		}
		n, _ := strconv.Atoi(body)
		if n < 1 || n > len(sess.pickClubs) {
			r.send(ctx, senderID, pickMenu(sess.pickClubs))
			return
		}
		sess.ClubID = sess.pickClubs[n-1]
		sess.Mode = ModeAdmin
		sess.Awaiting = AwaitNone
		sess.pickClubs = nil
		r.send(ctx, senderID, adminMenu(sess.ClubID))
	}
}

// ---------------------------------------------------------------------------
// Menu numbers
// ---------------------------------------------------------------------------

// handleMenuNumber dispatches a numeric selection against the sender's
// session mode. It returns false when the number does not correspond to an
// option in the menu the sender last saw.
func (r *Router) handleMenuNumber(ctx context.Context, sess *Session, senderID, body string) bool {
	n, err := strconv.Atoi(body)
	if err != nil {
		return false
	}

	switch sess.Mode {
	case ModeRoot:
		if n < 1 || n > len(sess.rootOptions) {
			return false
		}
		switch sess.rootOptions[n-1] {
		case actMemberMenu:
			sess.Mode = ModeMember
			r.send(ctx, senderID, memberMenu())
		case actAdminMenu:
			if tenant, ok := r.adminTenant(ctx, sess, senderID); ok {
				sess.Mode = ModeAdmin
				r.send(ctx, senderID, adminMenu(tenant.ClubID))
			}
		case actMyStatus:
			r.myAssignment(ctx, sess, senderID)
		}
		return true

	case ModeMember:
		switch n {
		case 1:
			r.myAssignment(ctx, sess, senderID)
		case 2:
			tenant, ok := r.resolveTenant(ctx, sess, senderID)
			if !ok {
				return true
			}
			metrics.Commands.WithLabelValues("status").Inc()
			reply, err := r.svc.Status(tenant)
			r.finish(ctx, senderID, reply, nil, err)
		case 3:
			r.send(ctx, senderID, r.rootMenu(sess, senderID))
		default:
			return false
		}
		return true

	case ModeAdmin:
		tenant, ok := r.adminTenant(ctx, sess, senderID)
		if !ok {
			return true
		}
		return r.handleAdminOption(ctx, sess, tenant, senderID, n)
	}

	return false
}

func (r *Router) handleAdminOption(ctx context.Context, sess *Session, tenant *registry.Tenant, senderID string, n int) bool {
	byAdmin := tenant.MemberName(senderID)

	switch n {
	case 1:
		metrics.Commands.WithLabelValues("start_round").Inc()
		reply, out, err := r.svc.StartRound(tenant, byAdmin)
		r.finish(ctx, senderID, reply, out, err)
	case 2:
		metrics.Commands.WithLabelValues("status").Inc()
		reply, err := r.svc.Status(tenant)
		r.finish(ctx, senderID, reply, nil, err)
	case 3:
		metrics.Commands.WithLabelValues("cancel_round").Inc()
		reply, out, err := r.svc.CancelRound(tenant, byAdmin)
		r.finish(ctx, senderID, reply, out, err)
	case 4:
		metrics.Commands.WithLabelValues("reset").Inc()
		reply, out, err := r.svc.Reset(tenant, byAdmin)
		r.finish(ctx, senderID, reply, out, err)
	case 5:
		metrics.Commands.WithLabelValues("members_list").Inc()
		reply, err := r.svc.MembersList(tenant)
		r.finish(ctx, senderID, reply, nil, err)
	case 6:
		sess.Awaiting = AwaitAddMember
		r.send(ctx, senderID, "Envía el nuevo miembro como *Nombre, Número* (E.164 sin +).")
	case 7:
		sess.Awaiting = AwaitRemoveMember
		r.send(ctx, senderID, "Envía el número o nombre del miembro a eliminar.")
	case 8:
		r.send(ctx, senderID, r.rootMenu(sess, senderID))
	default:
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Legacy text commands
// ---------------------------------------------------------------------------

func (r *Router) handleLegacy(ctx context.Context, sess *Session, senderID, body, raw string) bool {
	if cmd, ok := adminLegacy[body]; ok {
		tenant, tok := r.adminTenant(ctx, sess, senderID)
		if !tok {
			return true
		}
		byAdmin := tenant.MemberName(senderID)
		switch cmd {
		case "start":
			metrics.Commands.WithLabelValues("start_round").Inc()
			reply, out, err := r.svc.StartRound(tenant, byAdmin)
			r.finish(ctx, senderID, reply, out, err)
		case "status":
			metrics.Commands.WithLabelValues("status").Inc()
			reply, err := r.svc.Status(tenant)
			r.finish(ctx, senderID, reply, nil, err)
		case "cancel":
			metrics.Commands.WithLabelValues("cancel_round").Inc()
			reply, out, err := r.svc.CancelRound(tenant, byAdmin)
			r.finish(ctx, senderID, reply, out, err)
		case "reset":
			metrics.Commands.WithLabelValues("reset").Inc()
			reply, out, err := r.svc.Reset(tenant, byAdmin)
			r.finish(ctx, senderID, reply, out, err)
		case "members":
			metrics.Commands.WithLabelValues("members_list").Inc()
			reply, err := r.svc.MembersList(tenant)
			r.finish(ctx, senderID, reply, nil, err)
		}
		return true
	}

	if cmd, ok := memberLegacy[body]; ok {
		switch cmd {
		case "accept", "reject":
			tenant, tok := r.registry.TenantWithOffer(senderID)
			if !tok {
				r.send(ctx, senderID, errorReply(models.ErrNoPendingOffer))
				return true
			}
			if cmd == "accept" {
				metrics.Commands.WithLabelValues("accept").Inc()
				reply, out, err := r.svc.Accept(tenant, senderID)
				r.finish(ctx, senderID, reply, out, err)
			} else {
				metrics.Commands.WithLabelValues("reject").Inc()
				reply, out, err := r.svc.Reject(tenant, senderID)
				r.finish(ctx, senderID, reply, out, err)
			}
		case "whoami":
			r.myAssignment(ctx, sess, senderID)
		case "hello":
			r.send(ctx, senderID, "¡Hola! Soy RolesClubBot 🤖\n\n"+r.rootMenu(sess, senderID))
		}
		return true
	}

	// AGREGAR <name>, <id> / ELIMINAR <id|name> carry their argument in the
	// same message.
	if cmdWord, args, ok := splitCommand(raw); ok {
		switch cmdWord {
		case "agregar":
			tenant, tok := r.adminTenant(ctx, sess, senderID)
			if !tok {
				return true
			}
			idx := strings.LastIndex(args, ",")
			if idx < 0 {
				r.send(ctx, senderID, "Formato: AGREGAR Nombre, Número (E.164 sin +).")
				return true
			}
			metrics.Commands.WithLabelValues("add_member").Inc()
			reply, err := r.svc.AddMember(tenant, args[:idx], args[idx+1:])
			r.finish(ctx, senderID, reply, nil, err)
			return true
		case "eliminar":
			tenant, tok := r.adminTenant(ctx, sess, senderID)
			if !tok {
				return true
			}
			metrics.Commands.WithLabelValues("remove_member").Inc()
			reply, err := r.svc.RemoveMember(tenant, args)
			r.finish(ctx, senderID, reply, nil, err)
			return true
		}
	}

	return false
}

// splitCommand splits "AGREGAR Ana López, 5215..." into the normalized
// command word and its raw argument, preserving the argument's case and
// accents.
func splitCommand(raw string) (cmd, args string, ok bool) {
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	word := Normalize(strings.TrimPrefix(parts[0], "/"))
	arg := strings.TrimSpace(parts[1])
	if arg == "" {
		return "", "", false
	}
	return word, arg, true
}

// ---------------------------------------------------------------------------
// Tenant resolution
// ---------------------------------------------------------------------------

// resolveTenant infers the club an event targets and binds it to the
// session. When the sender is unknown it replies and returns false.
func (r *Router) resolveTenant(ctx context.Context, sess *Session, senderID string) (*registry.Tenant, bool) {
	tenant, needsPick, err := r.registry.InferTenant(senderID, sess.ClubID)
	if needsPick {
		r.startPick(ctx, sess, senderID)
		return nil, false
	}
	if err != nil {
		r.send(ctx, senderID, "No te reconozco 🤔 Pide al administrador de tu club que te registre.")
		return nil, false
	}
	sess.ClubID = tenant.ClubID
	return tenant, true
}

// adminTenant resolves the club for an admin operation and verifies the
// sender administers it. Multi-club admins without a binding get the pick
// menu.
func (r *Router) adminTenant(ctx context.Context, sess *Session, senderID string) (*registry.Tenant, bool) {
	clubs := r.registry.AdminClubs(senderID)
	if len(clubs) == 0 {
		r.send(ctx, senderID, errorReply(models.ErrUnauthorized)+"\n\n"+r.rootMenu(sess, senderID))
		return nil, false
	}

	if sess.ClubID != "" {
		if tenant, ok := r.registry.Get(sess.ClubID); ok && tenant.IsAdmin(senderID) {
			return tenant, true
		}
	}
	if len(clubs) == 1 {
		sess.ClubID = clubs[0]
		tenant, _ := r.registry.Get(clubs[0])
		return tenant, true
	}

	r.startPick(ctx, sess, senderID)
	return nil, false
}

func (r *Router) startPick(ctx context.Context, sess *Session, senderID string) {
	sess.Mode = ModeAdminPick
	sess.Awaiting = AwaitPickClub
	sess.pickClubs = r.registry.AdminClubs(senderID)
	r.send(ctx, senderID, pickMenu(sess.pickClubs))
}

func (r *Router) myAssignment(ctx context.Context, sess *Session, senderID string) {
	tenant, ok := r.resolveTenant(ctx, sess, senderID)
	if !ok {
		return
	}
	metrics.Commands.WithLabelValues("my_assignment").Inc()
	reply, err := r.svc.MyAssignment(tenant, senderID)
	r.finish(ctx, senderID, reply, nil, err)
}

// ---------------------------------------------------------------------------
// Delivery
// ---------------------------------------------------------------------------

// finish reports a command result to the sender and delivers the outbox.
// State is already persisted by the time finish runs; a transport failure is
// surfaced best-effort and never reverts the transition.
func (r *Router) finish(ctx context.Context, senderID, reply string, out []gateway.Message, err error) {
	if err != nil {
		r.logger.WithError(err).WithField("sender", senderID).Warn("Command failed")
		r.send(ctx, senderID, errorReply(err))
		return
	}
	if reply != "" {
		r.send(ctx, senderID, reply)
	}
	if sendErr := gateway.SendAll(ctx, r.gw, out); sendErr != nil {
		r.logger.WithError(sendErr).Warn("Outbound delivery incomplete")
		r.send(ctx, senderID, "⚠️ Algunos mensajes no pudieron enviarse.")
	}
}

func (r *Router) send(ctx context.Context, senderID, text string) {
	if err := r.gw.Send(ctx, senderID, text); err != nil {
		r.logger.WithError(err).WithField("destination", senderID).Warn("Send failed")
	}
}

// errorReply maps an engine error to a short user-facing explanation.
func errorReply(err error) string {
	switch {
	case errors.Is(err, models.ErrRoundInProgress):
		return "Ya hay una ronda con roles pendientes. Usa ESTADO para verla o CANCELAR para anularla."
	case errors.Is(err, models.ErrNoPendingOffer):
		return "No tienes una propuesta de rol pendiente ahora mismo. Escribe *MI ROL* para verificar."
	case errors.Is(err, models.ErrUnauthorized):
		return "Ese comando es solo para administradores."
	case errors.Is(err, models.ErrDuplicateID):
		return "Ese número ya está registrado en el club."
	case errors.Is(err, models.ErrInvalidID):
		return "Número inválido. Usa el formato: Nombre, 5215512345678 (solo dígitos, sin +)."
	case errors.Is(err, models.ErrNoCandidate):
		return "No hay candidato disponible para ese rol."
	case errors.Is(err, models.ErrMemberBusy):
		return "Ese miembro tiene un rol pendiente o aceptado en la ronda actual. Espera o cancela la ronda."
	case errors.Is(err, models.ErrNotFound):
		return "No encontré ese miembro en el club."
	case errors.Is(err, models.ErrCorruptState):
		return "⚠️ El estado del club está dañado y los comandos quedaron deshabilitados. Avisa al operador."
	default:
		return "❌ Ocurrió un error procesando tu mensaje. Inténtalo de nuevo."
	}
}
