package handlers

import (
	"fmt"
	"strings"
)

// Root-menu action ids stored in Session.rootOptions.
const (
	actMemberMenu = "member_menu"
	actAdminMenu  = "admin_menu"
	actMyStatus   = "my_status"
)

// rootMenu renders the root menu for the sender and records the rendered
// options in the session so a numeric reply can be resolved against what
// the sender actually saw.
func (r *Router) rootMenu(sess *Session, senderID string) string {
	sess.backToRoot()

	lines := []string{"🤖 RolesClubBot – elige una opción:"}
	add := func(label, action string) {
		sess.rootOptions = append(sess.rootOptions, action)
		lines = append(lines, fmt.Sprintf("%d. %s", len(sess.rootOptions), label))
	}

	if _, ok := r.registry.MemberClub(senderID); ok {
		add("Menú de miembro", actMemberMenu)
	}
	if len(r.registry.AdminClubs(senderID)) > 0 {
		add("Menú de administración", actAdminMenu)
	}
	add("Mi estado", actMyStatus)

	lines = append(lines, "", "Envía el número de la opción.")
	return strings.Join(lines, "\n")
}

func memberMenu() string {
	return strings.Join([]string{
		"📋 Menú de miembro:",
		"1. Mi rol",
		"2. Estado de la ronda",
		"3. Volver",
	}, "\n")
}

func adminMenu(clubID string) string {
	return strings.Join([]string{
		fmt.Sprintf("🛠️ Administración de %s:", clubID),
		"1. Iniciar ronda",
		"2. Estado",
		"3. Cancelar ronda",
		"4. Reset",
		"5. Miembros",
		"6. Agregar miembro",
		"7. Eliminar miembro",
		"8. Volver",
	}, "\n")
}

func pickMenu(clubs []string) string {
	lines := []string{"Administras varios clubes. Elige uno:"}
	for i, id := range clubs {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, id))
	}
	return strings.Join(lines, "\n")
}
