package models

// PendingOffer is a role offered to a candidate who has not answered yet.
// Accepted stays false for as long as the offer lives in RoundState.Pending.
type PendingOffer struct {
	Candidate  string   `json:"candidate"`
	DeclinedBy []string `json:"declined_by"`
	Accepted   bool     `json:"accepted"`
}

// Acceptance records who took a role. The name is denormalized so summaries
// render without a catalog lookup and survive mid-round renames.
type Acceptance struct {
	WAID string `json:"waid"`
	Name string `json:"name"`
}

// RoundState is one club's round ledger, persisted as state.json.
type RoundState struct {
	Round        int                      `json:"round"`
	Pending      map[string]*PendingOffer `json:"pending"`
	Accepted     map[string]Acceptance    `json:"accepted"`
	MembersCycle map[string][]string      `json:"members_cycle"`
	LastSummary  *string                  `json:"last_summary"`
	Canceled     bool                     `json:"canceled"`
}

// NewRoundState returns the zero round state.
func NewRoundState() *RoundState {
	return &RoundState{
		Pending:      map[string]*PendingOffer{},
		Accepted:     map[string]Acceptance{},
		MembersCycle: map[string][]string{},
	}
}

// Normalize replaces nil maps left behind by a JSON decode of a sparse file.
func (st *RoundState) Normalize() {
	if st.Pending == nil {
		st.Pending = map[string]*PendingOffer{}
	}
	if st.Accepted == nil {
		st.Accepted = map[string]Acceptance{}
	}
	if st.MembersCycle == nil {
		st.MembersCycle = map[string][]string{}
	}
}

// OfferFor returns the role currently offered to the member, if any. A
// member holds at most one pending offer per round.
func (st *RoundState) OfferFor(memberID string) (string, bool) {
	for role, info := range st.Pending {
		if info.Candidate == memberID {
			return role, true
		}
	}
	return "", false
}

// AcceptedRoleFor returns the role the member accepted in this round, if any.
func (st *RoundState) AcceptedRoleFor(memberID string) (string, bool) {
	for role, acc := range st.Accepted {
		if acc.WAID == memberID {
			return role, true
		}
	}
	return "", false
}

// Engaged reports whether the member holds a pending offer or an accepted
// role in this round.
func (st *RoundState) Engaged(memberID string) bool {
	if _, ok := st.OfferFor(memberID); ok {
		return true
	}
	_, ok := st.AcceptedRoleFor(memberID)
	return ok
}

// BusyIDs returns every member currently holding an offer or an accepted
// role. Selection excludes them so nobody carries two roles in one round.
func (st *RoundState) BusyIDs() map[string]bool {
	busy := make(map[string]bool, len(st.Pending)+len(st.Accepted))
	for _, info := range st.Pending {
		busy[info.Candidate] = true
	}
	for _, acc := range st.Accepted {
		busy[acc.WAID] = true
	}
	return busy
}
