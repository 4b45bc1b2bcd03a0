package httpapi

import (
	"net/http"
	"time"

	"github.com/financeassistant/backend/internal/domain"
)

// subscriptionStatusView is the full tier summary the frontend polls.
type subscriptionStatusView struct {
	Tier               string `json:"tier"`
	Status             string `json:"status"`
	HasPremiumAccess   bool   `json:"hasPremiumAccess"`
	TrialAlreadyUsed   bool   `json:"trialAlreadyUsed"`
	TrialDaysRemaining int    `json:"trialDaysRemaining"`
	AIChatsRemaining   int    `json:"aiChatsRemaining"`
	AIChatDailyLimit   int    `json:"aiChatDailyLimit"`
	ExpiresAt          string `json:"expiresAt,omitempty"`
}

func (s *Server) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	user, err := s.subscriptions.StartTrial(r.Context(), p.user.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusView(user))
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	writeJSON(w, http.StatusOK, s.statusView(p.user))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if err := s.subscriptions.Cancel(r.Context(), p.user.Email); err != nil {
		writeError(w, err)
		return
	}
	// Re-read so the response reflects the post-cancel state.
	user, err := s.store.FindUserByEmail(r.Context(), s.store.DB(), p.user.Email)
	if err != nil || user == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription cancelled"})
		return
	}
	writeJSON(w, http.StatusOK, s.statusView(user))
}

func (s *Server) statusView(u *domain.User) subscriptionStatusView {
	now := s.clock.Now()
	window := s.trialWindow()
	view := subscriptionStatusView{
		Tier:               u.EffectiveTier(now, window),
		Status:             string(u.SubscriptionStatus),
		HasPremiumAccess:   u.HasPremiumAccess(now, window),
		TrialAlreadyUsed:   u.TrialAlreadyUsed(),
		TrialDaysRemaining: u.TrialDaysRemaining(now, window),
		AIChatsRemaining:   s.subscriptions.ChatsRemaining(u),
		AIChatDailyLimit:   s.subscriptions.DailyLimit(u),
	}
	if u.SubscriptionExpiresAt != nil {
		view.ExpiresAt = u.SubscriptionExpiresAt.UTC().Format(time.RFC3339)
	}
	return view
}
