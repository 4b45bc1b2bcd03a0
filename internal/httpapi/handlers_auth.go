package httpapi

import (
	"net/http"

	"github.com/financeassistant/backend/internal/auth"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is shared by register and login: the token plus the
// subscription view the frontend gates features on.
type authResponse struct {
	Token              string `json:"token"`
	Email              string `json:"email"`
	CompanyID          int64  `json:"companyId"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	TrialDaysRemaining int    `json:"trialDaysRemaining"`
	AIChatsRemaining   int    `json:"aiChatsRemaining"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.auth.Register(r.Context(), req.Email, req.Password, req.CompanyName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// handleLogout revokes the presented token. It succeeds even without a
// valid token so a half-expired session can always be cleaned up client
// side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		s.auth.Logout(r.Context(), raw)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	tier, trialDays, chats := s.auth.SubscriptionView(p.user)
	writeJSON(w, http.StatusOK, map[string]any{
		"email":              p.user.Email,
		"companyId":          p.claims.CompanyID,
		"subscriptionStatus": tier,
		"trialDaysRemaining": trialDays,
		"aiChatsRemaining":   chats,
	})
}

func toAuthResponse(res *auth.Result) authResponse {
	return authResponse{
		Token:              res.Token,
		Email:              res.Email,
		CompanyID:          res.CompanyID,
		SubscriptionStatus: res.SubscriptionStatus,
		TrialDaysRemaining: res.TrialDaysRemaining,
		AIChatsRemaining:   res.AIChatsRemaining,
	}
}
