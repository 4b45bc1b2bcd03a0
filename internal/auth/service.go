// Package auth handles registration, login and logout: the credential
// lifecycle in front of the token service.
package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/store"
	"github.com/financeassistant/backend/internal/subscription"
	"github.com/financeassistant/backend/internal/token"
)

// BcryptCost matches the production hash strength. ~100-300ms per hash.
const BcryptCost = 12

// Result is what a successful register or login returns: the token plus the
// subscription view the frontend stores to gate features.
type Result struct {
	Token              string
	CompanyID          int64
	Email              string
	SubscriptionStatus string // effective tier: FREE, TRIAL, ACTIVE
	TrialDaysRemaining int
	AIChatsRemaining   int
}

// Service performs the credential lifecycle.
type Service struct {
	store         *store.Store
	tokens        *token.Service
	revocations   token.RevocationStore
	subscriptions *subscription.Service
	clock         clock.Clock
	currency      string
}

// NewService wires the auth service. currency is the default tenant currency
// for companies created at registration.
func NewService(st *store.Store, tokens *token.Service, revocations token.RevocationStore,
	subs *subscription.Service, clk clock.Clock, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:         st,
		tokens:        tokens,
		revocations:   revocations,
		subscriptions: subs,
		clock:         clk,
		currency:      currency,
	}
}

// Register creates the user and their company in one transaction, then
// issues a token. New users start on the FREE tier; the trial is opt-in.
func (s *Service) Register(ctx context.Context, email, password, companyName string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	companyName = strings.TrimSpace(companyName)
	if len(companyName) < 2 || len(companyName) > 100 {
		return nil, apperr.New(apperr.ValidationFailed, "INVALID_COMPANY_NAME",
			"Company name must be 2-100 characters")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "HASH_FAILED", "Registration failed. Please try again.", err)
	}

	var (
		user    *domain.User
		company *domain.Company
	)
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.store.FindUserByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.New(apperr.Conflict, "EMAIL_TAKEN",
				"An account with this email already exists.")
		}

		user = &domain.User{
			Email:              email,
			Password:           string(digest),
			Role:               "USER",
			SubscriptionStatus: domain.StatusFree,
		}
		if err := s.store.CreateUser(ctx, tx, user); err != nil {
			return mapCreateUserErr(err)
		}

		company = &domain.Company{
			OwnerID:  user.ID,
			Name:     companyName,
			Currency: s.currency,
		}
		return s.store.CreateCompany(ctx, tx, company)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("registered new user", "email", user.Email, "company", company.Name, "companyID", company.ID)
	return s.buildResult(user, company.ID)
}

// Login verifies credentials and issues a token. The failure for an unknown
// email is indistinguishable from a bad password, and the bcrypt cost is
// paid either way so response timing does not leak account existence.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.FindUserByEmail(ctx, s.store.DB(), email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a comparison against a dummy digest to equalize latency.
		bcrypt.CompareHashAndPassword(dummyDigest, []byte(password))
		return nil, badCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, badCredentials()
	}

	company, err := s.store.FindFirstCompanyByOwner(ctx, s.store.DB(), user.ID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, apperr.New(apperr.Internal, "NO_COMPANY",
			"An error occurred. Please try again.")
	}

	slog.Info("user logged in", "email", user.Email, "companyID", company.ID)
	return s.buildResult(user, company.ID)
}

// Logout revokes the presented token for its remaining validity. Malformed
// tokens silently succeed — there is nothing to revoke.
func (s *Service) Logout(ctx context.Context, tokenStr string) {
	remaining := s.tokens.RemainingTTL(tokenStr)
	if remaining <= 0 {
		return
	}
	s.revocations.Revoke(ctx, tokenStr, remaining)
}

// SubscriptionView builds the tier summary for an already-loaded user.
func (s *Service) SubscriptionView(u *domain.User) (tier string, trialDays, chatsRemaining int) {
	now := s.clock.Now()
	window := s.subscriptions.TrialWindow()
	return u.EffectiveTier(now, window), u.TrialDaysRemaining(now, window), s.subscriptions.ChatsRemaining(u)
}

func (s *Service) buildResult(u *domain.User, companyID int64) (*Result, error) {
	tok, err := s.tokens.Issue(u.Email, companyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "TOKEN_ISSUE_FAILED",
			"An error occurred. Please try again.", err)
	}
	tier, trialDays, chats := s.SubscriptionView(u)
	return &Result{
		Token:              tok,
		CompanyID:          companyID,
		Email:              u.Email,
		SubscriptionStatus: tier,
		TrialDaysRemaining: trialDays,
		AIChatsRemaining:   chats,
	}, nil
}

func badCredentials() error {
	return apperr.New(apperr.BadCredentials, "BAD_CREDENTIALS", "Invalid email or password")
}

// mapCreateUserErr turns the unique-index conflict from a concurrent
// registration into the same EMAIL_TAKEN failure the pre-insert read
// produces. The read cannot rule the race out; the index can.
func mapCreateUserErr(err error) error {
	if store.IsUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "EMAIL_TAKEN",
			"An account with this email already exists.")
	}
	return err
}

func validateEmail(email string) error {
	if email == "" || len(email) > 255 {
		return apperr.New(apperr.ValidationFailed, "INVALID_EMAIL", "Invalid email format")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.New(apperr.ValidationFailed, "INVALID_EMAIL", "Invalid email format")
	}
	return nil
}

// dummyDigest is a bcrypt hash of an unguessable constant, compared against
// on unknown-email logins purely to keep timing flat.
var dummyDigest = []byte("$2a$12$C6UzMDM.H6dfI/f/IKcEeO5jWJmM1cmNoyPdtXA0GP2nDq2z2SsGi")
