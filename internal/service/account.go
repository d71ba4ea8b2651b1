package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/validation"
)

const (
	// RememberTTL is how long a "remember me" login lasts.
	RememberTTL = 30 * 24 * time.Hour
	// DefaultBrowserSessionTTL bounds a browser-scoped login on the server
	// side; the cookie itself goes away when the browser closes.
	DefaultBrowserSessionTTL = 14 * 24 * time.Hour

	// MsgLoginFailed is the only message a failed login shows, whatever the cause.
	MsgLoginFailed = "Please enter a correct username and password."

	msgUsernameTaken = "A user with that username already exists."
	maxUsernameLen   = 150
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Password1 string `form:"password1" validate:"required,min=8,not_numeric,nefield=Username"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// LoginInput is the login form. Passwords are never trimmed.
type LoginInput struct {
	Username   string `form:"username" validate:"required"`
	Password   string `form:"password" validate:"required"`
	RememberMe bool   `form:"remember_me"`
	Next       string `form:"next"`
}

// SessionTicket is what the handler needs to set the session cookie.
type SessionTicket struct {
	Token      string
	ExpiresAt  time.Time
	Persistent bool
}

// AccountService owns registration, password and GitHub login, and the
// lifecycle of server-side sessions.
type AccountService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	images     ImageStore
	passwords  *auth.PasswordService
	tokens     *auth.TokenService
	browserTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewAccountService wires an AccountService. browserTTL <= 0 selects
// DefaultBrowserSessionTTL.
func NewAccountService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	images ImageStore,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	browserTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	if browserTTL <= 0 {
		browserTTL = DefaultBrowserSessionTTL
	}
	return &AccountService{
		users:      users,
		sessions:   sessions,
		images:     images,
		passwords:  passwords,
		tokens:     tokens,
		browserTTL: browserTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Register validates the sign-up form and creates an active, non-staff user.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)

	errs := validation.Struct(in)
	if len(in.Password1) > auth.MaxPasswordBytes {
		errs = validation.Merge(errs, validation.FieldErrors{
			"password1": fmt.Sprintf("Ensure this value has at most %d characters.", auth.MaxPasswordBytes),
		})
	}
	if _, bad := errs["username"]; !bad && in.Username != "" {
		switch _, err := s.users.GetUserByUsername(ctx, in.Username); {
		case err == nil:
			errs = validation.Merge(errs, validation.FieldErrors{"username": msgUsernameTaken})
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("service/account: checking username: %w", err)
		}
	}
	if err := invalid(errs); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password1)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	user := &model.User{Username: in.Username, PasswordHash: hash, IsActive: true}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks a username and password. Every failure (unknown user,
// wrong password, inactive or GitHub-only account) is the same
// apperror.ErrUnauthorized so the form cannot be used to probe usernames.
// Empty fields are a validation error instead.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	in := LoginInput{Username: strings.TrimSpace(username), Password: password}
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(MsgLoginFailed)
		}
		return nil, fmt.Errorf("service/account: looking up %q: %w", in.Username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("verifying password",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(MsgLoginFailed)
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized(MsgLoginFailed)
	}
	return user, nil
}

// StartSession records a new login for userID and signs its cookie token.
func (s *AccountService) StartSession(ctx context.Context, userID int64, remember bool) (*SessionTicket, error) {
	now := s.now()
	ttl := s.browserTTL
	if remember {
		ttl = RememberTTL
	}

	session := &model.Session{
		ID:        xid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/account: creating session: %w", err)
	}

	token, err := s.tokens.Issue(session.ID, userID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	s.logger.Info("session started",
		slog.Int64("userID", userID),
		slog.Bool("remember", remember),
	)
	return &SessionTicket{Token: token, ExpiresAt: session.ExpiresAt, Persistent: remember}, nil
}

// ResolveSession returns the user behind a session cookie. Forged, expired
// and revoked tokens, and tokens of inactive users, are apperror.ErrUnauthorized.
func (s *AccountService) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid session token")
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("unknown session")
		}
		return nil, fmt.Errorf("service/account: loading session: %w", err)
	}
	if session.UserID != claims.UserID || !session.Active(s.now()) {
		return nil, apperror.Unauthorized("session ended")
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session user gone")
		}
		return nil, fmt.Errorf("service/account: loading session user: %w", err)
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("account disabled")
	}
	return user, nil
}

// EndSession revokes the session named by token. Logging out must always
// succeed for the visitor, so problems are only logged.
func (s *AccountService) EndSession(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	if err := s.sessions.RevokeSession(ctx, claims.SessionID, s.now()); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Warn("revoking session",
			slog.String("sessionID", claims.SessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("session ended", slog.Int64("userID", claims.UserID))
}

var notUsernameChars = regexp.MustCompile(`[^\w.@+-]`)

// LoginWithGitHub returns the account linked to a GitHub user, creating one
// on first sign-in. The new account's username is the GitHub login, with a
// numeric suffix when that name is already taken.
func (s *AccountService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/account: GitHub user must not be empty")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		if !user.IsActive {
			return nil, apperror.Unauthorized("account disabled")
		}
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: looking up GitHub user %d: %w", gh.ID, err)
	}

	base := notUsernameChars.ReplaceAllString(gh.Login, "")
	if base == "" {
		base = "github"
	}
	ghID := gh.ID
	for attempt := 0; attempt < 20; attempt++ {
		user = &model.User{
			Username: githubUsername(base, attempt),
			Email:    gh.Email,
			GitHubID: &ghID,
			IsActive: true,
		}
		err = s.users.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info("user registered via GitHub",
				slog.Int64("userID", user.ID),
				slog.String("username", user.Username),
				slog.Int64("githubID", gh.ID),
			)
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/account: creating GitHub user: %w", err)
		}
		// The conflict may be the github_id itself if another request won a race.
		if existing, lookupErr := s.users.GetUserByGitHubID(ctx, gh.ID); lookupErr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("service/account: no free username for GitHub login %q", gh.Login)
}

func githubUsername(base string, attempt int) string {
	suffix := ""
	if attempt > 0 {
		suffix = "-" + strconv.Itoa(attempt+1)
	}
	if len(base)+len(suffix) > maxUsernameLen {
		base = base[:maxUsernameLen-len(suffix)]
	}
	return base + suffix
}

// CreateSuperuser creates a staff superuser from the command line. The
// password rules of the sign-up form apply.
func (s *AccountService) CreateSuperuser(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	in := RegisterInput{Username: username, Password1: password, Password2: password}
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("service/account: creating superuser: %w", err)
	}

	s.logger.Info("superuser created",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// DeleteUser removes an account and everything it owns, uploaded files
// included. Files go only after the rows are gone; a file that cannot be
// removed is logged.
func (s *AccountService) DeleteUser(ctx context.Context, username string) error {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("service/account: %w", err)
	}
	files, err := s.users.ListUserMedia(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("service/account: %w", err)
	}
	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("service/account: deleting user %d: %w", user.ID, err)
	}
	for _, rel := range files {
		if err := s.images.Delete(rel); err != nil {
			s.logger.Warn("removing file of deleted user",
				slog.Int64("userID", user.ID),
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("user deleted",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}
