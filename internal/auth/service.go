package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sara-platform/portal/internal/core/common/validation"
	"github.com/sara-platform/portal/internal/core/events"
	"github.com/sara-platform/portal/internal/metrics"
	"golang.org/x/crypto/bcrypt"
)

// Service authenticates accounts and resolves request identities.
type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Authenticate checks the credentials and the account's pinned source address.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO, sourceAddr string) (*Identity, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	cred, err := s.repo.FindByUsername(ctx, dto.Username)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("find credentials for %q: %w", dto.Username, err)
	}
	if cred == nil || !CheckPassword(cred.PasswordHash, dto.Password) {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if !cred.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("inactive").Inc()
		return nil, ErrUserInactive
	}
	if !cred.SourceAllowed(sourceAddr) {
		metrics.LoginAttemptsTotal.WithLabelValues("address_denied").Inc()
		s.logger.WarnContext(ctx, "login from unauthorized address",
			"user_id", cred.UserID,
			"source_address", sourceAddr)
		return nil, ErrSourceDenied
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewUserLoggedInEvent(cred.UserID, sourceAddr)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish login event", "error", err)
		}
	}
	return cred.Identity(), nil
}

// ResolveIdentity turns a session's user id into an identity. Deleted or
// inactive accounts and requests from a non-pinned address yield (nil, nil).
func (s *Service) ResolveIdentity(ctx context.Context, userID int64, sourceAddr string) (*Identity, error) {
	cred, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if cred == nil || !cred.IsActive || !cred.SourceAllowed(sourceAddr) {
		return nil, nil
	}
	return cred.Identity(), nil
}

// ClientAddress returns the first X-Forwarded-For hop, or the host part of
// the connection's remote address.
func ClientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HashPassword creates a bcrypt hash of the password
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
