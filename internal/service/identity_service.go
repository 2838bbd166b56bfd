package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/repository"

	"github.com/google/uuid"
)

// Identity-provider webhook event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// WebhookEvent is the envelope delivered by the identity provider.
type WebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WebhookUser is the user object carried by user.* events.
type WebhookUser struct {
	ID                    string         `json:"id"`
	Username              *string        `json:"username"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              *string        `json:"image_url"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []WebhookEmail `json:"email_addresses"`
}

type WebhookEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail prefers the address flagged primary and falls back to the first one.
func (u WebhookUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

type IdentityService struct {
	userRepo repository.UserRepository
}

func NewIdentityService(userRepo repository.UserRepository) *IdentityService {
	return &IdentityService{userRepo: userRepo}
}

// EnsureUser returns the local user for the verified token claims, provisioning
// it with a temporary username on first sight. Concurrent first requests for
// the same subject converge on one row.
func (s *IdentityService) EnsureUser(ctx context.Context, claims *middleware.IdentityClaims) (*models.User, error) {
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return nil, models.NewUnauthorizedError("Invalid token: missing subject")
	}
	existing, err := s.userRepo.GetByExternalID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := &models.User{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		ImageURL:   claims.ImageURL,
	}
	created, err := s.provision(ctx, user, s.userRepo.CreateIfAbsent)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "provisioned user from token",
		slog.Uint64("user_id", uint64(created.ID)),
		slog.String("username", created.Username),
	)
	return created, nil
}

// provision writes user with the temporary username derived from its external
// id, retrying once with a random fragment when that placeholder is taken.
func (s *IdentityService) provision(
	ctx context.Context,
	user *models.User,
	write func(context.Context, *models.User) (*models.User, error),
) (*models.User, error) {
	user.Username = models.TemporaryUsername(user.ExternalID)
	stored, err := write(ctx, user)
	if err == nil || !models.IsCode(err, models.CodeConflict) {
		return stored, err
	}
	retry := *user
	retry.ID = 0
	retry.Username = models.TemporaryUsername(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return write(ctx, &retry)
}

// HandleWebhook applies a verified identity-provider event. Unknown event types are ignored.
func (s *IdentityService) HandleWebhook(ctx context.Context, evt *WebhookEvent) error {
	switch evt.Type {
	case EventUserCreated, EventUserUpdated:
		var data WebhookUser
		if err := json.Unmarshal(evt.Data, &data); err != nil || data.ID == "" {
			return models.NewValidationError("Invalid user payload")
		}
		user := &models.User{
			ExternalID: data.ID,
			Email:      data.PrimaryEmail(),
			FirstName:  deref(data.FirstName),
			LastName:   deref(data.LastName),
			ImageURL:   deref(data.ImageURL),
		}
		stored, err := s.provision(ctx, user, s.userRepo.UpsertProfile)
		if err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "identity webhook applied",
			slog.String("event", evt.Type),
			slog.Uint64("user_id", uint64(stored.ID)),
		)
		return nil
	case EventUserDeleted:
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(evt.Data, &data); err != nil || data.ID == "" {
			return models.NewValidationError("Invalid user payload")
		}
		deleted, err := s.userRepo.DeleteByExternalID(ctx, data.ID)
		if err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "identity webhook applied",
			slog.String("event", evt.Type),
			slog.Bool("deleted", deleted),
		)
		return nil
	default:
		middleware.Logger.DebugContext(ctx, "ignoring identity webhook event", slog.String("event", evt.Type))
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
