package service

import (
	"context"

	"promptguy/internal/models"
	"promptguy/internal/repository"
	"promptguy/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

// UsernameStatus answers whether the caller still has to claim a username.
type UsernameStatus struct {
	Authenticated bool   `json:"authenticated"`
	HasUsername   bool   `json:"hasUsername"`
	Username      string `json:"username,omitempty"`
}

// UsernameAvailability is the result of an availability probe.
type UsernameAvailability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// SetUsernameInput claims a username. AllowChange permits replacing one that
// was already claimed.
type SetUsernameInput struct {
	UserID      uint   `json:"-"`
	Username    string `json:"username" validate:"required"`
	AllowChange bool   `json:"-"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UsernameStatus reports the claim state for user; nil means unauthenticated.
func (s *UserService) UsernameStatus(user *models.User) UsernameStatus {
	if user == nil {
		return UsernameStatus{}
	}
	status := UsernameStatus{Authenticated: true, HasUsername: user.HasUsername()}
	if status.HasUsername {
		status.Username = user.Username
	}
	return status
}

func (s *UserService) CheckAvailability(ctx context.Context, username string) (*UsernameAvailability, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return &UsernameAvailability{Available: false, Reason: validation.UsernameReason(err)}, nil
	}
	taken, err := s.userRepo.UsernameTaken(ctx, validation.NormalizeUsername(username), 0)
	if err != nil {
		return nil, err
	}
	return &UsernameAvailability{Available: !taken}, nil
}

// SetUsername claims (or, with AllowChange, changes) the caller's username.
func (s *UserService) SetUsername(ctx context.Context, in SetUsernameInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !in.AllowChange && user.HasUsername() {
		return nil, models.NewConflictError("Username already set")
	}

	name := validation.NormalizeUsername(in.Username)
	if name == user.Username {
		return user, nil
	}
	taken, err := s.userRepo.UsernameTaken(ctx, name, user.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("Username taken")
	}
	return s.userRepo.UpdateUsername(ctx, user.ID, name)
}

func (s *UserService) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return s.userRepo.SetAdmin(ctx, id, admin)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}
