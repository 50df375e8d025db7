package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/models"
)

// userService handles user-related business logic. Users authenticate with
// the hosted auth provider; this service only keeps their profile.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// EnsureUser returns the profile for the token subject id, creating it on
// first access.
func (s *userService) EnsureUser(id, email string) (*models.User, error) {
	if id == "" {
		return nil, apperrors.ErrUnauthorized
	}

	user, err := s.GetUserByID(id)
	if err == nil {
		return user, nil
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrUserNotFound.Code {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = id + "@users.mana.local"
	}
	user = &models.User{
		Base:          models.Base{ID: id},
		Email:         email,
		Currency:      "BRL",
		AlertsEnabled: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields to the user's profile.
func (s *userService) UpdateProfile(id string, fields ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		updates["name"] = strings.TrimSpace(*fields.Name)
	}
	if fields.Currency != nil {
		updates["currency"] = strings.ToUpper(*fields.Currency)
	}
	if fields.AlertsEnabled != nil {
		updates["alerts_enabled"] = *fields.AlertsEnabled
	}

	if len(updates) > 0 {
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return user, nil
}

// ListUserIDs returns the ids of every user, oldest first.
func (s *userService) ListUserIDs() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.User{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}
