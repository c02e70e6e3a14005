package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"gorm.io/gorm"
)

// CreateUser registers a new account. Used by the register endpoint and the
// `user create` command.
func CreateUser(ctx context.Context, db *gorm.DB, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return nil, apperr.Validation("Email and name are required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{Email: email, PasswordHash: hashedPassword, Name: name}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// FindUserByEmail returns the account for email
func FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
