package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/hash"
	"github.com/sqlbots/dashboard/internal/license"
	"github.com/sqlbots/dashboard/internal/logging"
	"github.com/sqlbots/dashboard/internal/models"
)

var (
	ErrMissingFields  = errors.New("username, email, password and license key are required")
	ErrInvalidLicense = errors.New("license key is invalid")
	ErrLicenseClaimed = errors.New("license key has already been used")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrEmailTaken     = errors.New("email is already registered")
)

// Service owns the users table. Signup is the only path that creates users
// and it always claims a license atomically with the insert.
type Service struct {
	DB     *gorm.DB
	Ledger *license.Ledger
}

// Signup creates a user bound to an unclaimed license key. There is no
// transaction across the two tables: the user row is inserted first with
// the license pointer pre-set, then the conditional claim runs. Losing the
// claim race deletes the just-created user row and reports a conflict.
func (s *Service) Signup(ctx context.Context, username, email, password, licenseKey string) (*models.User, error) {
	log := logging.FromContext(ctx).With("svc", "account.signup")

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	licenseKey = strings.TrimSpace(licenseKey)
	if username == "" || email == "" || password == "" || licenseKey == "" {
		return nil, ErrMissingFields
	}

	lic, err := s.Ledger.LookupByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return nil, ErrInvalidLicense
		}
		return nil, err
	}
	if lic.UserID != nil {
		return nil, ErrLicenseClaimed
	}

	// Username conflicts always win over email conflicts when both apply.
	if err := s.taken(ctx, "username = ?", username); err != nil {
		if errors.Is(err, errTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	if err := s.taken(ctx, "email = ?", email); err != nil {
		if errors.Is(err, errTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		LicenseID:    &lic.ID,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := s.Ledger.ClaimForNewUser(ctx, lic.ID, user.ID); err != nil {
		if delErr := s.DB.WithContext(ctx).Delete(&models.User{}, "id = ?", user.ID).Error; delErr != nil {
			log.Error("compensating user delete failed", "user_id", user.ID, "error", delErr)
		}
		return nil, err
	}

	log.Info("user registered", "user_id", user.ID, "license_id", lic.ID)
	return &user, nil
}

var errTaken = errors.New("taken")

func (s *Service) taken(ctx context.Context, query, value string) error {
	var existing models.User
	err := s.DB.WithContext(ctx).Where(query, value).First(&existing).Error
	if err == nil {
		return errTaken
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return fmt.Errorf("uniqueness check: %w", err)
}
