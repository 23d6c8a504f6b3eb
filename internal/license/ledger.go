package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/logging"
	"github.com/sqlbots/dashboard/internal/models"
)

var (
	ErrNotFound       = errors.New("license not found")
	ErrAlreadyClaimed = errors.New("license already claimed")
	ErrClaimConflict  = errors.New("license claimed by another request")
	ErrUserNotFound   = errors.New("user not found")
)

// Ledger owns the licenses table. A license key binds to at most one user,
// enforced by conditional updates on the user_id IS NULL predicate.
type Ledger struct {
	DB *gorm.DB
}

type ExtendResult struct {
	License   *models.License
	ExpiresAt time.Time
	DaysAdded int
}

func (l *Ledger) LookupByKey(ctx context.Context, key string) (*models.License, error) {
	var lic models.License
	if err := l.DB.WithContext(ctx).Where("license_key = ?", key).First(&lic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("license lookup: %w", err)
	}
	return &lic, nil
}

// ClaimForNewUser binds an unclaimed license to a user with a single
// conditional update. Zero affected rows means a concurrent request won
// the key between the caller's lookup and this write.
func (l *Ledger) ClaimForNewUser(ctx context.Context, licenseID, userID string) error {
	res := l.DB.WithContext(ctx).Model(&models.License{}).
		Where("id = ? AND user_id IS NULL", licenseID).
		Update("user_id", userID)
	if res.Error != nil {
		return fmt.Errorf("license claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrClaimConflict
	}
	return nil
}

// ComputeExtension returns the new expiry and the days granted. An active
// license stacks on its remaining time; a lapsed one restarts from now.
func ComputeExtension(planType string, currentExpiry *time.Time, now time.Time) (time.Time, int) {
	daysToAdd := 30
	if planType == "90d" {
		daysToAdd = 90
	}

	base := now
	if currentExpiry != nil && currentExpiry.After(now) {
		base = *currentExpiry
	}
	return base.AddDate(0, 0, daysToAdd), daysToAdd
}

// ExtendAndAssign redeems a fresh license key for an existing user: the new
// expiry accumulates against the user's current license clock, then the
// user's pointer switches to the redeemed key. A key that is already bound
// to any user is rejected outright; this path never re-extends a bound key.
func (l *Ledger) ExtendAndAssign(ctx context.Context, licenseKey, userID string) (*ExtendResult, error) {
	log := logging.FromContext(ctx).With("svc", "license.extend", "user_id", userID)

	lic, err := l.LookupByKey(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if lic.UserID != nil {
		return nil, ErrAlreadyClaimed
	}

	var user models.User
	if err := l.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	// The basis for stacking is the user's current license, not the key
	// being redeemed.
	var currentExpiry *time.Time
	if user.LicenseID != nil {
		var current models.License
		if err := l.DB.WithContext(ctx).Where("id = ?", *user.LicenseID).First(&current).Error; err == nil {
			currentExpiry = current.ExpiresAt
		}
	}

	now := time.Now().UTC()
	newExpiry, daysAdded := ComputeExtension(lic.PlanType, currentExpiry, now)

	// Re-read right before the write to shrink the race window; the
	// conditional update below is still the real gate.
	var recheck models.License
	if err := l.DB.WithContext(ctx).
		Where("id = ? AND user_id IS NULL", lic.ID).
		First(&recheck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimConflict
		}
		return nil, fmt.Errorf("license recheck: %w", err)
	}

	res := l.DB.WithContext(ctx).Model(&models.License{}).
		Where("id = ? AND user_id IS NULL", lic.ID).
		Updates(map[string]any{"user_id": userID, "expires_at": newExpiry})
	if res.Error != nil {
		return nil, fmt.Errorf("license update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrClaimConflict
	}

	if err := l.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("license_id", lic.ID).Error; err != nil {
		// Best-effort compensation: release the key so it stays redeemable.
		if rbErr := l.DB.WithContext(ctx).Model(&models.License{}).
			Where("id = ?", lic.ID).
			Update("user_id", nil).Error; rbErr != nil {
			log.Error("license rollback failed", "license_id", lic.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("user license pointer update: %w", err)
	}

	lic.UserID = &userID
	lic.ExpiresAt = &newExpiry
	return &ExtendResult{License: lic, ExpiresAt: newExpiry, DaysAdded: daysAdded}, nil
}
