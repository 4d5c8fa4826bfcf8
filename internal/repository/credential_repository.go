package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"

	"gorm.io/gorm"
)

type CredentialRepository interface {
	// EmailTaken checks both identity tables.
	EmailTaken(ctx context.Context, email string) (bool, error)
	CreateWithProfile(ctx context.Context, cred *domain.Credential, profile *domain.EmployeeProfile) error
	FindByID(ctx context.Context, id uint) (*domain.Credential, error)
	FindActiveByEmail(ctx context.Context, email string) (*domain.Credential, error)
	FindActiveByEmailOrPhone(ctx context.Context, email, phone string) (*domain.Credential, *domain.EmployeeProfile, error)
	FindProfile(ctx context.Context, credentialID uint) (*domain.EmployeeProfile, error)
	UpdatePassword(ctx context.Context, id uint, passwordHash string, at time.Time) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Deactivate(ctx context.Context, id uint, at time.Time) error
}

type GormCredentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var creds, profiles int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&domain.Credential{}).Where("email = ?", email).Count(&creds).Error; err != nil {
		record(ctx, "credential", "email_taken", err)
		return false, err
	}
	if creds > 0 {
		record(ctx, "credential", "email_taken", nil)
		return true, nil
	}
	if err := db.Model(&domain.EmployeeProfile{}).Where("email = ?", email).Count(&profiles).Error; err != nil {
		record(ctx, "credential", "email_taken", err)
		return false, err
	}
	record(ctx, "credential", "email_taken", nil)
	return profiles > 0, nil
}

// CreateWithProfile writes the credential and its employee profile in one
// transaction so neither table ever holds half an identity.
func (r *GormCredentialRepository) CreateWithProfile(ctx context.Context, cred *domain.Credential, profile *domain.EmployeeProfile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cred).Error; err != nil {
			return translate(err)
		}
		profile.CredentialID = cred.ID
		if err := tx.Create(profile).Error; err != nil {
			return translate(err)
		}
		return nil
	})
	record(ctx, "credential", "create_with_profile", err)
	return err
}

func (r *GormCredentialRepository) FindByID(ctx context.Context, id uint) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).First(&cred, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrCredentialNotFound
	}
	record(ctx, "credential", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormCredentialRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).Where("email = ? AND active = ?", email, true).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrCredentialNotFound
	}
	record(ctx, "credential", "find_active_by_email", err)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// FindActiveByEmailOrPhone resolves an OTP target. Email wins when both are
// given; phone numbers are looked up on the employee profile.
func (r *GormCredentialRepository) FindActiveByEmailOrPhone(ctx context.Context, email, phone string) (*domain.Credential, *domain.EmployeeProfile, error) {
	db := r.db.WithContext(ctx)
	var profile domain.EmployeeProfile
	var err error
	switch {
	case email != "":
		err = db.Where("email = ?", email).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Accounts seeded without a profile still resolve by credential email.
			var cred domain.Credential
			err = db.Where("email = ? AND active = ?", email, true).First(&cred).Error
			if err == nil {
				record(ctx, "credential", "find_active_by_email_or_phone", nil)
				return &cred, nil, nil
			}
		}
	case phone != "":
		err = db.Where("phone = ?", phone).First(&profile).Error
	default:
		err = gorm.ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrCredentialNotFound
	}
	if err != nil {
		record(ctx, "credential", "find_active_by_email_or_phone", err)
		return nil, nil, err
	}

	var cred domain.Credential
	err = db.Where("id = ? AND active = ?", profile.CredentialID, true).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrCredentialNotFound
	}
	record(ctx, "credential", "find_active_by_email_or_phone", err)
	if err != nil {
		return nil, nil, err
	}
	return &cred, &profile, nil
}

func (r *GormCredentialRepository) FindProfile(ctx context.Context, credentialID uint) (*domain.EmployeeProfile, error) {
	var profile domain.EmployeeProfile
	err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrProfileNotFound
	}
	record(ctx, "employee_profile", "find_by_credential", err)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormCredentialRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string, at time.Time) error {
	err := r.updateByID(ctx, id, map[string]any{
		"password_hash":       passwordHash,
		"password_changed_at": at,
		"updated_at":          at,
	})
	record(ctx, "credential", "update_password", err)
	return err
}

func (r *GormCredentialRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	err := r.updateByID(ctx, id, map[string]any{"last_login_at": at})
	record(ctx, "credential", "touch_last_login", err)
	return err
}

func (r *GormCredentialRepository) Deactivate(ctx context.Context, id uint, at time.Time) error {
	err := r.updateByID(ctx, id, map[string]any{"active": false, "updated_at": at})
	record(ctx, "credential", "deactivate", err)
	return err
}

func (r *GormCredentialRepository) updateByID(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Credential{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
