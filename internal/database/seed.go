package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/domain"
	"github.com/sandeepkv93/erp-identity-core/internal/observability"

	"gorm.io/gorm"
)

type BootstrapAdmin struct {
	Email        string
	Name         string
	PasswordHash string
}

type SeedReport struct {
	CreatedAdmin  bool `json:"created_admin"`
	PromotedAdmin bool `json:"promoted_admin"`
	Noop          bool `json:"noop"`
}

// SeedBootstrapAdmin makes sure the configured administrator exists so the
// first accounts can be registered by an authenticated caller. Existing
// passwords are never overwritten.
func SeedBootstrapAdmin(db *gorm.DB, admin BootstrapAdmin) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	report := &SeedReport{}
	email := strings.TrimSpace(strings.ToLower(admin.Email))
	if email == "" {
		report.Noop = true
		return report, nil
	}
	if admin.PasswordHash == "" {
		return nil, fmt.Errorf("bootstrap admin password hash is required")
	}
	name := strings.TrimSpace(admin.Name)
	if name == "" {
		name = "System Administrator"
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var cred domain.Credential
		err := tx.Where("email = ?", email).First(&cred).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			cred = domain.Credential{
				Email:        email,
				PasswordHash: admin.PasswordHash,
				Name:         name,
				Role:         domain.RoleAdmin,
				Department:   "Administration",
				Active:       true,
			}
			if err := tx.Create(&cred).Error; err != nil {
				return fmt.Errorf("create bootstrap admin: %w", err)
			}
			profile := domain.EmployeeProfile{
				CredentialID: cred.ID,
				Email:        email,
				FullName:     name,
				Department:   cred.Department,
			}
			if err := tx.Create(&profile).Error; err != nil {
				return fmt.Errorf("create bootstrap admin profile: %w", err)
			}
			report.CreatedAdmin = true
		case err != nil:
			return err
		case cred.Role != domain.RoleAdmin || !cred.Active:
			if err := tx.Model(&cred).Updates(map[string]any{"role": domain.RoleAdmin, "active": true}).Error; err != nil {
				return fmt.Errorf("promote bootstrap admin: %w", err)
			}
			report.PromotedAdmin = true
		}
		return nil
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return nil, err
	}
	report.Noop = !report.CreatedAdmin && !report.PromotedAdmin
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}
