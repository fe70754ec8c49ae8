package db

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"

	"github.com/membrs/membrs/internal/db/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSuperUser     = "admin"
	defaultSuperPassword = "admin"
)

// EnsureSuperUser creates the default admin/admin superuser on first run.
func (s *Store) EnsureSuperUser(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SuperUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count superusers: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := s.UpdateSuperUser(ctx, defaultSuperUser, defaultSuperPassword); err != nil {
		return err
	}
	log.Printf("🔑 Created default superuser %q, change its password with PUT /superuser", defaultSuperUser)
	return nil
}

// VerifySuperUser checks a username and password against the stored superuser.
func (s *Store) VerifySuperUser(ctx context.Context, username, password string) (bool, error) {
	var su models.SuperUser
	err := s.db.WithContext(ctx).First(&su, models.SuperUserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get superuser: %w", err)
	}
	// Both comparisons always run.
	userOK := subtle.ConstantTimeCompare([]byte(su.Username), []byte(username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(su.PasswordHash), []byte(password)) == nil
	return userOK && passOK, nil
}

// UpdateSuperUser replaces the superuser's credentials.
func (s *Store) UpdateSuperUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	su := models.SuperUser{ID: models.SuperUserID, Username: username, PasswordHash: string(hash)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash", "updated_at"}),
	}).Create(&su).Error
	if err != nil {
		return fmt.Errorf("save superuser: %w", err)
	}
	return nil
}
