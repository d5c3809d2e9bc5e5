// Package accounts manages staff logins.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned for any failed login
var ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindUnauthorized, Msg: "Invalid credentials"}

// Service manages users and issues access tokens
type Service struct {
	db     *gorm.DB
	secret string
	now    func() time.Time
}

// NewService creates an accounts service signing tokens with secret
func NewService(db *gorm.DB, secret string) *Service {
	return &Service{db: db, secret: secret, now: time.Now}
}

// Authenticate checks credentials and returns a signed token for the user
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, *models.UserAuth, error) {
	db := s.db.WithContext(ctx)
	var u models.UserAuth
	if err := db.Where("email = ?", normalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, apperr.Internal(err, "could not load user")
	}
	if !u.IsActive || !utils.CheckPasswordHash(password, u.Password) {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := db.Model(&u).Update("last_login", now).Error; err != nil {
		utils.LoggerFromContext(ctx).WithError(err).Warn("could not record last login")
	}
	u.LastLogin = &now

	token, err := utils.GenerateToken(&u, s.secret)
	if err != nil {
		return "", nil, apperr.Internal(err, "could not issue token")
	}
	return token, &u, nil
}

// UserInput creates a user
type UserInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Create adds a user with a hashed password
func (s *Service) Create(ctx context.Context, in UserInput) (*models.UserAuth, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Invalid("a valid email is required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleAdmin:
	default:
		return nil, apperr.Invalid("unknown role %q", in.Role)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "could not hash password")
	}
	u := &models.UserAuth{
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Password: hash,
		Role:     role,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email %s is already registered", email)
		}
		return nil, apperr.Internal(err, "could not create user")
	}
	utils.LoggerFromContext(ctx).WithFields(logrus.Fields{"email": u.Email, "role": u.Role}).Info("user created")
	return u, nil
}

// List returns every user ordered by email
func (s *Service) List(ctx context.Context) ([]models.UserAuth, error) {
	var out []models.UserAuth
	if err := s.db.WithContext(ctx).Order("email").Find(&out).Error; err != nil {
		return nil, apperr.Internal(err, "could not list users")
	}
	return out, nil
}

// Get loads one user
func (s *Service) Get(ctx context.Context, id uint) (*models.UserAuth, error) {
	var u models.UserAuth
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &u, nil
}

// Delete removes a user. Users cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return apperr.InvalidTransition("you cannot delete your own account")
	}
	res := s.db.WithContext(ctx).Delete(&models.UserAuth{}, id)
	if res.Error != nil {
		return apperr.Internal(res.Error, "could not delete user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	utils.LoggerFromContext(ctx).WithField("user_id", id).Info("user deleted")
	return nil
}

// ResetPassword sets a new password for a user
func (s *Service) ResetPassword(ctx context.Context, id uint, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return apperr.Internal(err, "could not hash password")
	}
	res := s.db.WithContext(ctx).Model(&models.UserAuth{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return apperr.Internal(res.Error, "could not update password")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// EnsureAdmin creates an admin with email unless one already exists. It
// reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, name, password string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.UserAuth{}).Where("email = ?", normalizeEmail(email)).Count(&n).Error; err != nil {
		return false, apperr.Internal(err, "could not check users")
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, UserInput{Email: email, Name: name, Password: password, Role: models.RoleAdmin}); err != nil {
		return false, err
	}
	return true, nil
}

func checkPassword(p string) error {
	if len(p) < minPasswordLength {
		return apperr.Invalid("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
