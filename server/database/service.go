// Package database is the reference server's account service layer.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wastetrack/api"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	tokenTTL     = 7 * 24 * time.Hour
	tempTokenTTL = 5 * time.Minute
)

// Account is a stored user with its roles.
type Account struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	FullName         string
	Phone            string
	VehicleNumber    string
	VehicleType      string
	IsApproved       bool
	TwoFactorEnabled bool
	TwoFactorMethod  string
	Roles            []string
}

// User converts the account to its wire representation.
func (a *Account) User() *api.User {
	return &api.User{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FullName:      a.FullName,
		Phone:         a.Phone,
		Roles:         a.Roles,
		IsApproved:    a.IsApproved,
		VehicleNumber: a.VehicleNumber,
		VehicleType:   a.VehicleType,
	}
}

// AuthService handles account storage and token issuance.
type AuthService struct {
	db        *sql.DB
	jwtSecret []byte
}

// NewAuthService creates the service over an open database handle.
func NewAuthService(db *sql.DB, jwtSecret string) *AuthService {
	return &AuthService{db: db, jwtSecret: []byte(jwtSecret)}
}

// CreateUser registers an account with the given roles. The username
// is stored lower-cased and trimmed.
func (s *AuthService) CreateUser(ctx context.Context, req api.RegisterArgs, roles []string, approved bool) (*Account, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("username, email and password are required")
	}

	exists, err := s.userExists(ctx, username, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &Account{
		ID:               uuid.NewString(),
		Username:         username,
		Email:            req.Email,
		PasswordHash:     string(passwordHash),
		FullName:         req.FullName,
		Phone:            req.Phone,
		VehicleNumber:    req.VehicleNumber,
		VehicleType:      req.VehicleType,
		IsApproved:       approved,
		TwoFactorEnabled: req.TwoFactorEnabled,
		TwoFactorMethod:  req.TwoFactorMethod,
		Roles:            roles,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO users
		(id, username, email, password_hash, full_name, phone, vehicle_number, vehicle_type, is_approved, two_factor_enabled, two_factor_method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Username, acct.Email, acct.PasswordHash, acct.FullName, acct.Phone,
		acct.VehicleNumber, acct.VehicleType, acct.IsApproved, acct.TwoFactorEnabled, acct.TwoFactorMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, acct.ID, role); err != nil {
			return nil, fmt.Errorf("failed to insert role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return acct, nil
}

// Authenticate verifies the credentials and returns the account.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acct, err := s.getUserBy(ctx, "email", email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// GetUser loads an account by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*Account, error) {
	return s.getUserBy(ctx, "id", userID)
}

// ListCollectors returns every account holding the collector role.
func (s *AuthService) ListCollectors(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.username, u.email, u.full_name, u.phone, u.vehicle_number, u.vehicle_type, u.is_approved
		FROM users u JOIN user_roles r ON r.user_id = u.id
		WHERE r.role = ? ORDER BY u.username`, api.RoleCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to list collectors: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		acct := &Account{Roles: []string{api.RoleCollector}}
		if err := rows.Scan(&acct.ID, &acct.Username, &acct.Email, &acct.FullName, &acct.Phone,
			&acct.VehicleNumber, &acct.VehicleType, &acct.IsApproved); err != nil {
			return nil, fmt.Errorf("failed to scan collector: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// DeleteCollector removes a collector account. Roles cascade.
func (s *AuthService) DeleteCollector(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?
		AND EXISTS (SELECT 1 FROM user_roles WHERE user_id = ? AND role = ?)`,
		userID, userID, api.RoleCollector)
	if err != nil {
		return fmt.Errorf("failed to delete collector: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get status of db op: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IssueToken signs an access token for the user.
func (s *AuthService) IssueToken(userID string) (string, error) {
	return s.signToken(userID, "access", tokenTTL)
}

// IssueTempToken signs the short-lived token handed back with a
// two-factor challenge.
func (s *AuthService) IssueTempToken(userID string) (string, error) {
	return s.signToken(userID, "2fa", tempTokenTTL)
}

func (s *AuthService) signToken(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"type":    tokenType,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// ValidateToken checks an access token and returns the user id.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return "", errors.New("not an access token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user id in token")
	}
	return userID, nil
}

func (s *AuthService) userExists(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`, username, email).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *AuthService) getUserBy(ctx context.Context, column, value string) (*Account, error) {
	acct := &Account{}
	query := fmt.Sprintf(`SELECT id, username, email, password_hash, full_name, phone, vehicle_number, vehicle_type, is_approved, two_factor_enabled, two_factor_method
		FROM users WHERE %s = ?`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&acct.ID, &acct.Username, &acct.Email, &acct.PasswordHash, &acct.FullName, &acct.Phone,
		&acct.VehicleNumber, &acct.VehicleType, &acct.IsApproved, &acct.TwoFactorEnabled, &acct.TwoFactorMethod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		acct.Roles = append(acct.Roles, role)
	}
	return acct, rows.Err()
}
