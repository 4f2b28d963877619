package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mvalenta/meetly-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown so that a
// failed login takes the same time whether the user exists or not.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("credential-placeholder"), bcrypt.DefaultCost)

// RegisterInput carries the fields for self-service registration.
type RegisterInput struct {
	Username  string  `json:"username" validate:"required,max=50"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Email     string  `json:"email" validate:"required,email,max=100"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

// ProvisionUserInput is the admin-only variant that also selects a role.
type ProvisionUserInput struct {
	RegisterInput
	Role string `json:"role" validate:"required,oneof=User Admin"`
}

// UpdateUserInput carries the mutable profile fields. Username, role and
// credentials change through dedicated operations, not here.
type UpdateUserInput struct {
	Email     string  `json:"email" validate:"required,email,max=100"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(input RegisterInput) (models.User, error)
	ProvisionUser(input ProvisionUserInput) (models.User, error)
	AuthenticateUser(username, password string) (models.User, error)
	GetUserByID(id string) (models.User, error)
	ListUsers() ([]models.User, error)
	UpdateUser(id string, input UpdateUserInput) (models.User, error)
	DeleteUser(id string) error
}

// UserService provides business logic for user management.
type UserService struct {
	db       *sql.DB
	validate *validator.Validate
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, validate *validator.Validate) *UserService {
	return &UserService{db: db, validate: validate}
}

// Register creates a new non-admin user, hashing their password. The store's
// UNIQUE constraint on username is the source of truth for taken names.
func (s *UserService) Register(input RegisterInput) (models.User, error) {
	return s.createUser(input, models.RoleUser)
}

// ProvisionUser creates a user with an explicit role. Only reachable through
// admin-gated routes.
func (s *UserService) ProvisionUser(input ProvisionUserInput) (models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.User{}, fromValidator(err)
	}
	return s.createUser(input.RegisterInput, input.Role)
}

func (s *UserService) createUser(input RegisterInput, role string) (models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.User{}, fromValidator(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		IsAdmin:      role == models.RoleAdmin,
		PasswordHash: string(hashedPassword),
	}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username, email, password_hash, first_name, last_name, role, is_admin) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.IsAdmin)
	if err != nil {
		if translated := translateConstraintErr(err); errors.Is(translated, ErrConflict) {
			return models.User{}, fmt.Errorf("username %q is already taken: %w", user.Username, ErrConflict)
		}
		return models.User{}, err
	}

	return s.GetUserByID(user.ID)
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, username, email, first_name, last_name, role, is_admin, created_at FROM users WHERE id = ?", id))
}

// getUserByUsername retrieves a user including the password hash.
func (s *UserService) getUserByUsername(username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash, first_name, last_name, role, is_admin, created_at FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// ListUsers retrieves all non-admin users. Admin accounts are never exposed
// through general listing.
func (s *UserService) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		"SELECT id, username, email, first_name, last_name, role, is_admin, created_at FROM users WHERE is_admin = 0 ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser updates a user's profile information.
func (s *UserService) UpdateUser(id string, input UpdateUserInput) (models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.User{}, fromValidator(err)
	}

	res, err := s.db.Exec("UPDATE users SET email = ?, first_name = ?, last_name = ? WHERE id = ?",
		input.Email, input.FirstName, input.LastName, id)
	if err != nil {
		return models.User{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if affected == 0 {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return s.GetUserByID(id)
}

// DeleteUser removes a user. Deletion is rejected while participation rows
// still reference the user; meetings the user created are removed with them.
func (s *UserService) DeleteUser(id string) error {
	if _, err := s.GetUserByID(id); err != nil {
		return err
	}

	var participations int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM meeting_participants WHERE user_id = ?", id).Scan(&participations); err != nil {
		return err
	}
	if participations > 0 {
		return fmt.Errorf("user still participates in %d meeting(s): %w", participations, ErrConflict)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Remove participations of meetings this user created before the
	// creator cascade fires; other rosters stay untouched.
	if _, err = tx.Exec("DELETE FROM meeting_participants WHERE meeting_id IN (SELECT id FROM meetings WHERE created_by_user_id = ?)", id); err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		// A RESTRICT violation means a concurrent add slipped in.
		if translated := translateConstraintErr(err); errors.Is(translated, ErrNotFound) {
			return fmt.Errorf("user is still referenced by a meeting roster: %w", ErrConflict)
		}
		return err
	}
	return tx.Commit()
}

// AuthenticateUser verifies a user's credentials. Unknown usernames and wrong
// passwords are indistinguishable in both the error and the time taken.
func (s *UserService) AuthenticateUser(username, password string) (models.User, error) {
	user, err := s.getUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return models.User{}, ErrAuthentication
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrAuthentication
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// scanUser reads the non-sensitive user columns from a row.
func (s *UserService) scanUser(scanner interface{ Scan(...interface{}) error }) (models.User, error) {
	var user models.User
	err := scanner.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.Role, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
