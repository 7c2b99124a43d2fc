package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/Dan9191/infotelecom-auth/internal/repository"
	"github.com/Dan9191/infotelecom-auth/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence the service needs
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// EventSink receives registration events
type EventSink interface {
	UserRegistered(user models.User)
}

// RegisterInput carries the registration form fields
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Service handles business logic
type Service struct {
	repo   UserStore
	log    *logrus.Logger
	hasher PasswordHasher
	events EventSink
}

// NewService initializes a new service. events may be nil.
func NewService(repo UserStore, log *logrus.Logger, hasher PasswordHasher, events EventSink) *Service {
	if hasher == nil {
		hasher = PlainHasher{}
	}
	return &Service{repo: repo, log: log, hasher: hasher, events: events}
}

// Register validates the input, checks email uniqueness and stores a new user
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	var missing []string
	if blank(in.Name) {
		missing = append(missing, "name")
	}
	if blank(in.Email) {
		missing = append(missing, "email")
	}
	if blank(in.Phone) {
		missing = append(missing, "phone")
	}
	if blank(in.Password) {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		s.log.Warnf("Registration rejected, missing fields: %v", missing)
		return nil, &ValidationError{Message: msgAllRequired, MissingFields: missing}
	}

	if !utils.ValidEmail(in.Email) {
		s.log.Warnf("Registration rejected, bad email: %q", in.Email)
		return nil, &ValidationError{Message: msgBadEmail, Email: in.Email}
	}

	exists, err := s.repo.EmailExists(ctx, in.Email)
	if err != nil {
		s.log.Errorf("Email lookup failed for %s: %v", in.Email, err)
		return nil, &StorageError{Op: OpLookup, Err: err}
	}
	if exists {
		s.log.Warnf("Registration rejected, email taken: %s", in.Email)
		return nil, ErrEmailTaken
	}

	stored, err := s.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		s.log.Warnf("Registration rejected, password too long: %s", in.Email)
		return nil, &ValidationError{Message: msgPasswordTooLong}
	}
	if err != nil {
		return nil, &StorageError{Op: OpInsert, Err: err}
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Password: stored,
		Role:     models.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		s.log.Errorf("Failed to save user %s: %v", in.Email, err)
		return nil, &StorageError{Op: OpInsert, Err: err}
	}

	created, err := s.repo.FindUserByID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Errorf("User %s inserted with id %d but not found", in.Email, user.ID)
		return nil, ErrCreatedNotFound
	}
	if err != nil {
		s.log.Errorf("Failed to reload user %d: %v", user.ID, err)
		return nil, &StorageError{Op: OpLookup, Err: err}
	}

	s.log.Infof("User registered: %s (id %d)", created.Email, created.ID)
	if s.events != nil {
		s.events.UserRegistered(*created)
	}
	return created, nil
}

// Login checks the credentials against the stored user
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	var missing []string
	if blank(email) {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Message: msgAllRequired, MissingFields: missing}
	}
	if !utils.ValidEmail(email) {
		return nil, &ValidationError{Message: msgBadLoginMail, Email: email}
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warnf("Login failed, unknown email: %s", email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.log.Errorf("Login lookup failed for %s: %v", email, err)
		return nil, &StorageError{Op: OpLogin, Err: err}
	}

	if !s.hasher.Compare(user.Password, password) {
		s.log.Warnf("Login failed, wrong password: %s", email)
		return nil, ErrInvalidCredentials
	}

	s.log.Infof("User logged in: %s", user.Email)
	return user, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
