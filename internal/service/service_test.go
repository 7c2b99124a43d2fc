package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/Dan9191/infotelecom-auth/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	nextID    int64
	lookupErr error
	insertErr error
	reloadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*models.User{}, nextID: 1}
}

func (f *fakeStore) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	_, ok := f.users[email]
	return ok, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	user.ID = f.nextID
	user.RegisteredAt = time.Now().UTC()
	f.nextID++
	stored := *user
	f.users[user.Email] = &stored
	return nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reloadErr != nil {
		return nil, f.reloadErr
	}
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type recordingSink struct {
	users []models.User
}

func (r *recordingSink) UserRegistered(user models.User) {
	r.users = append(r.users, user)
}

func validInput() RegisterInput {
	return RegisterInput{
		Name:     "Иван Петров",
		Email:    "ivan@mail.ru",
		Phone:    "+7 (999) 123-45-67",
		Password: "secret1",
	}
}

func newTestService(store UserStore, hasher PasswordHasher, sink EventSink) (*Service, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewService(store, logger, hasher, sink), hook
}

func TestRegisterCreatesUser(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	svc, hook := newTestService(store, nil, sink)

	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "secret1", store.users["ivan@mail.ru"].Password)

	require.Len(t, sink.users, 1)
	assert.Equal(t, "ivan@mail.ru", sink.users[0].Email)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestRegisterMissingFields(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), nil, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "ivan@mail.ru", Password: "  "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgAllRequired, verr.Message)
	assert.Equal(t, []string{"name", "phone", "password"}, verr.MissingFields)
}

func TestRegisterBadEmail(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, nil, nil)

	in := validInput()
	in.Email = "ivan@mail"
	_, err := svc.Register(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgBadEmail, verr.Message)
	assert.Equal(t, "ivan@mail", verr.Email)
	assert.Empty(t, store.users)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, nil, nil)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUniqueViolationRace(t *testing.T) {
	store := newFakeStore()
	store.insertErr = repository.ErrDuplicateEmail
	svc, _ := newTestService(store, nil, nil)

	_, err := svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterStorageFailures(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	svc, _ := newTestService(store, nil, nil)

	_, err := svc.Register(context.Background(), validInput())
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpInsert, serr.Op)
	assert.Equal(t, "Ошибка сохранения в БД: disk full", err.Error())

	store.lookupErr = errors.New("timeout")
	_, err = svc.Register(context.Background(), validInput())
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpLookup, serr.Op)
	assert.Equal(t, "Ошибка регистрации: timeout", err.Error())
}

func TestRegisterReloadsCreatedRow(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	svc, _ := newTestService(store, nil, sink)

	store.reloadErr = repository.ErrNotFound
	_, err := svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrCreatedNotFound)
	assert.Equal(t, "Пользователь создан, но не найден в БД", err.Error())
	assert.Empty(t, sink.users)

	store = newFakeStore()
	store.reloadErr = errors.New("connection reset")
	svc, _ = newTestService(store, nil, sink)
	_, err = svc.Register(context.Background(), validInput())
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpLookup, serr.Op)
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, nil, nil)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	user, err := svc.Login(context.Background(), "ivan@mail.ru", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Иван Петров", user.Name)

	_, err = svc.Login(context.Background(), "ivan@mail.ru", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@mail.ru", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), nil, nil)

	_, err := svc.Login(context.Background(), "", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email", "password"}, verr.MissingFields)

	_, err = svc.Login(context.Background(), "not-an-email", "secret1")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgBadLoginMail, verr.Message)
}

func TestLoginStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = errors.New("connection refused")
	svc, _ := newTestService(store, nil, nil)

	_, err := svc.Login(context.Background(), "ivan@mail.ru", "secret1")
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpLogin, serr.Op)
}

func TestBcryptStorage(t *testing.T) {
	hasher, err := NewPasswordHasher("bcrypt")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "short", password: "secret1"},
		{name: "exactly 72 bytes", password: strings.Repeat("a", 72)},
		{name: "73 bytes", password: strings.Repeat("a", 73), wantErr: msgPasswordTooLong},
		{name: "cyrillic over 72 bytes", password: strings.Repeat("ж", 37), wantErr: msgPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc, _ := newTestService(store, hasher, nil)
			in := validInput()
			in.Password = tt.password

			_, err := svc.Register(context.Background(), in)
			if tt.wantErr != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantErr, verr.Message)
				assert.Empty(t, store.users)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, store.users["ivan@mail.ru"].Password)

			_, err = svc.Login(context.Background(), "ivan@mail.ru", tt.password)
			require.NoError(t, err)
			_, err = svc.Login(context.Background(), "ivan@mail.ru", "x"+tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestNewPasswordHasherUnknown(t *testing.T) {
	_, err := NewPasswordHasher("sha1")
	require.Error(t, err)
}
