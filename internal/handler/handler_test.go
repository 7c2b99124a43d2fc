package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/Dan9191/infotelecom-auth/internal/repository"
	"github.com/Dan9191/infotelecom-auth/internal/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	users     map[string]*models.User
	nextID    int64
	insertErr error
	// lose drops rows right after insert
	lose bool
}

func (m *memStore) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := m.users[email]
	return ok, nil
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.nextID++
	u.ID = m.nextID
	u.RegisteredAt = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	if !m.lose {
		for _, u := range m.users {
			if u.ID == id {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func newServer(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := &memStore{users: map[string]*models.User{}, nextID: 99}
	svc := service.NewService(store, logger, service.PlainHasher{}, nil)
	return NewHandler(svc, logger).Routes("*"), store
}

func do(h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

const validBody = `{"name":"Иван","email":"ivan@mail.ru","phone":"+7 (999) 123-45-67","password":"secret1"}`

func TestRegisterSuccess(t *testing.T) {
	h, _ := newServer(t)
	rec, out := do(h, http.MethodPost, "/register.php", "application/json", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(100), out["user_id"])
	assert.Equal(t, msgRegistered, out["message"])

	user := out["user"].(map[string]any)
	assert.Equal(t, float64(100), user["id"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "2026-10-17T09:00:00Z", user["registered_at"])
	assert.NotContains(t, user, "password")
}

func TestRegisterAlias(t *testing.T) {
	h, _ := newServer(t)
	rec, _ := do(h, http.MethodPost, "/register", "application/json", validBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterFormEncoded(t *testing.T) {
	h, store := newServer(t)
	form := url.Values{
		"name":     {"Ольга"},
		"email":    {"olga@mail.ru"},
		"phone":    {"89991112233"},
		"password": {"secret1"},
	}
	rec, _ := do(h, http.MethodPost, "/register.php", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, store.users, "olga@mail.ru")
}

func TestRegisterNumericPhone(t *testing.T) {
	h, store := newServer(t)
	body := `{"name":"Иван","email":"ivan@mail.ru","phone":79991234567,"password":"secret1"}`
	rec, _ := do(h, http.MethodPost, "/register.php", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "79991234567", store.users["ivan@mail.ru"].Phone)
}

func TestRegisterNoData(t *testing.T) {
	h, _ := newServer(t)
	for _, body := range []string{"", "{}", "not json"} {
		rec, out := do(h, http.MethodPost, "/register.php", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msgNoData, out["error"], body)
		assert.Equal(t, false, out["success"], body)
	}
}

func TestRegisterNonObjectJSON(t *testing.T) {
	h, store := newServer(t)
	for _, body := range []string{`[{"name":"x"}]`, `["ivan@mail.ru"]`, `"ivan"`, `5`, `true`} {
		rec, out := do(h, http.MethodPost, "/register.php", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Все поля обязательны для заполнения", out["error"], body)
		assert.Equal(t, []any{"name", "email", "phone", "password"}, out["missing_fields"], body)
	}
	for _, body := range []string{`[]`, `null`, `false`, `0`, `"0"`} {
		_, out := do(h, http.MethodPost, "/register.php", "application/json", body)
		assert.Equal(t, msgNoData, out["error"], body)
	}
	assert.Empty(t, store.users)
}

func TestRegisterMissingFields(t *testing.T) {
	h, _ := newServer(t)
	rec, out := do(h, http.MethodPost, "/register.php", "application/json", `{"email":"ivan@mail.ru"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Все поля обязательны для заполнения", out["error"])
	assert.Equal(t, []any{"name", "phone", "password"}, out["missing_fields"])
}

func TestRegisterBadEmail(t *testing.T) {
	h, _ := newServer(t)
	body := `{"name":"Иван","email":"ivan.mail.ru","phone":"+7 (999) 123-45-67","password":"secret1"}`
	rec, out := do(h, http.MethodPost, "/register.php", "application/json", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Некорректный email адрес. Используйте формат: example@domain.com", out["error"])
	assert.Equal(t, "ivan.mail.ru", out["email"])
}

func TestRegisterDuplicate(t *testing.T) {
	h, _ := newServer(t)
	rec, _ := do(h, http.MethodPost, "/register.php", "application/json", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(h, http.MethodPost, "/register.php", "application/json", validBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Пользователь с таким email уже зарегистрирован", out["error"])
}

func TestRegisterDatabaseError(t *testing.T) {
	h, store := newServer(t)
	store.insertErr = errors.New("relation \"users\" does not exist")

	rec, out := do(h, http.MethodPost, "/register.php", "application/json", validBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(out["error"].(string), "Ошибка сохранения в БД: "))
}

func TestRegisterRowVanished(t *testing.T) {
	h, store := newServer(t)
	store.lose = true

	rec, out := do(h, http.MethodPost, "/register.php", "application/json", validBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Пользователь создан, но не найден в БД", out["error"])
}

func TestRegisterPasswordTooLongForBcrypt(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &memStore{users: map[string]*models.User{}}
	hasher, err := service.NewPasswordHasher("bcrypt")
	require.NoError(t, err)
	h := NewHandler(service.NewService(store, logger, hasher, nil), logger).Routes("*")

	body := `{"name":"Иван","email":"ivan@mail.ru","phone":"+7 (999) 123-45-67","password":"` + strings.Repeat("p", 73) + `"}`
	rec, out := do(h, http.MethodPost, "/register.php", "application/json", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Пароль слишком длинный: максимум 72 байта", out["error"])
	assert.Empty(t, store.users)
}

func TestWrongMethod(t *testing.T) {
	h, _ := newServer(t)
	for _, path := range []string{"/register.php", "/login.php"} {
		rec, out := do(h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		assert.Equal(t, "Метод не разрешен", out["error"], path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestPreflight(t *testing.T) {
	h, _ := newServer(t)
	rec, _ := do(h, http.MethodOptions, "/register.php", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestLogin(t *testing.T) {
	h, _ := newServer(t)
	rec, _ := do(h, http.MethodPost, "/register.php", "application/json", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(h, http.MethodPost, "/login.php", "application/json", `{"email":"ivan@mail.ru","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Иван", out["user"].(map[string]any)["name"])

	rec, out = do(h, http.MethodPost, "/login.php", "application/json", `{"email":"ivan@mail.ru","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Неверный email или пароль", out["error"])

	rec, _ = do(h, http.MethodPost, "/login", "application/json", `{"email":"ivan","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t)
	rec, out := do(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}
