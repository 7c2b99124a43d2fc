package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/localstore"
	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/Dan9191/infotelecom-auth/internal/utils"
	"github.com/sirupsen/logrus"
)

// Pages the controller redirects to
const (
	PageIndex    = "index.html"
	PageLogin    = "login.html"
	PageRegister = "register.html"
	PageAccount  = "account.html"
	PageAdmin    = "admin.html"
)

const (
	msgAllRequired     = "Все поля обязательны для заполнения"
	msgBadEmail        = "Введите корректный email адрес"
	msgBadPhone        = "Введите корректный номер телефона"
	msgShortPassword   = "Пароль должен содержать минимум 6 символов"
	msgPasswordsDiffer = "Пароли не совпадают"
	msgNoAgreement     = "Необходимо согласие с условиями использования"
	msgEmailTaken      = "Пользователь с таким email уже зарегистрирован"
	msgValidation      = "Ошибка валидации данных"
	msgServerError     = "Ошибка сервера. Попробуйте позже."
	msgUnknown         = "Неизвестная ошибка"
	msgAlreadyLoggedIn = "Вы уже авторизованы. Пожалуйста, выйдите из текущего аккаунта."
	msgBadCredentials  = "Неверный email или пароль. Авторизоваться могут только пользователи из базы данных."
)

// Source tells where a successful result came from
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Remote is the server side of the forms
type Remote interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterReply, error)
	Login(ctx context.Context, req LoginRequest) (*LoginReply, error)
}

// RegisterForm holds the raw registration form fields
type RegisterForm struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
	Agree           bool
}

// LoginForm holds the raw login form fields
type LoginForm struct {
	Email    string
	Password string
}

// Result is what the page shows next: an inline error or a redirect
type Result struct {
	Redirect string
	Error    string
	User     *models.StoredUser
	Source   Source
}

func failed(msg string) Result {
	return Result{Error: msg}
}

// Controller drives the registration and login forms
type Controller struct {
	remote Remote
	store  *localstore.Storage
	log    *logrus.Logger
	now    func() time.Time
}

// NewController seeds the default admin into local storage and returns
// a controller ready to handle submissions
func NewController(ctx context.Context, remote Remote, store *localstore.Storage, log *logrus.Logger) (*Controller, error) {
	c := &Controller{remote: remote, store: store, log: log, now: time.Now}
	added, err := store.SeedAdmin(ctx, c.now())
	if err != nil {
		return nil, err
	}
	if added {
		log.Info("Default admin seeded into local storage")
	}
	return c, nil
}

// PhoneInput formats the phone field as it is typed
func (c *Controller) PhoneInput(value string) string {
	return utils.FormatPhone(value)
}

// Register validates the form and registers the user remotely, falling
// back to local storage when the server cannot be reached. The returned
// error is reserved for local storage failures; anything the user should
// see is in Result.Error.
func (c *Controller) Register(ctx context.Context, form RegisterForm) (Result, error) {
	name := strings.TrimSpace(form.Name)
	email := strings.TrimSpace(form.Email)
	phone := strings.TrimSpace(form.Phone)

	switch {
	case name == "" || email == "" || phone == "" || form.Password == "" || form.PasswordConfirm == "":
		return failed(msgAllRequired), nil
	case !utils.ValidEmail(email):
		return failed(msgBadEmail), nil
	case !utils.ValidPhone(phone):
		return failed(msgBadPhone), nil
	case !utils.ValidPassword(form.Password):
		return failed(msgShortPassword), nil
	case form.Password != form.PasswordConfirm:
		return failed(msgPasswordsDiffer), nil
	case !form.Agree:
		return failed(msgNoAgreement), nil
	}

	existing, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return failed(msgEmailTaken), nil
	}

	reply, err := c.remote.Register(ctx, RegisterRequest{
		Name:     name,
		Email:    email,
		Phone:    phone,
		Password: form.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		return c.registerFailed(ctx, err, name, email, phone, form.Password)
	}
	if !reply.Success || reply.User == nil {
		if reply.Error != "" {
			return failed(reply.Error), nil
		}
		return failed(msgUnknown), nil
	}

	user := fromWire(reply.User)
	user.ID = reply.UserID.String()
	if err := c.store.AddUser(ctx, user); err != nil {
		return Result{}, err
	}
	if err := c.store.SetCurrentUser(ctx, &user); err != nil {
		return Result{}, err
	}
	c.log.Infof("Registered %s on the server, id %s", user.Email, user.ID)
	return Result{Redirect: PageAccount, User: &user, Source: SourceRemote}, nil
}

func (c *Controller) registerFailed(ctx context.Context, err error, name, email, phone, password string) (Result, error) {
	var netErr *NetworkError
	var httpErr *HTTPError
	var jsonErr *InvalidJSONError

	switch {
	case errors.As(err, &netErr):
		return c.registerLocally(ctx, netErr, name, email, phone, password)
	case errors.As(err, &httpErr) && httpErr.Status == http.StatusBadRequest:
		if httpErr.Message != "" {
			return failed(httpErr.Message), nil
		}
		return failed(msgValidation), nil
	case errors.As(err, &httpErr) && httpErr.Status == http.StatusInternalServerError:
		return failed(msgServerError), nil
	case errors.As(err, &jsonErr):
		return failed(jsonErr.Error()), nil
	case err.Error() != "":
		return failed(err.Error()), nil
	default:
		return failed(msgUnknown), nil
	}
}

func (c *Controller) registerLocally(ctx context.Context, cause error, name, email, phone, password string) (Result, error) {
	c.log.Warnf("Server unreachable, registering %s locally: %v", email, cause)

	existing, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return failed(msgEmailTaken), nil
	}

	now := c.now()
	user := models.StoredUser{
		ID:           unixMilliID(now),
		Name:         name,
		Email:        email,
		Phone:        phone,
		Password:     password,
		Role:         models.RoleUser,
		RegisteredAt: now.UTC().Format(models.StoredTimeLayout),
		Services:     []string{},
	}
	if err := c.store.AddUser(ctx, user); err != nil {
		return Result{}, err
	}
	if err := c.store.SetCurrentUser(ctx, &user); err != nil {
		return Result{}, err
	}
	return Result{Redirect: PageAccount, User: &user, Source: SourceLocal}, nil
}

// Login authenticates against the server first and on any failure checks
// the credentials against the local cache
func (c *Controller) Login(ctx context.Context, form LoginForm) (Result, error) {
	current, err := c.store.GetCurrentUser(ctx)
	if err != nil {
		return Result{}, err
	}
	if current != nil {
		return failed(msgAlreadyLoggedIn), nil
	}

	email := strings.TrimSpace(form.Email)
	switch {
	case email == "" || form.Password == "":
		return failed(msgAllRequired), nil
	case !utils.ValidEmail(email):
		return failed(msgBadEmail), nil
	}

	reply, err := c.remote.Login(ctx, LoginRequest{Email: email, Password: form.Password})
	if err == nil && reply.Success && reply.User != nil {
		user := fromWire(reply.User)
		if err := c.store.SetCurrentUser(ctx, &user); err != nil {
			return Result{}, err
		}
		c.log.Infof("Logged in %s on the server", user.Email)
		return Result{Redirect: accountPage(&user), User: &user, Source: SourceRemote}, nil
	}
	if err == nil {
		err = errors.New(reply.Error)
	}
	c.log.Warnf("Server login failed for %s, checking local cache: %v", email, err)

	users, err := c.store.GetUsers(ctx)
	if err != nil {
		return Result{}, err
	}
	for i := range users {
		u := &users[i]
		if u.Email == email && u.Password == form.Password {
			if err := c.store.SetCurrentUser(ctx, u); err != nil {
				return Result{}, err
			}
			return Result{Redirect: accountPage(u), User: u, Source: SourceLocal}, nil
		}
	}
	return failed(msgBadCredentials), nil
}

// Logout forgets the current user
func (c *Controller) Logout(ctx context.Context) (Result, error) {
	if err := c.store.SetCurrentUser(ctx, nil); err != nil {
		return Result{}, err
	}
	return Result{Redirect: PageIndex}, nil
}

// CurrentUser returns the logged-in user or nil
func (c *Controller) CurrentUser(ctx context.Context) (*models.StoredUser, error) {
	return c.store.GetCurrentUser(ctx)
}

// Guard returns the page to redirect to when page is not accessible to
// the current user, or "" when it is
func (c *Controller) Guard(ctx context.Context, page string) (string, error) {
	current, err := c.store.GetCurrentUser(ctx)
	if err != nil {
		return "", err
	}

	switch page {
	case PageAccount:
		if current == nil {
			return PageLogin, nil
		}
		if current.IsAdmin() {
			return PageAdmin, nil
		}
	case PageAdmin:
		if current == nil || !current.IsAdmin() {
			return PageLogin, nil
		}
	case PageLogin, PageRegister:
		if current != nil {
			return accountPage(current), nil
		}
	}
	return "", nil
}

func accountPage(u *models.StoredUser) string {
	if u.IsAdmin() {
		return PageAdmin
	}
	return PageAccount
}

func fromWire(w *WireUser) models.StoredUser {
	return models.StoredUser{
		ID:           w.ID.String(),
		Name:         w.Name,
		Email:        w.Email,
		Phone:        w.Phone,
		Role:         w.Role,
		RegisteredAt: w.RegisteredAt,
		Services:     []string{},
	}
}
