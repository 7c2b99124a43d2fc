package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Dan9191/infotelecom-auth/internal/middleware"
	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/Dan9191/infotelecom-auth/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

const (
	msgMethodNotAllowed = "Метод не разрешен"
	msgNoData           = "Данные не получены"
	msgRegistered       = "Пользователь успешно зарегистрирован"
	msgLoggedIn         = "Вход выполнен успешно"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type errorResponse struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Email         string   `json:"email,omitempty"`
}

type registerResponse struct {
	Success bool         `json:"success"`
	UserID  int64        `json:"user_id"`
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

// Routes builds the router with CORS and request logging around it
func (h *Handler) Routes(corsOrigin string) http.Handler {
	r := mux.NewRouter()
	for _, path := range []string{"/register.php", "/register"} {
		r.HandleFunc(path, h.Register).Methods(http.MethodPost)
	}
	for _, path := range []string{"/login.php", "/login"} {
		r.HandleFunc(path, h.Login).Methods(http.MethodPost)
	}
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	return middleware.RequestLogger(h.log)(middleware.CORS(corsOrigin)(r))
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	data, received, err := readPayload(w, r)
	if err != nil {
		h.log.Warnf("Failed to read registration body: %v", err)
	}
	if !received {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoData})
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     data["name"],
		Email:    data["email"],
		Phone:    data["phone"],
		Password: data["password"],
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, registerResponse{
		Success: true,
		UserID:  user.ID,
		User:    user,
		Message: msgRegistered,
	})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	data, received, err := readPayload(w, r)
	if err != nil {
		h.log.Warnf("Failed to read login body: %v", err)
	}
	if !received {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoData})
		return
	}

	user, err := h.svc.Login(r.Context(), data["email"], data["password"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{Success: true, User: user, Message: msgLoggedIn})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	var serr *service.StorageError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:         verr.Message,
			MissingFields: verr.MissingFields,
			Email:         verr.Email,
		})
	case errors.Is(err, service.ErrEmailTaken):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrCreatedNotFound):
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	case errors.As(err, &serr):
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: serr.Error()})
	default:
		h.log.Errorf("Unexpected error: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Ошибка: " + err.Error()})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("Failed to marshal JSON response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readPayload accepts a JSON body and falls back to url-encoded form
// values when the body is not JSON. received is false when nothing usable
// arrived. Non-empty JSON that is not an object counts as received but
// carries no fields.
func readPayload(w http.ResponseWriter, r *http.Request) (map[string]string, bool, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil && !emptyValue(decoded) {
		data := map[string]string{}
		if obj, ok := decoded.(map[string]any); ok {
			for k, v := range obj {
				data[k] = scalar(v)
			}
		}
		return data, true, nil
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return nil, false, nil
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse form: %w", err)
	}
	data := make(map[string]string, len(form))
	for k := range form {
		data[k] = form.Get(k)
	}
	return data, len(data) > 0, nil
}

// emptyValue mirrors what a form handler treats as no data: null, false,
// zero, "", "0" and empty arrays or objects
func emptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == "" || t == "0"
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
