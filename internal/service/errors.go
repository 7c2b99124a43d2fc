package service

import "errors"

const (
	msgAllRequired  = "Все поля обязательны для заполнения"
	msgBadEmail     = "Некорректный email адрес. Используйте формат: example@domain.com"
	msgBadLoginMail = "Некорректный email адрес"
	msgEmailTaken   = "Пользователь с таким email уже зарегистрирован"
	msgBadLogin     = "Неверный email или пароль"

	msgPasswordTooLong = "Пароль слишком длинный: максимум 72 байта"
	msgCreatedNotFound = "Пользователь создан, но не найден в БД"
)

var (
	// ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New(msgEmailTaken)
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New(msgBadLogin)
	// ErrCreatedNotFound is returned when the inserted row cannot be read back
	ErrCreatedNotFound = errors.New(msgCreatedNotFound)
)

// ValidationError describes rejected input
type ValidationError struct {
	Message       string
	MissingFields []string
	Email         string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Storage operations reported by StorageError
const (
	OpInsert = "insert"
	OpLookup = "lookup"
	OpLogin  = "login"
)

// StorageError wraps a database failure with the stage it happened in
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	switch e.Op {
	case OpInsert:
		return "Ошибка сохранения в БД: " + e.Err.Error()
	case OpLogin:
		return "Ошибка входа: " + e.Err.Error()
	default:
		return "Ошибка регистрации: " + e.Err.Error()
	}
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
