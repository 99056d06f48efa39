package common

import "errors"

// Общие ошибки для всех репозиториев
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrStaleState возвращается условным обновлением, когда ожидаемое
	// состояние строки уже изменилось (проигравший конкурентный переход).
	ErrStaleState = errors.New("stale entity state")
)
