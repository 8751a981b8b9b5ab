package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — условное обновление не затронуло ни одной строки:
	// запись существует, но её состояние не подходит (например, schedule
	// уже захвачен другим вызовом trigger или захват перехвачен).
	ErrInvalidState = errors.New("invalid state")
)
