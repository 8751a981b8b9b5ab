package lease

import (
	"context"
	"errors"
)

// ErrNotHeld — Unlock вызван без удержания lease.
var ErrNotHeld = errors.New("lease not held")

// Locker — lease лидера trigger'а.
//
// TryLock не блокирует: возвращает true, если lease получен или
// продлён этим процессом. Повторный TryLock лидера подтверждает lease.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Local — lease для единственного экземпляра scheduler: всегда получен.
type Local struct{}

// TryLock всегда возвращает true.
func (Local) TryLock(context.Context) (bool, error) { return true, nil }

// Unlock ничего не делает.
func (Local) Unlock(context.Context) error { return nil }
