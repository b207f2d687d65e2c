package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для хранилища снимков.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStore хранит снимки прогресса с оптимистичной блокировкой.
type ProfileStore interface {
	// Create сохраняет новый снимок с Version = 1.
	// Возвращает ErrProfileAlreadyExists, если профиль уже существует.
	Create(ctx context.Context, snap *ProfileSnapshot) error

	// Get возвращает снимок пользователя.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Get(ctx context.Context, userID string) (*ProfileSnapshot, error)

	// Save сохраняет снимок, если версия в хранилище равна snap.Version
	// (compare-and-swap), и увеличивает версию на 1.
	// Возвращает ErrProfileVersionStale при конфликте и ErrProfileNotFound,
	// если профиля нет. При успехе snap.Version обновляется.
	Save(ctx context.Context, snap *ProfileSnapshot) error

	// List возвращает ID пользователей с пагинацией.
	List(ctx context.Context, opts ListOptions) ([]string, error)

	// Delete удаляет профиль.
	Delete(ctx context.Context, userID string) error
}

// ProfileCache - кэш снимков для чтения. Источник истины - ProfileStore.
type ProfileCache interface {
	// Get возвращает снимок из кэша; ok = false при промахе.
	Get(ctx context.Context, userID string) (snap *ProfileSnapshot, ok bool, err error)

	// Set кладёт снимок в кэш.
	Set(ctx context.Context, snap *ProfileSnapshot) error

	// Invalidate удаляет снимок из кэша.
	Invalidate(ctx context.Context, userID string) error
}

// ListOptions - параметры пагинации.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 100, Offset: 0}
}

// ProcessedActivity - запись о зафиксированной активности (для аудита).
type ProcessedActivity struct {
	UserID      string
	ActivityID  string
	Kind        ActivityKind
	XPAwarded   XP
	ProcessedAt time.Time
}

// ActivityHistory отдаёт журнал зафиксированных активностей, новые первыми.
type ActivityHistory interface {
	ListProcessed(ctx context.Context, userID string, limit int) ([]ProcessedActivity, error)
}

// ProcessedActivities строит записи аудита из журнала снимка, новые первыми.
func ProcessedActivities(snap *ProfileSnapshot, limit int) []ProcessedActivity {
	if snap == nil {
		return nil
	}
	n := len(snap.ActivityLog)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ProcessedActivity, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		e := snap.ActivityLog[i]
		out = append(out, ProcessedActivity{
			UserID:      snap.UserID,
			ActivityID:  e.ID,
			Kind:        e.Kind,
			XPAwarded:   e.XPAwarded,
			ProcessedAt: e.CompletedAt,
		})
	}
	return out
}
