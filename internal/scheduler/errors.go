package scheduler

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки ниже оборачивают одну из них,
// проверка — через errors.Is.
var (
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput — некорректные входные данные.
	ErrInvalidInput = errors.New("invalid input")
)

// Ошибки планировщика.
var (
	// ErrCampaignNotFound — кампания не найдена.
	ErrCampaignNotFound = fmt.Errorf("campaign %w", ErrNotFound)

	// ErrBrandNotFound — бренд кампании не найден.
	ErrBrandNotFound = fmt.Errorf("brand %w", ErrNotFound)

	// ErrPostNotFound — пост не найден.
	ErrPostNotFound = fmt.Errorf("post %w", ErrNotFound)

	// ErrScheduleNotFound — у поста нет ни одного schedule.
	ErrScheduleNotFound = fmt.Errorf("schedule %w", ErrNotFound)

	// ErrNoPosts — у кампании нет постов (для платформы).
	ErrNoPosts = fmt.Errorf("campaign posts %w", ErrNotFound)

	// ErrInvalidRange — дата окончания раньше даты начала.
	ErrInvalidRange = fmt.Errorf("%w: end date before start date", ErrInvalidInput)

	// ErrInvalidTimezone — timezone не является IANA-идентификатором.
	ErrInvalidTimezone = fmt.Errorf("%w: unknown timezone", ErrInvalidInput)

	// ErrInvalidCount — количество слотов должно быть положительным.
	ErrInvalidCount = fmt.Errorf("%w: count must be positive", ErrInvalidInput)

	// ErrInvalidTimestamp — timestamp не распознан.
	ErrInvalidTimestamp = fmt.Errorf("%w: malformed timestamp", ErrInvalidInput)

	// ErrInvalidPlatform — неизвестная платформа.
	ErrInvalidPlatform = fmt.Errorf("%w: unknown platform", ErrInvalidInput)
)

// Тексты ошибок, которые записываются в schedule.
const (
	errMsgPostNotFound   = "post not found"
	errMsgPublishTimeout = "publish timeout"
	errMsgClaimExpired   = "claim expired"
)
