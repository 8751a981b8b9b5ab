package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// DefaultPostingHour — локальный час публикации по умолчанию (19:00).
const DefaultPostingHour = 19

// offsetProbe — насколько далеко от wall-clock времени смотрим смещения
// зоны до и после возможного перехода.
const offsetProbe = 30 * time.Hour

// Planner распределяет моменты публикаций по окну кампании.
//
// Один слот в день в PostingHour по локальному времени. Если постов больше,
// чем дней, дни получают по несколько слотов, равномерно разнесённых
// между PostingHour и локальной полуночью.
type Planner struct {
	// PostingHour — локальный час публикации, 0..23.
	// Значение вне диапазона заменяется на DefaultPostingHour.
	PostingHour int
}

// Distribute возвращает count моментов публикации в UTC, по возрастанию.
//
// Окно [start, end] включает обе границы и интерпретируется в timezone.
// Функция детерминирована: одинаковые аргументы дают одинаковый результат.
func (p Planner) Distribute(count int, start, end civil.Date, timezone string) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if !start.IsValid() || !end.IsValid() || end.Before(start) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, start, end)
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}

	hour := p.hour()
	days := end.DaysSince(start) + 1
	window := time.Duration(24-hour) * time.Hour

	out := make([]time.Time, 0, count)
	for day, k := range slotsPerDay(count, days) {
		date := start.AddDays(day)
		for i := 0; i < k; i++ {
			offset := time.Duration(i) * window / time.Duration(k)
			wall := civil.DateTime{
				Date: date,
				Time: civil.Time{Hour: hour},
			}
			out = append(out, Localize(addWall(wall, offset), loc).UTC())
		}
	}

	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out, nil
}

func (p Planner) hour() int {
	if p.PostingHour < 0 || p.PostingHour > 23 {
		return DefaultPostingHour
	}
	return p.PostingHour
}

// slotsPerDay возвращает число слотов для каждого дня окна.
// count <= days: по одному слоту в первые count дней.
// count > days: base = count/days, первые count%days дней получают base+1.
func slotsPerDay(count, days int) []int {
	slots := make([]int, 0, days)
	if count <= days {
		for i := 0; i < count; i++ {
			slots = append(slots, 1)
		}
		return slots
	}

	base, extra := count/days, count%days
	for i := 0; i < days; i++ {
		k := base
		if i < extra {
			k++
		}
		slots = append(slots, k)
	}
	return slots
}

// addWall сдвигает wall-clock время на d без учёта часового пояса.
func addWall(dt civil.DateTime, d time.Duration) civil.DateTime {
	return civil.DateTimeOf(dt.In(time.UTC).Add(d))
}

// Localize переводит wall-clock время в момент в зоне loc.
//
// Несуществующее время (переход на летнее) сдвигается вперёд на длину
// разрыва. Неоднозначное время (переход на зимнее) даёт более ранний момент.
func Localize(dt civil.DateTime, loc *time.Location) time.Time {
	naive := dt.In(time.UTC)

	_, offBefore := naive.Add(-offsetProbe).In(loc).Zone()
	_, offAfter := naive.Add(offsetProbe).In(loc).Zone()

	var found []time.Time
	for _, off := range []int{offBefore, offAfter} {
		t := naive.Add(-time.Duration(off) * time.Second)
		if civil.DateTimeOf(t.In(loc)) == dt && !slices.ContainsFunc(found, t.Equal) {
			found = append(found, t)
		}
	}

	switch len(found) {
	case 0:
		// Разрыв: берём смещение до перехода.
		return naive.Add(-time.Duration(offBefore) * time.Second).In(loc)
	case 1:
		return found[0].In(loc)
	default:
		return slices.MinFunc(found, func(a, b time.Time) int { return a.Compare(b) }).In(loc)
	}
}

// wallClockLayouts — форматы timestamp без смещения.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseWallClock разбирает timestamp и возвращает его wall-clock цифры.
//
// Принимаются RFC 3339 (со смещением или Z) и наивные форматы
// "2006-01-02T15:04[:05]" / "2006-01-02 15:04[:05]". Смещение, если есть,
// отбрасывается: время интерпретируется в именованной зоне вызывающего.
func ParseWallClock(s string) (civil.DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.DateTime{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return civil.DateTimeOf(t), nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateTimeOf(t), nil
		}
	}
	return civil.DateTime{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// loadLocation загружает IANA-зону. Пустая строка — ошибка, а не UTC.
func loadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}
