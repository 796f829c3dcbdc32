// Package period переводит длительность тарифного плана в дату окончания подписки.
package period

import "time"

// Длительности тарифных планов.
const (
	SevenDays    = "7days"
	OneMonth     = "1month"
	ThreeMonths  = "3months"
	SixMonths    = "6months"
	TwelveMonths = "12months"
)

var months = map[string]int{
	OneMonth:     1,
	ThreeMonths:  3,
	SixMonths:    6,
	TwelveMonths: 12,
}

// Valid сообщает, входит ли длительность в фиксированную таблицу.
func Valid(duration string) bool {
	if duration == SevenDays {
		return true
	}
	_, ok := months[duration]
	return ok
}

// End возвращает дату окончания подписки, начатой в start.
// Неизвестная длительность считается за один месяц.
func End(start time.Time, duration string) time.Time {
	if duration == SevenDays {
		return start.AddDate(0, 0, 7)
	}
	n, ok := months[duration]
	if !ok {
		n = 1
	}
	return AddMonths(start, n)
}

// AddMonths прибавляет календарные месяцы. Переполнение дня переносится
// на следующий месяц: 31 января + 1 месяц = 3 марта (2 марта в високосный год).
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}
