package timetable

import (
	"fmt"
	"time"
)

// apiTimeLayout は上流APIが時刻表エントリで使用するタイムスタンプ形式。
const apiTimeLayout = "2006-01-02T15:04:05"

// apiDateLayout は上流APIのdateクエリパラメータの形式。
const apiDateLayout = "2006-01-02"

// NextWeekday は基準日以降（当日を含む）で指定曜日が次に現れる日付を返す。
// dayOfWeekは0=日曜日の規約（time.Weekdayと同一）。
func NextWeekday(from time.Time, dayOfWeek int) time.Time {
	diff := (dayOfWeek - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, diff)
}

// ParseAPITime は上流API形式のタイムスタンプをローカル時刻としてパースする。
func ParseAPITime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(apiTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timetable timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatAPITime は時刻を上流API形式のタイムスタンプ文字列にする。
func FormatAPITime(t time.Time) string {
	return t.Format(apiTimeLayout)
}

// FormatAPIDate は日付を上流APIのdateパラメータ形式にする。
func FormatAPIDate(t time.Time) string {
	return t.Format(apiDateLayout)
}

// ParseTimeOfDay は"HH:MM"または"HH:MM:SS"形式の時刻文字列をパースする。
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid time of day %q", s)
}

// CombineDateTime は日付と時分を組み合わせたローカル時刻を返す。
func CombineDateTime(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.Local)
}
