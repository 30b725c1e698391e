package notify

import (
	"fmt"
	"strings"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/station"
	"github.com/hitoshi/railwatch/internal/timetable"
)

// FormatStatusChange はステータス変化通知のメッセージ本文を組み立てる。
func FormatStatusChange(sub *repository.SubscriptionWithUser, status model.TripStatus) string {
	origin := station.Name(sub.OriginStation)
	destination := station.Name(sub.DestinationStation)

	var b strings.Builder
	if status.Status == model.StatusDelayed {
		fmt.Fprintf(&b, "🚨 Train Update: %s → %s\n", origin, destination)
		fmt.Fprintf(&b, "Scheduled: %s\n", sub.DepartureTime)
		fmt.Fprintf(&b, "Status: Delayed by %d minutes\n", status.DelayMinutes)
		fmt.Fprintf(&b, "New departure: %s", clockTime(status.UpdatedDeparture))
	} else {
		fmt.Fprintf(&b, "✅ Train Update: %s → %s\n", origin, destination)
		fmt.Fprintf(&b, "Scheduled: %s\n", sub.DepartureTime)
		b.WriteString("Status: On time")
	}

	appendSwitchNote(&b, status.SwitchStations)
	return b.String()
}

// FormatDepartureReminder は出発前リマインダーのメッセージ本文を組み立てる。
func FormatDepartureReminder(sub *repository.SubscriptionWithUser, status model.TripStatus) string {
	origin := station.Name(sub.OriginStation)
	destination := station.Name(sub.DestinationStation)

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Departure Reminder: %s → %s\n", origin, destination)
	fmt.Fprintf(&b, "Scheduled departure: %s\n", sub.DepartureTime)

	if status.Status == model.StatusDelayed {
		fmt.Fprintf(&b, "Status: Delayed by %d minutes\n", status.DelayMinutes)
		fmt.Fprintf(&b, "New departure: %s", clockTime(status.UpdatedDeparture))
	} else {
		b.WriteString("Status: On time")
	}

	appendSwitchNote(&b, status.SwitchStations)
	return b.String()
}

// appendSwitchNote は乗り換えが必要な旅程の注記を追加する。
func appendSwitchNote(b *strings.Builder, switches []string) {
	if len(switches) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n⚠️ Note: This journey requires changing trains at: %s", strings.Join(switches, ", "))
}

// clockTime はAPI形式のタイムスタンプを"HH:MM"表記にする。
// パースできない場合は元の文字列をそのまま返す。
func clockTime(apiTime string) string {
	t, err := timetable.ParseAPITime(apiTime)
	if err != nil {
		return apiTime
	}
	return t.Format("15:04")
}
