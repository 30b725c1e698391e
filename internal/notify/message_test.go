package notify

import (
	"strings"
	"testing"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
)

func reminderSub() *repository.SubscriptionWithUser {
	return &repository.SubscriptionWithUser{
		Subscription: model.Subscription{
			ID:                 "sub-1",
			OriginStation:      3600, // Tel Aviv - Savidor Center
			DestinationStation: 680,  // Jerusalem - Yitzhak Navon
			DepartureTime:      "08:30",
		},
		ChatID: 12345,
	}
}

func TestFormatStatusChange_Delayed(t *testing.T) {
	msg := FormatStatusChange(reminderSub(), model.TripStatus{
		Status:           model.StatusDelayed,
		DelayMinutes:     12,
		UpdatedDeparture: "2026-03-01T08:42:00",
	})

	for _, want := range []string{
		"🚨 Train Update",
		"Tel Aviv - Savidor Center",
		"Jerusalem - Yitzhak Navon",
		"Scheduled: 08:30",
		"Delayed by 12 minutes",
		"New departure: 08:42",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("メッセージに %q が含まれるべき:\n%s", want, msg)
		}
	}
}

func TestFormatStatusChange_OnTime(t *testing.T) {
	msg := FormatStatusChange(reminderSub(), model.TripStatus{
		Status: model.StatusOnTime,
	})

	if !strings.Contains(msg, "✅ Train Update") || !strings.Contains(msg, "Status: On time") {
		t.Errorf("定刻メッセージの形式が不正:\n%s", msg)
	}
	if strings.Contains(msg, "New departure") {
		t.Errorf("定刻メッセージに新出発時刻を含めるべきでない:\n%s", msg)
	}
}

func TestFormatStatusChange_SwitchNote(t *testing.T) {
	msg := FormatStatusChange(reminderSub(), model.TripStatus{
		Status:         model.StatusOnTime,
		SwitchStations: []string{"Lod", "Beer Sheva - North/University"},
	})

	if !strings.Contains(msg, "⚠️ Note: This journey requires changing trains at: Lod, Beer Sheva - North/University") {
		t.Errorf("乗り換え注記が含まれるべき:\n%s", msg)
	}
}

func TestFormatDepartureReminder(t *testing.T) {
	msg := FormatDepartureReminder(reminderSub(), model.TripStatus{
		Status: model.StatusOnTime,
	})

	for _, want := range []string{
		"🔔 Departure Reminder",
		"Scheduled departure: 08:30",
		"Status: On time",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("メッセージに %q が含まれるべき:\n%s", want, msg)
		}
	}
}

func TestFormatDepartureReminder_Delayed(t *testing.T) {
	msg := FormatDepartureReminder(reminderSub(), model.TripStatus{
		Status:           model.StatusDelayed,
		DelayMinutes:     8,
		UpdatedDeparture: "2026-03-01T08:38:00",
	})

	if !strings.Contains(msg, "Delayed by 8 minutes") || !strings.Contains(msg, "New departure: 08:38") {
		t.Errorf("遅延中のリマインダー形式が不正:\n%s", msg)
	}
}
