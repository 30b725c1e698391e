package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTrainNotFound(t *testing.T) {
	err := &TrainNotFoundError{Departure: "2026-03-01T08:30:00"}
	if !IsTrainNotFound(err) {
		t.Error("IsTrainNotFound は TrainNotFoundError に対して true を返すべき")
	}

	wrapped := fmt.Errorf("evaluate: %w", err)
	if !IsTrainNotFound(wrapped) {
		t.Error("IsTrainNotFound はラップされたエラーも検出すべき")
	}

	if IsTrainNotFound(errors.New("boom")) {
		t.Error("IsTrainNotFound は無関係のエラーに対して false を返すべき")
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamError("fetch_timetable", cause)

	if !errors.Is(err, cause) {
		t.Error("UpstreamError は原因エラーをUnwrapできるべき")
	}
	if err.Error() == "" {
		t.Error("Error() は空であってはならない")
	}
}

func TestDeliveryError_Unwrap(t *testing.T) {
	cause := errors.New("telegram: 502")
	err := &DeliveryError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("DeliveryError は原因エラーをUnwrapできるべき")
	}
}
