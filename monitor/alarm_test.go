package monitor_test

import (
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/pulsemon/monitor"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		bpm    int
		active bool
	}{
		{bpm: 0, active: true},
		{bpm: 59, active: true},
		{bpm: 60, active: false},
		{bpm: 61, active: false},
		{bpm: 90, active: false},
		{bpm: 129, active: false},
		{bpm: 130, active: false},
		{bpm: 131, active: true},
		{bpm: 220, active: true},
	}

	for _, tt := range tests {
		state := monitor.Evaluate(tt.bpm)
		if state.Active() != tt.active {
			t.Errorf("Evaluate(%d): expected active=%v, got %v", tt.bpm, tt.active, state.Active())
		}
		if state.HighDetected != state.LowDetected {
			t.Errorf("Evaluate(%d): flags disagree: %+v", tt.bpm, state)
		}
	}
}

func TestAlarmUpdate(t *testing.T) {
	t.Run("Drives actuator on every update", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		actuator := monitor.NewMockActuator(ctrl)
		gomock.InOrder(
			actuator.EXPECT().Set(true).Return(nil),
			actuator.EXPECT().Set(false).Return(nil),
			actuator.EXPECT().Set(true).Return(nil),
			actuator.EXPECT().Set(false).Return(nil),
		)

		alarm := monitor.NewAlarm(actuator)
		// Oscillating across the bound toggles every sample.
		for _, bpm := range []int{131, 130, 131, 130} {
			if _, err := alarm.Update(bpm); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if alarm.State().Active() {
			t.Error("expected alarm to be cleared")
		}
	})

	t.Run("Returns actuator failure with state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledErr := errors.New("gpio write failed")
		actuator := monitor.NewMockActuator(ctrl)
		actuator.EXPECT().Set(true).Return(ledErr)

		alarm := monitor.NewAlarm(actuator)
		state, err := alarm.Update(40)
		if !errors.Is(err, ledErr) {
			t.Errorf("expected actuator error, got %v", err)
		}
		if !state.Active() || !alarm.State().Active() {
			t.Error("state must be recorded even when the actuator fails")
		}
	})
}
