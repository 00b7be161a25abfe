package device

import (
	"errors"
	"testing"
)

func TestValidateDevice(t *testing.T) {
	valid := func() *Device {
		return &Device{
			ID:   "d1",
			Name: "Hall Dimmer",
			Slug: "hall-dimmer",
			Kind: KindLightingDimmer,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{"valid", func(_ *Device) {}, nil},
		{"empty name", func(d *Device) { d.Name = "" }, ErrInvalidName},
		{"empty slug", func(d *Device) { d.Slug = "" }, ErrInvalidSlug},
		{"bad slug", func(d *Device) { d.Slug = "Hall Dimmer!" }, ErrInvalidSlug},
		{"unknown kind", func(d *Device) { d.Kind = "toaster" }, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := ValidateDevice(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDevice() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAction(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		action  string
		params  map[string]any
		wantErr bool
	}{
		{"dimmer on", KindLightingDimmer, ActionOn, nil, false},
		{"dimmer set_level", KindLightingDimmer, ActionSetLevel, map[string]any{"level": 75.0}, false},
		{"dimmer set_level int", KindLightingDimmer, ActionSetLevel, map[string]any{"level": 75}, false},
		{"dimmer set_level missing", KindLightingDimmer, ActionSetLevel, nil, true},
		{"dimmer set_level out of range", KindLightingDimmer, ActionSetLevel, map[string]any{"level": 180.0}, true},
		{"ballast set_level unsupported", KindLightingBallast, ActionSetLevel, map[string]any{"level": 50.0}, true},
		{"hvac setpoint", KindHVACUnit, ActionSetSetpoint, map[string]any{"setpoint": 21.5}, false},
		{"hvac setpoint not numeric", KindHVACUnit, ActionSetSetpoint, map[string]any{"setpoint": "warm"}, true},
		{"hvac mode", KindHVACUnit, ActionSetMode, map[string]any{"mode": "cool"}, false},
		{"hvac mode missing", KindHVACUnit, ActionSetMode, map[string]any{}, true},
		{"valve open", KindIrrigationValve, ActionOpen, nil, false},
		{"valve on unsupported", KindIrrigationValve, ActionOn, nil, true},
		{"sensor read", KindSensor, ActionRead, nil, false},
		{"sensor on unsupported", KindSensor, ActionOn, nil, true},
		{"unknown kind", Kind("toaster"), ActionOn, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAction(tt.kind, tt.action, tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("error %v should wrap ErrInvalidAction", err)
			}
		})
	}
}

func TestEveryKindAcceptsStopAndRevert(t *testing.T) {
	// The emergency stop coordinator issues a fixed "stop" action to any
	// resolved device, and duration expiry issues "revert"; neither may
	// ever fail kind validation.
	for _, kind := range AllKinds() {
		if !kind.Accepts(ActionStop) {
			t.Errorf("kind %q does not accept stop", kind)
		}
		if !kind.Accepts(ActionRevert) {
			t.Errorf("kind %q does not accept revert", kind)
		}
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hall Dimmer", "hall-dimmer"},
		{"Pump_Room 2", "pump-room-2"},
		{"  --Weird--Name--  ", "weird-name"},
		{"ALLCAPS", "allcaps"},
	}

	for _, tt := range tests {
		if got := GenerateSlug(tt.input); got != tt.want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
