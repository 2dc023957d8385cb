package core

import "testing"

func TestApplySetting_Casting(t *testing.T) {
	s := DefaultBillingSettings()

	applySetting(&s, keyDueDaysAfterPeriodStart, "15")
	if s.DueDaysAfterPeriodStart != 15 {
		t.Errorf("expected due days 15, got %d", s.DueDaysAfterPeriodStart)
	}

	// Garbage and non-positive values keep the previous value.
	applySetting(&s, keyDueDaysAfterPeriodStart, "soon")
	applySetting(&s, keyDueDaysAfterPeriodStart, "-3")
	if s.DueDaysAfterPeriodStart != 15 {
		t.Errorf("expected due days to stay 15, got %d", s.DueDaysAfterPeriodStart)
	}

	applySetting(&s, keyAutoGenerationMode, "system_only")
	if s.AutoGenerationMode != GenerationSystemOnly {
		t.Errorf("expected system_only, got %s", s.AutoGenerationMode)
	}
	applySetting(&s, keyAutoGenerationMode, "everything")
	if s.AutoGenerationMode != GenerationSystemOnly {
		t.Errorf("expected unknown mode to be ignored, got %s", s.AutoGenerationMode)
	}

	applySetting(&s, keyAllowEditSent, "1")
	if !s.CanEditSent {
		t.Error("expected '1' to enable edit-sent")
	}
	applySetting(&s, keyAllowEditSent, "off")
	if s.CanEditSent {
		t.Error("expected 'off' to disable edit-sent")
	}
	applySetting(&s, keyAllowEditSent, "maybe")
	if s.CanEditSent {
		t.Error("expected unrecognized boolean to keep previous value")
	}

	applySetting(&s, keyDefaultStatus, "pending")
	if s.DefaultStatus != StatusPending {
		t.Errorf("expected pending, got %s", s.DefaultStatus)
	}
	// Paid is never a legal creation status, it clamps to draft.
	applySetting(&s, keyDefaultStatus, "paid")
	if s.DefaultStatus != StatusDraft {
		t.Errorf("expected paid to clamp to draft, got %s", s.DefaultStatus)
	}
	// Unknown strings are ignored entirely.
	applySetting(&s, keyDefaultStatus, "pending")
	applySetting(&s, keyDefaultStatus, "archived")
	if s.DefaultStatus != StatusPending {
		t.Errorf("expected unknown status to be ignored, got %s", s.DefaultStatus)
	}
}

func TestApplySetting_UnknownKeyIgnored(t *testing.T) {
	s := DefaultBillingSettings()
	before := s
	applySetting(&s, "invoice_unrelated_key", "true")
	if s != before {
		t.Error("expected unknown key to leave settings untouched")
	}
}

func TestAutoGenerationMode_SystemAllowed(t *testing.T) {
	tests := []struct {
		mode AutoGenerationMode
		want bool
	}{
		{GenerationDisabled, false},
		{GenerationSystemOnly, true},
		{GenerationUserOnly, false},
		{GenerationMixed, true},
	}
	for _, tt := range tests {
		if got := tt.mode.SystemAllowed(); got != tt.want {
			t.Errorf("%s.SystemAllowed() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestDeliveryChannels(t *testing.T) {
	s := DefaultBillingSettings()
	got := s.DeliveryChannels()
	want := []string{"email", "notification"}
	if len(got) != len(want) {
		t.Fatalf("expected channels %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected channels %v, got %v", want, got)
		}
	}

	s.SendEmail, s.SendSMS, s.SendNotification = false, false, false
	if got := s.DeliveryChannels(); got != nil {
		t.Errorf("expected no channels, got %v", got)
	}
}
