package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoGenerationMode controls which paths may create contract invoices for an
// ownership.
type AutoGenerationMode string

const (
	GenerationDisabled   AutoGenerationMode = "disabled"
	GenerationSystemOnly AutoGenerationMode = "system_only"
	GenerationUserOnly   AutoGenerationMode = "user_only"
	GenerationMixed      AutoGenerationMode = "mixed"
)

// SystemAllowed reports whether the scheduler may generate invoices in this mode.
func (m AutoGenerationMode) SystemAllowed() bool {
	return m == GenerationSystemOnly || m == GenerationMixed
}

// BillingSettings is the per-ownership configuration consumed by the billing
// engine. It is loaded once per ownership and passed by value into the
// calculators and edit rules so tests can supply deterministic settings.
type BillingSettings struct {
	DueDaysAfterPeriodStart   int
	AutoGenerationMode        AutoGenerationMode
	GenerationDaysBeforeDue   int
	PreventOverlappingPeriods bool
	AllowManualWhenAuto       bool
	CanEditDraft              bool
	CanEditSent               bool
	RequireApprovalAfterEdit  bool
	AutoResendAfterEdit       bool
	DefaultStatus             InvoiceStatus
	SendEmail                 bool
	SendSMS                   bool
	SendNotification          bool
}

// DefaultBillingSettings mirrors the system-wide defaults seeded into
// system_settings.
func DefaultBillingSettings() BillingSettings {
	return BillingSettings{
		DueDaysAfterPeriodStart:   10,
		AutoGenerationMode:        GenerationDisabled,
		GenerationDaysBeforeDue:   5,
		PreventOverlappingPeriods: true,
		AllowManualWhenAuto:       true,
		CanEditDraft:              true,
		CanEditSent:               false,
		RequireApprovalAfterEdit:  true,
		AutoResendAfterEdit:       false,
		DefaultStatus:             StatusDraft,
		SendEmail:                 true,
		SendSMS:                   false,
		SendNotification:          true,
	}
}

// DeliveryChannels lists the channels the ownership has enabled for invoice
// delivery, in a stable order.
func (s BillingSettings) DeliveryChannels() []string {
	var channels []string
	if s.SendEmail {
		channels = append(channels, "email")
	}
	if s.SendSMS {
		channels = append(channels, "sms")
	}
	if s.SendNotification {
		channels = append(channels, "notification")
	}
	return channels
}

// Setting keys as stored in system_settings.
const (
	keyDueDaysAfterPeriodStart = "invoice_due_days_after_period_start"
	keyAutoGenerationMode      = "invoice_auto_generation_mode"
	keyGenerationDaysBeforeDue = "invoice_generation_days_before_due"
	keyPreventOverlapping      = "invoice_prevent_overlapping_periods"
	keyAllowManualWhenAuto     = "invoice_allow_manual_when_auto"
	keyAllowEditDraft          = "invoice_allow_edit_draft"
	keyAllowEditSent           = "invoice_allow_edit_sent"
	keyRequireApproval         = "invoice_require_approval_after_edit"
	keyAutoResend              = "invoice_auto_resend_after_edit"
	keyDefaultStatus           = "invoice_default_status"
	keySendEmail               = "invoice_send_email"
	keySendSMS                 = "invoice_send_sms"
	keySendNotification        = "invoice_send_notification"
)

// SettingsService reads system_settings with ownership-specific values taking
// precedence over system-wide defaults (ownership_id IS NULL).
type SettingsService interface {
	Value(ctx context.Context, key string, ownershipID int) (string, bool, error)
	BillingSettings(ctx context.Context, ownershipID int) (BillingSettings, error)
}

type settingsService struct {
	pool *pgxpool.Pool
}

func NewSettingsService(pool *pgxpool.Pool) SettingsService {
	return &settingsService{pool: pool}
}

// Value returns the raw setting value for key, preferring the ownership row
// over the system default. The second return is false when neither exists.
func (s *settingsService) Value(ctx context.Context, key string, ownershipID int) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM system_settings
		WHERE key = $1 AND (ownership_id = $2 OR ownership_id IS NULL)
		ORDER BY ownership_id NULLS LAST
		LIMIT 1
	`, key, ownershipID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// BillingSettings loads every billing knob for an ownership in one query,
// falling back to the compiled-in defaults for missing keys.
func (s *settingsService) BillingSettings(ctx context.Context, ownershipID int) (BillingSettings, error) {
	out := DefaultBillingSettings()

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (key) key, value
		FROM system_settings
		WHERE (ownership_id = $1 OR ownership_id IS NULL)
		  AND key LIKE 'invoice_%'
		ORDER BY key, ownership_id NULLS LAST
	`, ownershipID)
	if err != nil {
		return out, fmt.Errorf("failed to query billing settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("failed to scan setting: %w", err)
		}
		applySetting(&out, key, value)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("error iterating settings: %w", err)
	}
	return out, nil
}

func applySetting(s *BillingSettings, key, value string) {
	switch key {
	case keyDueDaysAfterPeriodStart:
		if n, ok := settingInt(value); ok && n > 0 {
			s.DueDaysAfterPeriodStart = n
		}
	case keyAutoGenerationMode:
		switch AutoGenerationMode(value) {
		case GenerationDisabled, GenerationSystemOnly, GenerationUserOnly, GenerationMixed:
			s.AutoGenerationMode = AutoGenerationMode(value)
		}
	case keyGenerationDaysBeforeDue:
		if n, ok := settingInt(value); ok && n >= 0 {
			s.GenerationDaysBeforeDue = n
		}
	case keyPreventOverlapping:
		s.PreventOverlappingPeriods = settingBool(value, s.PreventOverlappingPeriods)
	case keyAllowManualWhenAuto:
		s.AllowManualWhenAuto = settingBool(value, s.AllowManualWhenAuto)
	case keyAllowEditDraft:
		s.CanEditDraft = settingBool(value, s.CanEditDraft)
	case keyAllowEditSent:
		s.CanEditSent = settingBool(value, s.CanEditSent)
	case keyRequireApproval:
		s.RequireApprovalAfterEdit = settingBool(value, s.RequireApprovalAfterEdit)
	case keyAutoResend:
		s.AutoResendAfterEdit = settingBool(value, s.AutoResendAfterEdit)
	case keyDefaultStatus:
		if st, err := ParseInvoiceStatus(value); err == nil {
			// Only draft/pending/sent are legal creation statuses; anything
			// else in settings falls back to draft rather than leaking through.
			s.DefaultStatus = ClampInitialStatus(st)
		}
	case keySendEmail:
		s.SendEmail = settingBool(value, s.SendEmail)
	case keySendSMS:
		s.SendSMS = settingBool(value, s.SendSMS)
	case keySendNotification:
		s.SendNotification = settingBool(value, s.SendNotification)
	}
}

func settingInt(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return n, true
}

func settingBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

// StaticSettings is a SettingsService that always returns the same values.
// Used by tests and by callers that already resolved the settings.
type StaticSettings struct {
	Settings BillingSettings
}

func (s StaticSettings) Value(ctx context.Context, key string, ownershipID int) (string, bool, error) {
	return "", false, nil
}

func (s StaticSettings) BillingSettings(ctx context.Context, ownershipID int) (BillingSettings, error) {
	return s.Settings, nil
}
