package device

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/apperr"
	"github.com/dosepoint/dosepoint/internal/notification"
)

type recordingAlerter struct {
	requests []notification.TriggerRequest
}

func (a *recordingAlerter) Trigger(_ context.Context, req notification.TriggerRequest) (*notification.Notification, error) {
	a.requests = append(a.requests, req)
	return &notification.Notification{ID: "n-test"}, nil
}

func newTestService() (*Service, *recordingAlerter, activity.Repository) {
	alerter := &recordingAlerter{}
	activityRepo := activity.NewInMemoryRepository()
	svc := NewService(NewInMemoryRepository(), activityRepo, alerter, zerolog.Nop())
	return svc, alerter, activityRepo
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(s string) *string { return &s }

func register(t *testing.T, svc *Service, ownerID string) *Device {
	t.Helper()
	d, err := svc.Register(context.Background(), ownerID, RegisterInput{
		Name:         "Kitchen dispenser",
		Type:         TypeFishOil,
		MACAddress:   "aa:bb:cc:dd:ee:01",
		SerialNumber: "ZIN12345678",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return d
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
	}{
		{
			name:  "empty name",
			input: RegisterInput{Name: "  ", Type: TypeFishOil, MACAddress: "AA:BB:CC:DD:EE:01", SerialNumber: "ZIN12345678"},
		},
		{
			name:  "unknown type",
			input: RegisterInput{Name: "Dev", Type: Type("gummies"), MACAddress: "AA:BB:CC:DD:EE:01", SerialNumber: "ZIN12345678"},
		},
		{
			name:  "malformed mac",
			input: RegisterInput{Name: "Dev", Type: TypeFishOil, MACAddress: "AA:BB:CC:DD:EE", SerialNumber: "ZIN12345678"},
		},
		{
			name:  "short serial",
			input: RegisterInput{Name: "Dev", Type: TypeFishOil, MACAddress: "AA:BB:CC:DD:EE:01", SerialNumber: "SHORT"},
		},
	}

	svc, _, _ := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), "owner-1", tt.input)
			if !apperr.IsInvalid(err) {
				t.Errorf("Register() error = %v, want invalid", err)
			}
		})
	}
}

func TestRegisterNormalizesMAC(t *testing.T) {
	svc, _, _ := newTestService()

	d, err := svc.Register(context.Background(), "owner-1", RegisterInput{
		Name:         "Dev",
		Type:         TypeVitaminD,
		MACAddress:   "aa-bb-cc-dd-ee-02",
		SerialNumber: "zin98765432",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if d.MACAddress != "AA:BB:CC:DD:EE:02" {
		t.Errorf("MACAddress = %q, want AA:BB:CC:DD:EE:02", d.MACAddress)
	}
	if d.SerialNumber != "ZIN98765432" {
		t.Errorf("SerialNumber = %q, want ZIN98765432", d.SerialNumber)
	}
	if d.BatteryLevel != 100 || d.SupplementLevel != 100 {
		t.Errorf("levels = %d/%d, want 100/100", d.BatteryLevel, d.SupplementLevel)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	register(t, svc, "owner-1")

	_, err := svc.Register(context.Background(), "owner-2", RegisterInput{
		Name:         "Other",
		Type:         TypeVegan,
		MACAddress:   "AA:BB:CC:DD:EE:01",
		SerialNumber: "OTHER123456",
	})
	if !apperr.IsConflict(err) {
		t.Errorf("Register() duplicate mac error = %v, want conflict", err)
	}
}

func TestGetOtherOwnerNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	d := register(t, svc, "owner-1")

	_, err := svc.Get(context.Background(), "owner-2", d.ID)
	if !apperr.IsNotFound(err) {
		t.Errorf("Get() across owners error = %v, want not found", err)
	}
}

func TestReportTelemetryValidation(t *testing.T) {
	svc, _, _ := newTestService()
	d := register(t, svc, "owner-1")

	_, err := svc.ReportTelemetry(context.Background(), "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(101)})
	if !apperr.IsInvalid(err) {
		t.Errorf("ReportTelemetry(101) error = %v, want invalid", err)
	}
	_, err = svc.ReportTelemetry(context.Background(), "owner-1", d.ID, TelemetryInput{SupplementLevel: intPtr(-1)})
	if !apperr.IsInvalid(err) {
		t.Errorf("ReportTelemetry(-1) error = %v, want invalid", err)
	}
}

func TestReportTelemetryEdgeTriggeredAlerts(t *testing.T) {
	svc, alerter, _ := newTestService()
	d := register(t, svc, "owner-1")
	ctx := context.Background()

	// Crossing down through the threshold fires one alert.
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(18)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	if len(alerter.requests) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerter.requests))
	}
	if alerter.requests[0].Type != notification.TypeLowBattery {
		t.Errorf("alert type = %q, want %q", alerter.requests[0].Type, notification.TypeLowBattery)
	}

	// A further drop while already low stays quiet.
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(10)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	if len(alerter.requests) != 1 {
		t.Errorf("alerts after second low report = %d, want 1", len(alerter.requests))
	}

	// Recovering above and crossing down again fires a new alert.
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(90)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(20)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	if len(alerter.requests) != 2 {
		t.Errorf("alerts after recovery and re-crossing = %d, want 2", len(alerter.requests))
	}
}

func TestReportTelemetrySupplementAlert(t *testing.T) {
	svc, alerter, activityRepo := newTestService()
	d := register(t, svc, "owner-1")
	ctx := context.Background()

	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{SupplementLevel: intPtr(15)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}

	if len(alerter.requests) != 1 || alerter.requests[0].Type != notification.TypeLowSupplement {
		t.Fatalf("alerts = %+v, want one low_supplement", alerter.requests)
	}

	count, err := activityRepo.CountByAction(ctx, d.ID, activity.ActionSupplementLow)
	if err != nil {
		t.Fatalf("CountByAction() error = %v", err)
	}
	if count != 1 {
		t.Errorf("supplement_low entries = %d, want 1", count)
	}
}

func TestReportTelemetryConnectivityTransitions(t *testing.T) {
	svc, _, activityRepo := newTestService()
	d := register(t, svc, "owner-1")
	ctx := context.Background()

	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{IsConnected: boolPtr(true)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	// Re-reporting the same state records nothing.
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{IsConnected: boolPtr(true)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{IsConnected: boolPtr(false)}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}

	connected, err := activityRepo.CountByAction(ctx, d.ID, activity.ActionDeviceConnected)
	if err != nil {
		t.Fatalf("CountByAction() error = %v", err)
	}
	disconnected, err := activityRepo.CountByAction(ctx, d.ID, activity.ActionDeviceDisconnected)
	if err != nil {
		t.Fatalf("CountByAction() error = %v", err)
	}
	if connected != 1 || disconnected != 1 {
		t.Errorf("connectivity entries = %d connected, %d disconnected, want 1 and 1", connected, disconnected)
	}

	got, err := svc.Get(ctx, "owner-1", d.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastSync == nil {
		t.Error("LastSync not set by telemetry report")
	}
}

func TestReportTelemetryFirmwareUpdate(t *testing.T) {
	svc, _, activityRepo := newTestService()
	d := register(t, svc, "owner-1")
	ctx := context.Background()

	if _, err := svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{FirmwareVersion: strPtr("2.1.0")}); err != nil {
		t.Fatalf("ReportTelemetry() error = %v", err)
	}
	count, err := activityRepo.CountByAction(ctx, d.ID, activity.ActionFirmwareUpdated)
	if err != nil {
		t.Fatalf("CountByAction() error = %v", err)
	}
	if count != 1 {
		t.Errorf("firmware_updated entries = %d, want 1", count)
	}
}

func TestDeactivate(t *testing.T) {
	svc, _, _ := newTestService()
	d := register(t, svc, "owner-1")
	ctx := context.Background()

	if err := svc.Deactivate(ctx, "owner-1", d.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	// Deactivated devices leave the default listing.
	result, err := svc.List(ctx, "owner-1", ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("active devices = %d, want 0", len(result.Items))
	}

	// Telemetry from a deactivated device is refused.
	_, err = svc.ReportTelemetry(ctx, "owner-1", d.ID, TelemetryInput{BatteryLevel: intPtr(50)})
	if !apperr.IsConflict(err) {
		t.Errorf("ReportTelemetry() on deactivated device error = %v, want conflict", err)
	}
}
