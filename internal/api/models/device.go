package models

import "github.com/dosepoint/dosepoint/internal/device"

// Device represents a registered supplement dispenser.
type Device struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	MACAddress          string     `json:"macAddress"`
	SerialNumber        string     `json:"serialNumber"`
	Location            *string    `json:"location,omitempty"`
	BatteryLevel        int        `json:"batteryLevel"`
	SupplementLevel     int        `json:"supplementLevel"`
	IsConnected         bool       `json:"isConnected"`
	FirmwareVersion     *string    `json:"firmwareVersion,omitempty"`
	TotalDosesDispensed int        `json:"totalDosesDispensed"`
	DosesRemaining      int        `json:"dosesRemaining"`
	LastSync            *Timestamp `json:"lastSync,omitempty"`
	IsActive            bool       `json:"isActive"`
	CreatedAt           Timestamp  `json:"createdAt"`
	UpdatedAt           Timestamp  `json:"updatedAt"`
}

// DeviceFromDomain converts a domain device to its API representation.
func DeviceFromDomain(d *device.Device) Device {
	return Device{
		ID:                  d.ID,
		Name:                d.Name,
		Type:                string(d.Type),
		MACAddress:          d.MACAddress,
		SerialNumber:        d.SerialNumber,
		Location:            d.Location,
		BatteryLevel:        d.BatteryLevel,
		SupplementLevel:     d.SupplementLevel,
		IsConnected:         d.IsConnected,
		FirmwareVersion:     d.FirmwareVersion,
		TotalDosesDispensed: d.TotalDosesDispensed,
		DosesRemaining:      d.DosesRemaining(),
		LastSync:            TimestampPtr(d.LastSync),
		IsActive:            d.IsActive,
		CreatedAt:           Timestamp(d.CreatedAt),
		UpdatedAt:           Timestamp(d.UpdatedAt),
	}
}

// DevicesFromDomain converts a slice of domain devices.
func DevicesFromDomain(devices []*device.Device) []Device {
	items := make([]Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, DeviceFromDomain(d))
	}
	return items
}

// DeviceRegisterRequest is the request body for registering a dispenser.
type DeviceRegisterRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Type            string  `json:"type" validate:"required,oneof=fish_oil vitamin_d krill_oil vegan"`
	MACAddress      string  `json:"macAddress" validate:"required"`
	SerialNumber    string  `json:"serialNumber" validate:"required"`
	Location        *string `json:"location,omitempty"`
	FirmwareVersion *string `json:"firmwareVersion,omitempty"`
}

// DeviceUpdateRequest is the request body for editing a dispenser.
type DeviceUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
}

// DeviceTelemetryRequest is the request body for a telemetry report.
type DeviceTelemetryRequest struct {
	BatteryLevel    *int    `json:"batteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	SupplementLevel *int    `json:"supplementLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsConnected     *bool   `json:"isConnected,omitempty"`
	FirmwareVersion *string `json:"firmwareVersion,omitempty"`
}

// PagedDevices represents a paginated list of devices.
type PagedDevices struct {
	Items []Device          `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// DeviceStats summarizes dispensing for a device.
type DeviceStats struct {
	DeviceID   string     `json:"deviceId"`
	TotalDoses int        `json:"totalDoses"`
	FirstDose  *Timestamp `json:"firstDose,omitempty"`
	LastDose   *Timestamp `json:"lastDose,omitempty"`
}
