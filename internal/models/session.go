package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceAndroid DeviceType = "ANDROID"
	DeviceIOS     DeviceType = "IOS"
	DeviceWeb     DeviceType = "WEB"
	DeviceDesktop DeviceType = "DESKTOP"

	// Device type is optional
	DeviceUnknown DeviceType = ""
)

var knownDevices = []DeviceType{DeviceAndroid, DeviceIOS, DeviceWeb, DeviceDesktop}

// ParseDeviceType validates device type at the boundary. Empty value is allowed and means unknown
func ParseDeviceType(value string) (DeviceType, error) {
	if value == "" {
		return DeviceUnknown, nil
	}

	d := DeviceType(strings.ToUpper(value))
	if !slices.Contains(knownDevices, d) {
		return DeviceUnknown, fmt.Errorf("unknown device type %q", value)
	}
	return d, nil
}

// Where the session was opened from. Every field is optional
type Device struct {
	Info      string
	Type      DeviceType
	IPAddress string
}

// Server side record of an issued refresh token
type Session struct {
	ID           int64
	UserID       int64
	RefreshToken string
	DeviceInfo   string
	DeviceType   DeviceType
	IPAddress    string
	CreatedAt    time.Time
	LastUsedAt   time.Time
	ExpiresAt    time.Time
	UpdatedAt    time.Time
	Revoked      bool
}

// Session is active if it is not revoked and not expired at the moment
func (s Session) IsActive(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
