package device

import (
	"net"
	"strconv"
	"time"
)

// DefaultPort is the bridge's TCP port on the headset.
const DefaultPort = 5555

// Target identifies the device to talk to: a network address, a USB serial,
// or neither (the single USB device attached).
type Target struct {
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	Serial string `json:"serial,omitempty" yaml:"serial,omitempty"`
}

// IsNetwork reports whether the target is reached over TCP.
func (t Target) IsNetwork() bool {
	return t.Host != ""
}

// Address returns host:port for network targets.
func (t Target) Address() string {
	port := t.Port
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) String() string {
	switch {
	case t.IsNetwork():
		return t.Address()
	case t.Serial != "":
		return "usb:" + t.Serial
	default:
		return "usb"
	}
}

// RetryPolicy controls USB device discovery.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetryPolicy polls three times, five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Interval: 5 * time.Second,
	}
}

// Info describes the connected headset. Fields that could not be read are empty.
type Info struct {
	Model      string `json:"model" yaml:"model"`
	OSVersion  string `json:"os_version" yaml:"os_version"`
	Resolution string `json:"resolution" yaml:"resolution"`
	Width      int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int    `json:"height,omitempty" yaml:"height,omitempty"`
}
