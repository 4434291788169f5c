package sdk

import (
	"fmt"
	"runtime"
	"time"
)

// Connection is a byte pipe to the printer, whatever the transport
type Connection interface {
	Write(data []byte) (int, error)
	// Read returns the printer's reply, bounded by the transport's read timeout
	Read(buf []byte) (int, error)
	Close() error
}

// Transport describes how to reach a printer
type Transport struct {
	Type        string // usb, serial, network
	VID         uint16
	PID         uint16
	Device      string
	Baud        int
	Host        string
	Port        int
	ReadTimeout time.Duration
}

func (t Transport) String() string {
	switch t.Type {
	case "usb":
		return fmt.Sprintf("usb:%04X:%04X", t.VID, t.PID)
	case "serial":
		return fmt.Sprintf("serial:%s", t.Device)
	case "network":
		return fmt.Sprintf("network:%s:%d", t.Host, t.Port)
	default:
		return t.Type
	}
}

// Dial opens a connection over the configured transport
func (t Transport) Dial() (Connection, error) {
	timeout := t.ReadTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	switch t.Type {
	case "usb":
		conn, err := ConnectUSB(t.VID, t.PID, timeout)
		if err == nil {
			return conn, nil
		}
		// macOS often exposes USB thermal printers as serial devices only
		if runtime.GOOS == "darwin" {
			for _, port := range scanSerialPorts() {
				serialConn, serialErr := ConnectSerial(port, t.Baud, timeout)
				if serialErr == nil {
					return serialConn, nil
				}
			}
		}
		return nil, err
	case "serial":
		return ConnectSerial(t.Device, t.Baud, timeout)
	case "network":
		return ConnectNetwork(t.Host, t.Port, timeout)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", t.Type)
	}
}
