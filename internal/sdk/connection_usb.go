package sdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USBConnection represents a USB printer connection
type USBConnection struct {
	usb         *gousb.Context
	device      *gousb.Device
	iface       *gousb.Interface
	release     func()
	out         *gousb.OutEndpoint
	in          *gousb.InEndpoint // nil when the printer has no status channel
	readTimeout time.Duration
	mu          sync.Mutex
}

// ConnectUSB connects to a USB printer
// Returns error if USB support is not available (libusb not installed)
func ConnectUSB(vid, pid uint16, readTimeout time.Duration) (*USBConnection, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}

	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found: %04X:%04X", vid, pid)
	}

	// Try without SetAutoDetach first (some devices work without it)
	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.SetAutoDetach(true)
		iface, done, err = dev.DefaultInterface()
	}
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim USB interface: %w", err)
	}

	conn := &USBConnection{
		usb:         ctx,
		device:      dev,
		iface:       iface,
		release:     done,
		readTimeout: readTimeout,
	}

	for _, epDesc := range iface.Setting.Endpoints {
		switch epDesc.Direction {
		case gousb.EndpointDirectionOut:
			if conn.out == nil {
				if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
					conn.out = ep
				}
			}
		case gousb.EndpointDirectionIn:
			if conn.in == nil {
				if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
					conn.in = ep
				}
			}
		}
	}

	if conn.out == nil {
		conn.Close()
		return nil, fmt.Errorf("no OUT endpoint found for USB printer %04X:%04X", vid, pid)
	}

	return conn, nil
}

// Write sends data to the USB printer
func (c *USBConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.out.Write(data)
}

// Read reads a status reply from the USB printer
func (c *USBConnection) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.in == nil {
		return 0, fmt.Errorf("printer has no IN endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()

	return c.in.ReadContext(ctx, buf)
}

// Close closes the USB connection
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.release != nil {
		c.release()
		c.release = nil
	} else if c.iface != nil {
		c.iface.Close()
	}
	c.iface = nil

	var err error
	if c.device != nil {
		err = c.device.Close()
		c.device = nil
	}

	if c.usb != nil {
		c.usb.Close()
		c.usb = nil
	}

	return err
}
