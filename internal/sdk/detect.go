package sdk

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/gousb"
	"github.com/tarm/serial"
)

// Device is a printer found by DetectDevices. Transport is ready to Dial.
type Device struct {
	Description string    `json:"description"`
	Transport   Transport `json:"transport"`
}

// DetectDevices scans USB for printer-class devices and probes serial ports.
// USB failures (no libusb) are reported but do not stop the serial scan.
func DetectDevices() ([]Device, error) {
	var devices []Device

	usbDevices, usbErr := detectUSB()
	devices = append(devices, usbDevices...)
	devices = append(devices, detectSerial()...)

	if usbErr != nil {
		return devices, usbErr
	}
	return devices, nil
}

func detectUSB() ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []Device

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterClass(desc)
	})
	// OpenDevices may return devices alongside a partial-failure error
	for _, dev := range devs {
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		desc := dev.Desc
		description := fmt.Sprintf("USB: %04X:%04X", desc.Vendor, desc.Product)
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%04X:%04X)",
				manufacturer, product, desc.Vendor, desc.Product)
		}

		found = append(found, Device{
			Description: description,
			Transport: Transport{
				Type: "usb",
				VID:  uint16(desc.Vendor),
				PID:  uint16(desc.Product),
			},
		})
		dev.Close()
	}

	if err != nil {
		return found, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	return found, nil
}

func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func detectSerial() []Device {
	var found []Device

	for _, portPath := range scanSerialPorts() {
		// Try to open the port briefly to verify it exists
		port, err := serial.OpenPort(&serial.Config{Name: portPath, Baud: 9600})
		if err != nil {
			continue
		}
		port.Close()

		found = append(found, Device{
			Description: fmt.Sprintf("Serial: %s", filepath.Base(portPath)),
			Transport: Transport{
				Type:   "serial",
				Device: portPath,
				Baud:   9600,
			},
		})
	}

	return found
}

func scanSerialPorts() []string {
	var ports []string

	switch runtime.GOOS {
	case "darwin":
		skipPatterns := []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}
		cuPorts, _ := filepath.Glob("/dev/cu.*")
		for _, port := range cuPorts {
			skip := false
			for _, pattern := range skipPatterns {
				if strings.Contains(port, pattern) {
					skip = true
					break
				}
			}
			if !skip {
				ports = append(ports, port)
			}
		}
	case "linux":
		for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
			matches, _ := filepath.Glob(pattern)
			ports = append(ports, matches...)
		}
	case "windows":
		for i := 1; i <= 32; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
	}

	return ports
}
