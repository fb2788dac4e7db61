package main

import (
	"errors"
	"fmt"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/nexstar"
	"github.com/seeing-things/point/transport"
)

func listPorts() error {
	ports, err := transport.Ports()

	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	for _, port := range ports {
		fmt.Println(port)
	}

	return nil
}

func status(m *mount) error {
	if m.gemini != nil {
		return geminiStatus(m)
	}

	return nexstarStatus(m)
}

func nexstarStatus(m *mount) error {
	major, minor, err := m.nexstar.GetVersion()

	if err != nil {
		return err
	}

	model, err := m.nexstar.GetModel()

	if err != nil {
		return err
	}

	aligned, err := m.nexstar.AlignmentComplete()

	if err != nil {
		return err
	}

	ra, dec, err := m.nexstar.GetRaDec(nexstar.Precise)

	if err != nil {
		return err
	}

	az, alt, err := m.nexstar.GetAzAlt(nexstar.Precise)

	if err != nil {
		return err
	}

	mode, err := m.nexstar.GetTrackingMode()

	if err != nil {
		return err
	}

	fmt.Printf("Firmware:  %d.%d (model %d)\n", major, minor, model)
	fmt.Printf("Aligned:   %t\n", aligned)
	fmt.Printf("RA/Dec:    %.6f %.6f deg\n", ra, dec)
	fmt.Printf("Az/Alt:    %.6f %.6f deg\n", az, alt)
	fmt.Printf("Tracking:  %d\n", mode)

	return auxStatus(m)
}

// auxStatus prints the firmware versions of the AUX devices. Devices that
// are not fitted do not answer.
func auxStatus(m *mount) error {
	devices := []struct {
		name string
		dev  nexstar.Device
	}{
		{"Azm/RA", nexstar.DeviceAzmRA},
		{"Alt/Dec", nexstar.DeviceAltDec},
		{"GPS", nexstar.DeviceGPS},
		{"RTC", nexstar.DeviceRTC},
	}

	for _, d := range devices {
		major, minor, err := m.nexstar.GetDeviceVersion(d.dev)

		if errors.Is(err, point.ErrTimeout) {
			fmt.Printf("%-10s absent\n", d.name+":")
			continue
		}

		if err != nil {
			return err
		}

		fmt.Printf("%-10s %d.%d\n", d.name+":", major, minor)
	}

	return nil
}

func geminiStatus(m *mount) error {
	state, err := m.gemini.StartupCheck()

	if err != nil {
		return err
	}

	precision, err := m.gemini.GetPrecision()

	if err != nil {
		return err
	}

	ra, err := m.gemini.GetRA()

	if err != nil {
		return err
	}

	dec, err := m.gemini.GetDec()

	if err != nil {
		return err
	}

	alt, err := m.gemini.GetAltitude()

	if err != nil {
		return err
	}

	az, err := m.gemini.GetAzimuth()

	if err != nil {
		return err
	}

	side, err := m.gemini.GetMeridianSide()

	if err != nil {
		return err
	}

	fmt.Printf("Startup:   %s\n", state)
	fmt.Printf("Precision: %s\n", precision)
	fmt.Printf("RA/Dec:    %.6f h %.6f deg\n", ra, dec)
	fmt.Printf("Az/Alt:    %.6f %.6f deg\n", az, alt)
	fmt.Printf("Side:      %s\n", side)

	return nil
}
