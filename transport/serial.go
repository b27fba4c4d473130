package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens a serial port at baud 8N1 and returns a sink writing to
// it.
func OpenSerial(name string, baud int) (*StreamSink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewStreamSink(port), nil
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
