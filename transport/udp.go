package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/landyrev/simple-nmea-simulator/simulator"
)

// UDPSink sends every sentence as its own datagram, the framing chart
// plotters expect on NMEA over UDP.
type UDPSink struct {
	conn net.PacketConn
	dest net.Addr
}

// NewUDPSink prepares a sink sending to dest, e.g. "192.168.1.255:10110".
func NewUDPSink(dest string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP destination %s: %w", dest, err)
	}

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}

	return &UDPSink{conn: conn, dest: addr}, nil
}

// Send writes one datagram per sentence.
func (u *UDPSink) Send(_ context.Context, batch simulator.Batch) error {
	for _, s := range batch.Sentences {
		if _, err := u.conn.WriteTo([]byte(s+LineEnding), u.dest); err != nil {
			return fmt.Errorf("failed to send UDP datagram: %w", err)
		}
	}
	return nil
}

// Close closes the socket.
func (u *UDPSink) Close() error {
	return u.conn.Close()
}
