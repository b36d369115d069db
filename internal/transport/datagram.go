package transport

import (
	"net"
	"time"

	"github.com/luciancaetano/sessnet/operation"
)

// Datagram is one remote peer on a shared UDP socket. Each datagram holds
// exactly one frame.
type Datagram struct {
	*pump
	conn *net.UDPConn
	addr *net.UDPAddr
}

// NewDatagram creates the transport for addr. Closing it never closes conn.
func NewDatagram(conn *net.UDPConn, addr *net.UDPAddr, queueLength int) *Datagram {
	d := &Datagram{conn: conn, addr: addr}
	d.pump = newPump(queueLength, d.write, nil, func() error { return nil })
	return d
}

func (d *Datagram) write(frame []byte) error {
	if err := d.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := d.conn.WriteToUDP(frame, d.addr)
	return err
}

func (d *Datagram) Protocol() operation.TransportProtocol {
	return operation.TransportUdp
}

func (d *Datagram) IsConnected() bool {
	return !d.isClosed()
}

func (d *Datagram) Send(frame []byte) error {
	return d.send(frame)
}

func (d *Datagram) SendAsync(frame []byte) error {
	return d.sendAsync(frame)
}

func (d *Datagram) Close() error {
	return d.close()
}

func (d *Datagram) RemoteAddr() string {
	return d.addr.String()
}
