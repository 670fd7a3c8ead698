package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Family identifies the address family packed in an Address.
type Family uint8

const (
	IPv4 Family = 1
	IPv6 Family = 2
)

// groupCount returns the number of 16-bit host groups for the family.
func (f Family) groupCount() int {
	switch f {
	case IPv4:
		return 4
	case IPv6:
		return 8
	default:
		return 0
	}
}

// Address is a (family, numeric host, port) triple, packed as:
//
//	offset  size    field
//	0       1       family (1=IPv4, 2=IPv6)
//	1       2       port (u16)
//	3       2*N     host groups (u16 each; N=4 for IPv4, 8 for IPv6)
type Address struct {
	Family Family
	Host   [8]uint16 // only the first groupCount() entries are meaningful
	Port   uint16
}

// AddressFromTCP packs the numeric form of a *net.TCPAddr into an Address.
func AddressFromTCP(addr *net.TCPAddr) (Address, error) {
	ip := addr.IP
	if v4 := ip.To4(); v4 != nil {
		var a Address
		a.Family = IPv4
		a.Port = uint16(addr.Port)
		for i := 0; i < 4; i++ {
			a.Host[i] = uint16(v4[i])
		}
		return a, nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return Address{}, fmt.Errorf("wire: unrecognized IP %v", ip)
	}
	var a Address
	a.Family = IPv6
	a.Port = uint16(addr.Port)
	for i := 0; i < 8; i++ {
		a.Host[i] = binary.BigEndian.Uint16(v6[i*2 : i*2+2])
	}
	return a, nil
}

// TCPAddr converts the packed Address back to a *net.TCPAddr.
func (a Address) TCPAddr() *net.TCPAddr {
	n := a.Family.groupCount()
	switch a.Family {
	case IPv4:
		ip := make(net.IP, 4)
		for i := 0; i < 4; i++ {
			ip[i] = byte(a.Host[i])
		}
		return &net.TCPAddr{IP: ip, Port: int(a.Port)}
	case IPv6:
		ip := make(net.IP, 16)
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(ip[i*2:], a.Host[i])
		}
		return &net.TCPAddr{IP: ip, Port: int(a.Port)}
	default:
		return &net.TCPAddr{}
	}
}

// PackAddress encodes a single Address.
func PackAddress(a Address) []byte {
	n := a.Family.groupCount()
	buf := make([]byte, 3+2*n)
	buf[0] = byte(a.Family)
	binary.BigEndian.PutUint16(buf[1:3], a.Port)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint16(buf[3+2*i:], a.Host[i])
	}
	return buf
}

// UnpackAddress decodes one Address from the front of buf and reports how
// many bytes were consumed.
func UnpackAddress(buf []byte) (Address, int, error) {
	if len(buf) < 3 {
		return Address{}, 0, fmt.Errorf("%w: address header truncated", ErrMalformed)
	}
	family := Family(buf[0])
	n := family.groupCount()
	if n == 0 {
		return Address{}, 0, fmt.Errorf("%w: unknown address family %d", ErrMalformed, family)
	}
	consumed := 3 + 2*n
	if len(buf) < consumed {
		return Address{}, 0, fmt.Errorf("%w: address body truncated", ErrMalformed)
	}

	var a Address
	a.Family = family
	a.Port = binary.BigEndian.Uint16(buf[1:3])
	for i := 0; i < n; i++ {
		a.Host[i] = binary.BigEndian.Uint16(buf[3+2*i:])
	}
	return a, consumed, nil
}

// PackAddresses concatenates the packed form of every address in seq.
func PackAddresses(seq []Address) []byte {
	var buf []byte
	for _, a := range seq {
		buf = append(buf, PackAddress(a)...)
	}
	return buf
}

// UnpackAddresses decodes a tight sequence of addresses until buf is
// exhausted.
func UnpackAddresses(buf []byte) ([]Address, error) {
	var out []Address
	for len(buf) > 0 {
		a, n, err := UnpackAddress(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		buf = buf[n:]
	}
	return out, nil
}
