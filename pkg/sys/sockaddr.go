package sys

import (
	"fmt"
	"net"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
)

var (
	ErrInvalidAddr   = errors.Define("invalid address")
	ErrUnsupportedSa = errors.Define("unsupported sockaddr")
)

// AddrToSockaddr
// *net.TCPAddr, *net.UDPAddr, *net.IPAddr and *net.UnixAddr are supported.
func AddrToSockaddr(a net.Addr) (sa syscall.Sockaddr, err error) {
	switch addr := a.(type) {
	case *net.TCPAddr:
		return ipToSockaddr(addr.IP, addr.Port, addr.Zone)
	case *net.UDPAddr:
		return ipToSockaddr(addr.IP, addr.Port, addr.Zone)
	case *net.IPAddr:
		return ipToSockaddr(addr.IP, 0, addr.Zone)
	case *net.UnixAddr:
		sa = &syscall.SockaddrUnix{Name: addr.Name}
		return
	default:
		err = errors.From(ErrInvalidAddr, errors.WithMeta("type", fmt.Sprintf("%T", a)))
		return
	}
}

func ipToSockaddr(ip net.IP, port int, zone string) (syscall.Sockaddr, error) {
	if len(ip) == 0 {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &syscall.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	if len(ip) != net.IPv6len {
		return nil, errors.From(ErrInvalidAddr, errors.WithMeta("ip", ip.String()))
	}
	sa := &syscall.SockaddrInet6{Port: port}
	if zone != "" {
		if ifi, ifiErr := net.InterfaceByName(zone); ifiErr == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	copy(sa.Addr[:], ip)
	return sa, nil
}

// SockaddrToAddr
// network picks the concrete net.Addr, nil when it does not match the family.
func SockaddrToAddr(network string, sa syscall.Sockaddr) (addr net.Addr) {
	switch sa := sa.(type) {
	case *syscall.SockaddrInet4:
		ip := append(net.IP{}, sa.Addr[:]...)
		switch network {
		case "tcp", "tcp4":
			addr = &net.TCPAddr{IP: ip, Port: sa.Port}
		case "udp", "udp4":
			addr = &net.UDPAddr{IP: ip, Port: sa.Port}
		case "ip", "ip4":
			addr = &net.IPAddr{IP: ip}
		}
	case *syscall.SockaddrInet6:
		var zone string
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		ip := append(net.IP{}, sa.Addr[:]...)
		switch network {
		case "tcp", "tcp6":
			addr = &net.TCPAddr{IP: ip, Port: sa.Port, Zone: zone}
		case "udp", "udp6":
			addr = &net.UDPAddr{IP: ip, Port: sa.Port, Zone: zone}
		case "ip", "ip6":
			addr = &net.IPAddr{IP: ip, Zone: zone}
		}
	case *syscall.SockaddrUnix:
		addr = &net.UnixAddr{Net: network, Name: sa.Name}
	}
	return
}

// RawToSockaddr
// decodes what the kernel wrote into rsa.
func RawToSockaddr(rsa *syscall.RawSockaddrAny) (syscall.Sockaddr, error) {
	switch rsa.Addr.Family {
	case syscall.AF_UNIX:
		pp := (*syscall.RawSockaddrUnix)(unsafe.Pointer(rsa))
		n := 0
		for n < len(pp.Path) && pp.Path[n] != 0 {
			n++
		}
		name := make([]byte, n)
		for i := 0; i < n; i++ {
			name[i] = byte(pp.Path[i])
		}
		return &syscall.SockaddrUnix{Name: string(name)}, nil
	case syscall.AF_INET:
		pp := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		sa := new(syscall.SockaddrInet4)
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		sa.Port = int(p[0])<<8 + int(p[1])
		sa.Addr = pp.Addr
		return sa, nil
	case syscall.AF_INET6:
		pp := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		sa := new(syscall.SockaddrInet6)
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		sa.Port = int(p[0])<<8 + int(p[1])
		sa.ZoneId = pp.Scope_id
		sa.Addr = pp.Addr
		return sa, nil
	}
	return nil, errors.From(ErrUnsupportedSa, errors.WithMeta("family", strconv.Itoa(int(rsa.Addr.Family))))
}

// SockaddrToRaw
// encodes sa into rsa and returns the length to pass along with it.
func SockaddrToRaw(sa syscall.Sockaddr, rsa *syscall.RawSockaddrAny) (uint32, error) {
	*rsa = syscall.RawSockaddrAny{}
	switch s := sa.(type) {
	case *syscall.SockaddrInet4:
		raw := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		raw.Family = syscall.AF_INET
		p := (*[2]byte)(unsafe.Pointer(&raw.Port))
		p[0] = byte(s.Port >> 8)
		p[1] = byte(s.Port)
		raw.Addr = s.Addr
		return uint32(unsafe.Sizeof(*raw)), nil
	case *syscall.SockaddrInet6:
		raw := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		raw.Family = syscall.AF_INET6
		p := (*[2]byte)(unsafe.Pointer(&raw.Port))
		p[0] = byte(s.Port >> 8)
		p[1] = byte(s.Port)
		raw.Scope_id = s.ZoneId
		raw.Addr = s.Addr
		return uint32(unsafe.Sizeof(*raw)), nil
	case *syscall.SockaddrUnix:
		raw := (*syscall.RawSockaddrUnix)(unsafe.Pointer(rsa))
		raw.Family = syscall.AF_UNIX
		if len(s.Name) >= len(raw.Path) {
			return 0, errors.From(ErrInvalidAddr, errors.WithMeta("unix", s.Name))
		}
		for i := 0; i < len(s.Name); i++ {
			raw.Path[i] = int8(s.Name[i])
		}
		// family plus the path and its terminating NUL
		return uint32(2 + len(s.Name) + 1), nil
	default:
		return 0, errors.From(ErrUnsupportedSa, errors.WithMeta("type", fmt.Sprintf("%T", sa)))
	}
}
