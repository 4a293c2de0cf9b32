// Package wire decodes VXLAN-encapsulated mirror copies down to the inner
// 5-tuple. The decoder is pure and allocation-free: every field is read
// in place with big-endian byte arithmetic, so it can run per packet on the
// capture hot path.
package wire

import (
	"errors"

	"MirrorScope/internal/model"
)

const (
	// VXLANHeaderLen is the fixed outer encapsulation header size.
	VXLANHeaderLen = 8
	// EthernetHeaderLen is the inner Ethernet header size.
	EthernetHeaderLen = 14
	// IPv4MinHeaderLen is the minimum inner IPv4 header size.
	IPv4MinHeaderLen = 20

	// MinPacketLen is the smallest parseable datagram.
	MinPacketLen = VXLANHeaderLen + EthernetHeaderLen + IPv4MinHeaderLen

	etherTypeIPv4 = 0x0800

	// ProtoTCP and ProtoUDP are the transport protocols whose ports are
	// extracted. Other protocols parse with ports 0.
	ProtoTCP = 6
	ProtoUDP = 17
)

// ErrTruncated means the buffer does not cover the headers it declares.
var ErrTruncated = errors.New("wire: truncated packet")

// ErrUnsupportedEtherType means the inner frame is not IPv4.
var ErrUnsupportedEtherType = errors.New("wire: unsupported ethertype")

// ParsedFlow is the result of decoding one mirrored datagram. Length is the
// inner IPv4 total-length field, not the observed wire length, so truncated
// mirror copies still yield correct byte accounting.
type ParsedFlow struct {
	Key    model.FlowKey
	Length uint16
}

func readUint16(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

func readUint32(b []byte, off int) uint32 {
	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}

// Parse decodes one VXLAN-encapsulated datagram: outer VXLAN header, inner
// Ethernet, inner IPv4, and TCP/UDP ports when the buffer covers them.
// A buffer that ends before the transport ports is not an error; the ports
// default to 0. A buffer that ends inside a declared header is ErrTruncated.
func Parse(data []byte) (ParsedFlow, error) {
	var flow ParsedFlow

	if len(data) < MinPacketLen {
		return flow, ErrTruncated
	}

	// Inner Ethernet: dst MAC (6) + src MAC (6) + ethertype (2).
	if readUint16(data, VXLANHeaderLen+12) != etherTypeIPv4 {
		return flow, ErrUnsupportedEtherType
	}

	ipOff := VXLANHeaderLen + EthernetHeaderLen
	verIHL := data[ipOff]
	if verIHL>>4 != 4 {
		return flow, ErrUnsupportedEtherType
	}
	ihl := int(verIHL&0x0f) * 4
	if ihl < IPv4MinHeaderLen {
		return flow, ErrTruncated
	}
	if ipOff+ihl > len(data) {
		return flow, ErrTruncated
	}

	flow.Length = readUint16(data, ipOff+2)
	flow.Key.Protocol = data[ipOff+9]
	flow.Key.SrcIP = readUint32(data, ipOff+12)
	flow.Key.DstIP = readUint32(data, ipOff+16)

	if flow.Key.Protocol == ProtoTCP || flow.Key.Protocol == ProtoUDP {
		l4Off := ipOff + ihl
		if l4Off+4 <= len(data) {
			flow.Key.SrcPort = readUint16(data, l4Off)
			flow.Key.DstPort = readUint16(data, l4Off+2)
		}
	}

	return flow, nil
}
