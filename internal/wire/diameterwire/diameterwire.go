// Package diameterwire implements the byte-level codec for the north-bound,
// Diameter-style request/answer protocol: the 20-byte message header and the
// AVP (Attribute-Value-Pair) list that follows it. Every field is read and
// written explicitly against a byte buffer with encoding/binary — there is
// no packed struct cast across the wire boundary, grounded on the same
// binary.BigEndian idiom used throughout the teacher's decoder package
// (pkg/decoder/diameter/diameter.go, pkg/decoder/gtp/gtp.go, ...).
package diameterwire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	headerLen   = 20
	avpFlagVendor = 0x80
)

// Header is the fixed Diameter-style message header.
type Header struct {
	Version       uint8
	Length        uint32 // total message length including this header
	Flags         uint8  // bit 0x80 = Request
	CommandCode   uint32 // 24-bit command code; this spec's commands are named, not numbered on the wire; the name-to-code mapping lives in internal/northbound (commandCodes)
	ApplicationID uint32
	HopByHopID    uint32
	EndToEndID    uint32
}

// IsRequest reports whether the Request flag bit is set.
func (h Header) IsRequest() bool { return h.Flags&avpFlagVendor != 0 }

// AVP is one decoded Attribute-Value-Pair.
type AVP struct {
	Code     uint32
	Flags    uint8
	VendorID uint32 // valid only if Flags&avpFlagVendor != 0
	Value    []byte
}

// Message is a fully decoded north-bound message: header plus AVP list.
type Message struct {
	Header Header
	AVPs   []AVP
}

// DecodeHeader parses the fixed 20-byte header from the front of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < headerLen {
		return Header{}, fmt.Errorf("diameterwire: short header, got %d bytes want %d", len(data), headerLen)
	}
	var h Header
	h.Version = data[0]
	h.Length = binary.BigEndian.Uint32(data[0:4]) & 0x00FFFFFF
	h.Flags = data[4]
	h.CommandCode = binary.BigEndian.Uint32(data[4:8]) & 0x00FFFFFF
	h.ApplicationID = binary.BigEndian.Uint32(data[8:12])
	h.HopByHopID = binary.BigEndian.Uint32(data[12:16])
	h.EndToEndID = binary.BigEndian.Uint32(data[16:20])
	return h, nil
}

// EncodeHeader writes h into a fresh 20-byte buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Length&0x00FFFFFF)
	buf[0] = h.Version
	binary.BigEndian.PutUint32(buf[4:8], h.CommandCode&0x00FFFFFF)
	buf[4] = h.Flags
	binary.BigEndian.PutUint32(buf[8:12], h.ApplicationID)
	binary.BigEndian.PutUint32(buf[12:16], h.HopByHopID)
	binary.BigEndian.PutUint32(buf[16:20], h.EndToEndID)
	return buf
}

// DecodeAVPs parses a contiguous run of AVPs, honouring the 4-byte alignment
// padding and the optional vendor-id field, exactly as the teacher's
// diameter.go AVP loop does.
func DecodeAVPs(data []byte) ([]AVP, error) {
	var avps []AVP
	offset := 0
	for offset < len(data) {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("diameterwire: truncated AVP header at offset %d", offset)
		}
		code := binary.BigEndian.Uint32(data[offset : offset+4])
		flags := data[offset+4]
		avpLength := int(binary.BigEndian.Uint32(data[offset+4:offset+8]) & 0x00FFFFFF)
		if avpLength < 8 || offset+avpLength > len(data) {
			return nil, fmt.Errorf("diameterwire: invalid AVP length %d at offset %d", avpLength, offset)
		}

		hdrLen := 8
		var vendorID uint32
		if flags&avpFlagVendor != 0 {
			if offset+12 > len(data) {
				return nil, fmt.Errorf("diameterwire: truncated vendor AVP header at offset %d", offset)
			}
			vendorID = binary.BigEndian.Uint32(data[offset+8 : offset+12])
			hdrLen = 12
		}

		valueLen := avpLength - hdrLen
		if offset+hdrLen+valueLen > len(data) {
			return nil, fmt.Errorf("diameterwire: AVP value overruns buffer at offset %d", offset)
		}
		value := make([]byte, valueLen)
		copy(value, data[offset+hdrLen:offset+hdrLen+valueLen])

		avps = append(avps, AVP{Code: code, Flags: flags, VendorID: vendorID, Value: value})

		offset += avpLength
		padding := (4 - (avpLength % 4)) % 4
		offset += padding
	}
	return avps, nil
}

// EncodeAVPs serializes avps back-to-back with 4-byte alignment padding.
func EncodeAVPs(avps []AVP) []byte {
	var out []byte
	for _, a := range avps {
		hdrLen := 8
		if a.Flags&avpFlagVendor != 0 {
			hdrLen = 12
		}
		avpLength := hdrLen + len(a.Value)

		buf := make([]byte, avpLength)
		binary.BigEndian.PutUint32(buf[0:4], a.Code)
		binary.BigEndian.PutUint32(buf[4:8], uint32(avpLength)&0x00FFFFFF)
		buf[4] = a.Flags
		if a.Flags&avpFlagVendor != 0 {
			binary.BigEndian.PutUint32(buf[8:12], a.VendorID)
		}
		copy(buf[hdrLen:], a.Value)

		out = append(out, buf...)
		padding := (4 - (avpLength % 4)) % 4
		out = append(out, make([]byte, padding)...)
	}
	return out
}

// Decode parses a full message (header + AVPs) from data.
func Decode(data []byte) (Message, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Message{}, err
	}
	if int(h.Length) > len(data) {
		return Message{}, fmt.Errorf("diameterwire: header claims %d bytes, buffer has %d", h.Length, len(data))
	}
	avps, err := DecodeAVPs(data[headerLen:h.Length])
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, AVPs: avps}, nil
}

// Encode serializes a full message, filling in Header.Length.
func Encode(m Message) []byte {
	body := EncodeAVPs(m.AVPs)
	m.Header.Length = uint32(headerLen + len(body))
	return append(EncodeHeader(m.Header), body...)
}

// Find returns the first AVP with the given code, if present.
func (m Message) Find(code uint32) (AVP, bool) {
	for _, a := range m.AVPs {
		if a.Code == code {
			return a, true
		}
	}
	return AVP{}, false
}

// FindString returns the first AVP with the given code decoded as a UTF-8 string.
func (m Message) FindString(code uint32) (string, bool) {
	a, ok := m.Find(code)
	if !ok {
		return "", false
	}
	return string(a.Value), true
}

// FindUint32 returns the first AVP with the given code decoded as a big-endian uint32.
func (m Message) FindUint32(code uint32) (uint32, bool) {
	a, ok := m.Find(code)
	if !ok || len(a.Value) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(a.Value), true
}

// FindFloat32 returns the first AVP with the given code decoded as an IEEE-754 big-endian float32.
func (m Message) FindFloat32(code uint32) (float32, bool) {
	v, ok := m.FindUint32(code)
	if !ok {
		return 0, false
	}
	return float32FromBits(v), true
}

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// StringAVP builds a UTF8String-typed AVP.
func StringAVP(code uint32, s string) AVP {
	return AVP{Code: code, Value: []byte(s)}
}

// Uint32AVP builds an Unsigned32-typed AVP.
func Uint32AVP(code uint32, v uint32) AVP {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return AVP{Code: code, Value: buf}
}

// Float32AVP builds a Float32-typed AVP. Granted-Bandwidth and
// Granted-Return-Bandwidth are not built with it: the north-bound MCCA and
// MNTR encoders send them as Unsigned32 kbps via Uint32AVP.
func Float32AVP(code uint32, v float32) AVP {
	return Uint32AVP(code, math.Float32bits(v))
}
