package diameterwire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		Header: Header{Version: 1, Flags: 0x80, CommandCode: 300, ApplicationID: 16777302, HopByHopID: 1, EndToEndID: 2},
		AVPs: []AVP{
			StringAVP(1, "AC1"),
			Uint32AVP(268, 2001),
			Float32AVP(20011, 1000.5),
		},
	}

	encoded := Encode(msg)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Header.CommandCode != msg.Header.CommandCode {
		t.Fatalf("command code mismatch: got %d want %d", decoded.Header.CommandCode, msg.Header.CommandCode)
	}
	if name, ok := decoded.FindString(1); !ok || name != "AC1" {
		t.Fatalf("User-Name round trip: got %q ok=%v", name, ok)
	}
	if rc, ok := decoded.FindUint32(268); !ok || rc != 2001 {
		t.Fatalf("Result-Code round trip: got %d ok=%v", rc, ok)
	}
	if bw, ok := decoded.FindFloat32(20011); !ok || bw != 1000.5 {
		t.Fatalf("Requested-Bandwidth round trip: got %v ok=%v", bw, ok)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short header")
	}
}

func TestDecodeAVPsPadding(t *testing.T) {
	avps := []AVP{StringAVP(1, "ab"), StringAVP(2, "abcd")}
	encoded := EncodeAVPs(avps)
	decoded, err := DecodeAVPs(encoded)
	if err != nil {
		t.Fatalf("DecodeAVPs: %v", err)
	}
	if len(decoded) != 2 || string(decoded[0].Value) != "ab" || string(decoded[1].Value) != "abcd" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}
