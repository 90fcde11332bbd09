package mihwire

import "testing"

func TestStreamHeaderRoundTrip(t *testing.T) {
	h := StreamHeader{PrimitiveCode: 0x0201, Length: 128, TransactionID: 42, Timestamp: 1000}
	decoded, err := DecodeStreamHeader(EncodeStreamHeader(h))
	if err != nil {
		t.Fatalf("DecodeStreamHeader: %v", err)
	}
	if decoded != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, h)
	}
}

func TestDecodeStreamHeaderShort(t *testing.T) {
	if _, err := DecodeStreamHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short stream header")
	}
}

func TestDatagramHeaderRoundTrip(t *testing.T) {
	code, err := DecodeDatagramHeader(EncodeDatagramHeader(0x0101))
	if err != nil {
		t.Fatalf("DecodeDatagramHeader: %v", err)
	}
	if code != 0x0101 {
		t.Fatalf("got %#x want %#x", code, 0x0101)
	}
}

func TestLinkUpIndicationRoundTrip(t *testing.T) {
	msg := LinkUpIndication{
		LinkIdentifier: LinkTupleID{LinkType: 0x31, LinkAddr: "ku-sat-0", PoAAddr: "poa-1"},
		Parameters: LinkParameters{
			CurrentTxRateKbps:      5000,
			CurrentRxRateKbps:      8000,
			SignalStrengthDbm:      -75,
			SignalQuality:          90,
			CurrentLatencyMs:       600,
			PacketLossRate:         0.01,
			AvailableBandwidthKbps: 4200,
			LinkState:              1,
			ActiveBearers:          2,
		},
		UpTimestamp: 123456,
	}
	decoded, err := DecodeLinkUpIndication(EncodeLinkUpIndication(msg))
	if err != nil {
		t.Fatalf("DecodeLinkUpIndication: %v", err)
	}
	if decoded.LinkIdentifier.LinkAddr != "ku-sat-0" {
		t.Fatalf("link addr mismatch: %q", decoded.LinkIdentifier.LinkAddr)
	}
	if decoded.Parameters.SignalStrengthDbm != -75 {
		t.Fatalf("signal strength mismatch: got %d", decoded.Parameters.SignalStrengthDbm)
	}
	if decoded.Parameters.PacketLossRate != 0.01 {
		t.Fatalf("loss rate mismatch: got %v", decoded.Parameters.PacketLossRate)
	}
	if decoded.UpTimestamp != 123456 {
		t.Fatalf("timestamp mismatch: got %d", decoded.UpTimestamp)
	}
}

func TestLinkDownIndicationRoundTrip(t *testing.T) {
	msg := LinkDownIndication{
		LinkIdentifier: LinkTupleID{LinkType: 0x10, LinkAddr: "cell-0"},
		ReasonCode:     2,
		ReasonText:     "signal lost",
		DownTimestamp:  99,
	}
	decoded, err := DecodeLinkDownIndication(EncodeLinkDownIndication(msg))
	if err != nil {
		t.Fatalf("DecodeLinkDownIndication: %v", err)
	}
	if decoded.ReasonText != "signal lost" || decoded.ReasonCode != 2 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestLinkResourceRequestRoundTrip(t *testing.T) {
	req := LinkResourceRequest{
		Action:       ResourceActionRequest,
		HasQoSParams: true,
		QoS: QoSParam{
			CosID:           3,
			ForwardLinkRate: 2000,
			ReturnLinkRate:  500,
			PkLossRate:      0.02,
		},
	}
	decoded, err := DecodeLinkResourceRequest(EncodeLinkResourceRequest(req))
	if err != nil {
		t.Fatalf("DecodeLinkResourceRequest: %v", err)
	}
	if !decoded.HasQoSParams || decoded.QoS.ForwardLinkRate != 2000 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestValidateQoS(t *testing.T) {
	cases := []struct {
		name    string
		qos     QoSParam
		wantErr bool
	}{
		{"both rates zero", QoSParam{}, true},
		{"loss out of range", QoSParam{ForwardLinkRate: 1, PkLossRate: 1.5}, true},
		{"valid", QoSParam{ForwardLinkRate: 1, PkLossRate: 0.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQoS(tc.qos)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateQoS(%+v): got err=%v want wantErr=%v", tc.qos, err, tc.wantErr)
			}
		})
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := Heartbeat{DLMName: "vdl2-left", LinkType: 0x30, Timestamp: 555}
	decoded, err := DecodeHeartbeat(EncodeHeartbeat(hb))
	if err != nil {
		t.Fatalf("DecodeHeartbeat: %v", err)
	}
	if decoded != hb {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, hb)
	}
}

func TestExtLinkRegisterRoundTrip(t *testing.T) {
	req := ExtLinkRegisterRequest{
		LinkIdentifier: LinkTupleID{LinkType: 0x20, LinkAddr: "iridium-0"},
		Capability: LinkCapability{
			SupportedEvents:  0xFF,
			MaxBandwidthKbps: 128,
			LinkType:         0x20,
			MTU:              1500,
		},
	}
	decoded, err := DecodeExtLinkRegisterRequest(EncodeExtLinkRegisterRequest(req))
	if err != nil {
		t.Fatalf("DecodeExtLinkRegisterRequest: %v", err)
	}
	if decoded.Capability.MaxBandwidthKbps != 128 || decoded.LinkIdentifier.LinkAddr != "iridium-0" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}
