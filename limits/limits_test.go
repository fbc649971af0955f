package limits

import (
	"errors"
	"fmt"
	"testing"
)

// TestMaxRTPPayloadCalculation verifies that MaxRTPPayload leaves room for the
// RTP and MPEG audio headers inside one interleaved frame
func TestMaxRTPPayloadCalculation(t *testing.T) {
	expected := MaxInterleavedPayload - RTPHeaderSize - MPAHeaderSize
	if MaxRTPPayload != expected {
		t.Errorf("MaxRTPPayload = %d, want %d", MaxRTPPayload, expected)
	}
}

func TestValidatePayloadSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		max     int
		wantErr error
	}{
		{"empty", 0, 10, ErrPayloadEmpty},
		{"at limit", 10, 10, nil},
		{"over limit", 11, 10, ErrPayloadTooLarge},
		{"small", 1, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayloadSize(make([]byte, tt.size), tt.max)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePayloadSize() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePayloadSize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRTPPayload(t *testing.T) {
	if err := ValidateRTPPayload(nil); !errors.Is(err, ErrPayloadEmpty) {
		t.Errorf("nil payload: got %v", err)
	}
	if err := ValidateRTPPayload(make([]byte, MaxRTPPayload)); err != nil {
		t.Errorf("max payload: got %v", err)
	}
	err := ValidateRTPPayload(make([]byte, MaxRTPPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized payload: got %v", err)
	}
	want := fmt.Sprintf("rtp payload: payload too large: size %d exceeds limit %d", MaxRTPPayload+1, MaxRTPPayload)
	if err == nil || err.Error() != want {
		t.Errorf("oversized payload message = %v, want %q", err, want)
	}
}

func TestValidateInterleavedPayload(t *testing.T) {
	if err := ValidateInterleavedPayload([]byte{}); !errors.Is(err, ErrPayloadEmpty) {
		t.Errorf("empty packet: got %v", err)
	}
	if err := ValidateInterleavedPayload(make([]byte, MaxInterleavedPayload)); err != nil {
		t.Errorf("max packet: got %v", err)
	}
	err := ValidateInterleavedPayload(make([]byte, MaxInterleavedPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized packet: got %v", err)
	}
	want := fmt.Sprintf("interleaved payload: payload too large: size %d exceeds limit %d", MaxInterleavedPayload+1, MaxInterleavedPayload)
	if err == nil || err.Error() != want {
		t.Errorf("oversized packet message = %v, want %q", err, want)
	}
}

func TestValidateResponseSize(t *testing.T) {
	if err := ValidateResponseSize(MaxResponseSize); err != nil {
		t.Errorf("at limit: got %v", err)
	}
	if err := ValidateResponseSize(MaxResponseSize + 1); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("over limit: got %v", err)
	}
}
