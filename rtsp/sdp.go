package rtsp

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/pion/sdp/v3"
)

// StreamControl is the control attribute of the single audio stream; SETUP
// targets <url>/StreamControl.
const StreamControl = "streamid=0"

// AnnounceSDP builds the session description sent with ANNOUNCE: one MPEG
// audio stream (payload type 14) with an application-specific bandwidth
// limit in kbit/s. The final line carries no CRLF; Request.Marshal adds it.
func AnnounceSDP(path, host string, bandwidthKbps int) ([]byte, error) {
	if bandwidthKbps <= 0 {
		return nil, fmt.Errorf("bandwidth must be positive, got %d", bandwidthKbps)
	}

	addressType := "IP4"
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		addressType = "IP6"
	}

	description := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: sdp.SessionName(strings.Trim(path, "/")),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addressType,
			Address:     &sdp.Address{Address: host},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("tool", "libc6"),
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: 0},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{strconv.Itoa(int(rtp.PayloadTypeMPA))},
				},
				Bandwidth: []sdp.Bandwidth{
					{Type: "AS", Bandwidth: uint64(bandwidthKbps)},
				},
				Attributes: []sdp.Attribute{
					sdp.NewAttribute("control", StreamControl),
				},
			},
		},
	}

	body, err := description.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SDP: %w", err)
	}
	return bytes.TrimSuffix(body, []byte("\r\n")), nil
}
