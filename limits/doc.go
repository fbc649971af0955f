// Package limits provides centralized size constants and validation functions
// for the RTSP push pipeline. It keeps the packetizer, the frame extractor and
// the session controller agreeing on how large each unit on the wire may be.
//
// # Size Hierarchy
//
//   - MaxInterleavedPayload (65535 bytes): the 16-bit length field of an RTSP
//     interleaved frame caps the RTP packet it carries.
//
//   - MaxRTPPayload: MaxInterleavedPayload minus the fixed RTP header and the
//     MPEG audio-specific header. This is the largest audio frame that fits
//     in one envelope.
//
//   - MaxResponseSize (64 KiB): upper bound on an RTSP response (headers plus
//     body) read during the handshake.
//
//   - MaxTagSize: the largest ID3v2 tag body expressible with four synchsafe
//     bytes (2^28 - 1).
//
// # Validation Functions
//
//	if err := limits.ValidateRTPPayload(frame); err != nil {
//	    // ErrPayloadEmpty or ErrPayloadTooLarge
//	}
//
// For custom limits, use ValidatePayloadSize:
//
//	err := limits.ValidatePayloadSize(data, 4096)
package limits
