// Package rtsp implements the publishing side of an RTSP/1.0 session over a
// single TCP connection.
//
// A Session walks a linear state machine, one method per request:
//
//	Unconnected → Connected → OptionsAcked → Announced → SetUp → Recording → Closed
//
//	Connect      dial the server (directly or through a proxy)
//	SendOptions  OPTIONS
//	SendAnnounce ANNOUNCE with an application/sdp body (see AnnounceSDP)
//	SendSetup    SETUP <url>/streamid=0, RTP/AVP/TCP interleaved=0-1, mode=record
//	SendRecord   RECORD with Range npt=0.000- and the stored Session
//	SendTeardown TEARDOWN, then the socket is closed
//
// ConnectAndStart runs the whole handshake and stops at the first failure.
// Once recording, WritePacket sends interleaved envelopes produced by
// package av/rtp on the same connection, serialized with handshake traffic.
//
//	session, err := rtsp.NewSession(config)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	if err := session.ConnectAndStart(ctx); err != nil {
//	    return err
//	}
//	err = session.WritePacket(envelope)
//
// # Errors
//
// Exchange failures are *ProtocolError values whose kind can be tested with
// errors.Is: ErrNoResponse, ErrTimeout, ErrUnexpectedStatus, ErrNoSession,
// ErrInvalidState or ErrMalformedResponse. Socket failures are
// *ConnectionError values.
//
// # Wire Details
//
// Requests use CRLF line endings. CSeq starts at 1 and grows by one per
// request. An ANNOUNCE body is followed by CRLF and Content-Length counts
// it. The Session identifier is everything after the first colon of the
// SETUP response's Session header, so values such as
// "4CA5A733;timeout=60" are kept intact.
package rtsp
