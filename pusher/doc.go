// Package pusher drives a live RTSP push: it reads MPEG audio from a source,
// splits it into frames, and sends each frame to a publisher at real-time
// pace.
//
// One Run call owns the whole pipeline:
//
//	source → mpa.Extractor → rtp.Stream → Publisher (rtsp.Session)
//
// Input is read in fixed-size chunks only when the extractor needs more
// bytes. After each frame the driver sleeps for the frame's playback
// duration minus a processing allowance, so the server receives audio no
// faster than it plays.
//
//	p, err := pusher.New(file, session, pusher.DefaultConfig())
//	stats, err := p.Run(ctx)
package pusher
