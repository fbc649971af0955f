// Package mpa extracts MPEG audio frames from an unbounded byte stream.
//
// Bytes are appended to an Extractor in arbitrary chunk sizes with Ingest and
// consumed strictly from the front: first an optional ID3v2 tag, then one
// frame at a time. Each frame is returned with its decoded header and its
// playback duration so a caller can pace transmission in real time.
//
//	ex := mpa.NewExtractor()
//	ex.Ingest(chunk)
//	if ok, _ := ex.HasTag(); ok {
//	    tag, err := ex.ExtractTag()
//	    ...
//	}
//	for {
//	    frame, err := ex.NextFrame()
//	    if mpa.IsRecoverable(err) {
//	        // ingest more input, or stop if the source is exhausted
//	    }
//	    ...
//	}
//
// # Errors
//
// ErrNoFrame and ErrInsufficientData are retry signals, never format
// failures. A malformed tag or header is reported as a *FormatError whose
// Kind is one of ErrUnsupportedTag, ErrUnsupportedHeader, ErrLostSync or
// ErrInvalidFrameLength. The extractor does not realign on its own; callers
// that want to skip garbage call Resync explicitly.
//
// # Thread Safety
//
// An Extractor is owned by a single goroutine. None of its methods are safe
// for concurrent use.
package mpa
