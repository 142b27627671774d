// Package mjpeg splits a Motion-JPEG byte stream into individual JPEG images.
package mjpeg

// DefaultMaxFrameSize bounds the bytes buffered for a single partial frame.
const DefaultMaxFrameSize = 8 << 20

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerTEM    = 0x01
	markerRST0   = 0xD0
	markerRST7   = 0xD7
)

// Scanner accumulates stream bytes and extracts complete JPEG payloads,
// delimited by the start-of-image (FF D8) and end-of-image (FF D9) markers.
//
// Inside a frame, length-prefixed segments are skipped by their declared
// length, so an FF D9 pair embedded in segment data (an EXIF thumbnail, for
// example) does not terminate the frame. Entropy-coded data is searched byte
// by byte; 0xFF stuffing makes that exact. Bytes that do not form a plausible
// segment header are searched byte by byte as well, so non-conforming streams
// still split on the first EOI.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	buf          []byte
	inFrame      bool
	pos          int
	maxFrameSize int
	overflows    uint64
}

// NewScanner creates a scanner. A partial frame that grows beyond
// maxFrameSize bytes is discarded; zero or negative selects
// DefaultMaxFrameSize.
func NewScanner(maxFrameSize int) *Scanner {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Scanner{maxFrameSize: maxFrameSize}
}

// Write appends stream bytes. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete JPEG payload, or false when more bytes are
// needed. The returned slice is a copy owned by the caller.
func (s *Scanner) Next() ([]byte, bool) {
	if !s.inFrame && !s.findStart() {
		return nil, false
	}

	end, ok := s.findEnd()
	if !ok {
		if len(s.buf) > s.maxFrameSize {
			s.overflows++
			s.reset()
		}
		return nil, false
	}

	frame := make([]byte, end)
	copy(frame, s.buf[:end])
	s.consume(end)
	s.inFrame = false
	return frame, true
}

// Feed writes p and drains every frame that became complete, oldest first.
func (s *Scanner) Feed(p []byte) [][]byte {
	_, _ = s.Write(p)
	var frames [][]byte
	for {
		frame, ok := s.Next()
		if !ok {
			return frames
		}
		frames = append(frames, frame)
	}
}

// Buffered reports how many bytes are held for the next frame.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// Overflows reports how many partial frames were discarded for exceeding the
// size bound.
func (s *Scanner) Overflows() uint64 {
	return s.overflows
}

// Reset drops all buffered bytes, for example after a reconnect.
func (s *Scanner) Reset() {
	s.reset()
	s.buf = s.buf[:0]
}

// findStart drops bytes up to the next SOI. Without one, only a trailing
// 0xFF that may begin a marker is kept.
func (s *Scanner) findStart() bool {
	for i := 0; i+1 < len(s.buf); i++ {
		if s.buf[i] == markerPrefix && s.buf[i+1] == markerSOI {
			s.consume(i)
			s.inFrame = true
			s.pos = 2
			return true
		}
	}
	if n := len(s.buf); n > 0 && s.buf[n-1] == markerPrefix {
		s.buf[0] = markerPrefix
		s.buf = s.buf[:1]
	} else {
		s.buf = s.buf[:0]
	}
	return false
}

// findEnd scans from the resume cursor and returns the length of the frame
// including its EOI marker.
func (s *Scanner) findEnd() (int, bool) {
	buf := s.buf
	for s.pos+1 < len(buf) {
		if buf[s.pos] != markerPrefix {
			s.pos++
			continue
		}

		marker := buf[s.pos+1]
		switch {
		case marker == markerEOI:
			return s.pos + 2, true
		case marker == markerPrefix:
			// fill byte
			s.pos++
		case marker == 0x00, marker == markerTEM, marker == markerSOI,
			marker >= markerRST0 && marker <= markerRST7:
			s.pos += 2
		case hasLength(marker):
			next, wait := s.skipSegment(marker)
			if wait {
				return 0, false
			}
			s.pos = next
		default:
			s.pos++
		}
	}
	return 0, false
}

// skipSegment validates the segment starting at s.pos and returns the offset
// just past it. A segment that does not look genuine yields s.pos+1 so the
// byte-wise search continues. wait is true when more bytes are needed to
// decide.
func (s *Scanner) skipSegment(marker byte) (next int, wait bool) {
	buf := s.buf
	if s.pos+4 > len(buf) {
		return 0, true
	}
	length := int(buf[s.pos+2])<<8 | int(buf[s.pos+3])
	if length < 2 {
		return s.pos + 1, false
	}
	end := s.pos + 2 + length

	if marker == markerSOS {
		if s.pos+5 > len(buf) {
			return 0, true
		}
		components := int(buf[s.pos+4])
		if components < 1 || components > 4 || length != 6+2*components {
			return s.pos + 1, false
		}
		return end, false
	}

	// A genuine segment is followed by another marker.
	if end >= len(buf) {
		return 0, true
	}
	if buf[end] != markerPrefix {
		return s.pos + 1, false
	}
	return end, false
}

// hasLength reports whether a marker is followed by a two-byte segment length.
func hasLength(marker byte) bool {
	switch {
	case marker >= 0xC0 && marker <= 0xCF:
		return true
	case marker >= 0xDA && marker <= 0xDF:
		return true
	case marker >= 0xE0 && marker <= 0xEF:
		return true
	case marker == 0xFE:
		return true
	}
	return false
}

// consume drops the first n bytes, reusing the backing array.
func (s *Scanner) consume(n int) {
	m := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:m]
	s.pos = 0
}

func (s *Scanner) reset() {
	s.inFrame = false
	s.pos = 0
	if n := len(s.buf); n > 0 && s.buf[n-1] == markerPrefix {
		s.buf[0] = markerPrefix
		s.buf = s.buf[:1]
		return
	}
	s.buf = s.buf[:0]
}
