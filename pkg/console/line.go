package console

// LineReader assembles command lines from a byte stream, as received from a
// UART one byte at a time. Backspace and DEL erase the last byte; bytes past
// the buffer size are dropped.
type LineReader struct {
	buf []byte
}

// NewLineReader creates a reader holding at most size bytes per line.
func NewLineReader(size int) *LineReader {
	return &LineReader{buf: make([]byte, 0, size)}
}

// Feed adds one byte and returns the line when the byte terminates a non-empty one.
func (l *LineReader) Feed(data byte) (string, bool) {
	switch data {
	case '\r', '\n':
		if len(l.buf) == 0 {
			return "", false
		}
		s := string(l.buf)
		l.buf = l.buf[:0]
		return s, true
	case '\b', 0x7F:
		if len(l.buf) > 0 {
			l.buf = l.buf[:len(l.buf)-1]
		}
	default:
		if len(l.buf) < cap(l.buf) {
			l.buf = append(l.buf, data)
		}
	}
	return "", false
}
