package llm

import "encoding/json"

// objectScanner extracts complete top-level JSON objects from an
// incrementally streamed array (or bare concatenation) of objects.
// The model emits `[{...}, {...}, ...]` token by token; the scanner
// buffers until one object closes, then hands it off. Everything outside
// objects (array brackets, commas, whitespace, stray prose) is skipped.
type objectScanner struct {
	buf      []byte
	depth    int
	inString bool
	escaped  bool
}

// feed consumes one chunk of streamed text and invokes emit for every
// object completed within it. emit errors abort the scan.
func (s *objectScanner) feed(text string, emit func(json.RawMessage) error) error {
	for i := 0; i < len(text); i++ {
		c := text[i]

		if s.depth == 0 {
			// Between objects: wait for the next opening brace.
			if c == '{' {
				s.depth = 1
				s.buf = append(s.buf[:0], c)
			}
			continue
		}

		s.buf = append(s.buf, c)

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth == 0 {
				raw := make(json.RawMessage, len(s.buf))
				copy(raw, s.buf)
				s.buf = s.buf[:0]
				if err := emit(raw); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pending reports whether an object is still open. A true value at stream
// end means the final element was truncated and must not be yielded.
func (s *objectScanner) pending() bool {
	return s.depth > 0
}
