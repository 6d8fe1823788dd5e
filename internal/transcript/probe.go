package transcript

import "bytes"

var typeName = []byte("type")

// Probe returns the record kind named by the top-level "type" member of a
// JSONL line, or "" when the line has none or names a kind that is not
// modelled (e.g. "system", "progress"). It walks top-level members only and
// skips nested values without decoding them, stopping at the "type" member.
// Malformed input yields "".
func Probe(line []byte) Kind {
	s := probeScanner{b: line}
	s.space()
	if !s.eat('{') {
		return ""
	}
	for {
		s.space()
		if s.peek() != '"' {
			return ""
		}
		key := s.str()
		s.space()
		if !s.eat(':') {
			return ""
		}
		s.space()

		if bytes.Equal(key, typeName) {
			if s.peek() != '"' {
				return ""
			}
			switch k := Kind(s.str()); k {
			case KindUser, KindAssistant, KindSummary:
				return k
			}
			return ""
		}

		s.value()
		s.space()
		if !s.eat(',') {
			return ""
		}
	}
}

type probeScanner struct {
	b []byte
	i int
}

func (s *probeScanner) peek() byte {
	if s.i < len(s.b) {
		return s.b[s.i]
	}
	return 0
}

func (s *probeScanner) eat(c byte) bool {
	if s.peek() != c {
		return false
	}
	s.i++
	return true
}

func (s *probeScanner) space() {
	for s.i < len(s.b) {
		switch s.b[s.i] {
		case ' ', '\t', '\n', '\r':
			s.i++
		default:
			return
		}
	}
}

// str consumes a string at the cursor and returns its raw contents, escapes
// left as written.
func (s *probeScanner) str() []byte {
	s.i++ // opening quote
	start := s.i
	for s.i < len(s.b) {
		switch s.b[s.i] {
		case '\\':
			s.i += 2
		case '"':
			out := s.b[start:s.i]
			s.i++
			return out
		default:
			s.i++
		}
	}
	s.i = len(s.b)
	return nil
}

// value skips one JSON value of any type.
func (s *probeScanner) value() {
	switch s.peek() {
	case '"':
		s.str()
	case '{', '[':
		depth := 0
		for s.i < len(s.b) {
			switch s.b[s.i] {
			case '"':
				s.str()
				continue
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
			s.i++
			if depth == 0 {
				return
			}
		}
	default:
		for s.i < len(s.b) {
			switch s.b[s.i] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return
			}
			s.i++
		}
	}
}
