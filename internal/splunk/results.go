package splunk

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// ResultStream lazily yields parsed records from a one-shot backend result
// stream. It is finite and not restartable.
type ResultStream struct {
	rc      io.ReadCloser
	mode    string
	dec     *json.Decoder
	scanner *bufio.Scanner
	inArray bool
	err     error
}

func newResultStream(rc io.ReadCloser, mode string) *ResultStream {
	s := &ResultStream{rc: rc, mode: mode}
	if mode == "json" {
		s.dec = json.NewDecoder(rc)
	} else {
		s.scanner = bufio.NewScanner(rc)
		s.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	}
	return s
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (s *ResultStream) Next() (Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.mode != "json" {
		if s.scanner.Scan() {
			return Record{"raw": s.scanner.Text()}, nil
		}
		if err := s.scanner.Err(); err != nil {
			s.err = err
			return nil, err
		}
		s.err = io.EOF
		return nil, io.EOF
	}

	if !s.inArray {
		if err := s.seekResults(); err != nil {
			s.err = err
			return nil, err
		}
		s.inArray = true
	}
	if !s.dec.More() {
		s.err = io.EOF
		return nil, io.EOF
	}
	var rec Record
	if err := s.dec.Decode(&rec); err != nil {
		s.err = err
		return nil, err
	}
	return rec, nil
}

// seekResults advances the decoder through the response envelope to the
// opening bracket of the "results" array.
func (s *ResultStream) seekResults() error {
	tok, err := s.dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("unexpected result envelope start: %v", tok)
	}
	for s.dec.More() {
		keyTok, err := s.dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token in result envelope: %v", keyTok)
		}
		if key == "results" {
			openTok, err := s.dec.Token()
			if err != nil {
				return err
			}
			if d, ok := openTok.(json.Delim); !ok || d != '[' {
				return fmt.Errorf("results field is not an array")
			}
			return nil
		}
		// Skip the value of any preamble field.
		var skip json.RawMessage
		if err := s.dec.Decode(&skip); err != nil {
			return err
		}
	}
	return fmt.Errorf("result envelope has no results field")
}

// Close releases the underlying stream.
func (s *ResultStream) Close() error {
	return s.rc.Close()
}
