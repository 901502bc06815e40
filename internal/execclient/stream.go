package execclient

import (
	"context"
	"errors"
	"io"
	"sync"

	"pkt.systems/forgecode/internal/stream"
)

// Stream is the output of one execution.
type Stream struct {
	sessionGone bool
	synthetic   []string

	reader *stream.Reader
	body   io.ReadCloser

	closeOnce sync.Once
}

func syntheticStream(sessionGone bool, line string) *Stream {
	return &Stream{sessionGone: sessionGone, synthetic: []string{line}}
}

func newBodyStream(body io.ReadCloser) *Stream {
	return &Stream{reader: stream.NewReader(body), body: body}
}

// Next returns the next output record, or io.EOF once the stream is done.
// A canceled context ends the stream with the context error.
func (s *Stream) Next(ctx context.Context) (string, error) {
	if len(s.synthetic) > 0 {
		line := s.synthetic[0]
		s.synthetic = s.synthetic[1:]
		return line, nil
	}
	if s.reader == nil {
		return "", io.EOF
	}
	record, err := s.reader.Next(ctx)
	if err != nil {
		_ = s.Close()
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, io.EOF) {
			return "", ctxErr
		}
		return "", err
	}
	return record, nil
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}

// SessionGone reports whether the backend no longer knows the session.
func (s *Stream) SessionGone() bool {
	return s.sessionGone
}
