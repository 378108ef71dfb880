package session

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dispatcher turns a decoded request into a response. Implemented by
// pkg/dispatch's handler table.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *wire.Request) *wire.Response
}

// Session runs the read→dispatch→write pipeline for one accepted
// connection. id correlates every log line this session emits across
// however many requests it serves, since one connection can carry many
// requests from the same peer.
type Session struct {
	conn       net.Conn
	dispatcher Dispatcher
	id         string
	logger     zerolog.Logger
}

// New wraps an accepted connection in a Session, tagging its logger
// with a fresh correlation id.
func New(conn net.Conn, d Dispatcher) *Session {
	id := uuid.NewString()
	return &Session{
		conn:       conn,
		dispatcher: d,
		id:         id,
		logger:     log.WithSession(id).With().Str("component", "session").Logger(),
	}
}

// Serve runs the pipeline until the peer closes the connection, a
// framing error makes it unrecoverable, or ctx is cancelled. It always
// closes conn before returning.
func (s *Session) Serve(ctx context.Context) {
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, ferr := s.readFrame()
		if ferr != nil {
			if !errors.Is(ferr, io.EOF) {
				s.logger.Debug().Err(ferr).Msg("session closed on framing error")
			}
			return
		}

		req, derr := wire.DecodeRequestBody(body)
		if derr != nil {
			// Malformed body but intact framing: respond bad_request
			// and keep serving subsequent requests (spec.md §7).
			if err := s.writeResponse(&wire.Response{Kind: wire.RespAck, Code: derr.Code}); err != nil {
				s.logger.Debug().Err(err).Msg("session closed on write error")
				return
			}
			continue
		}

		if !req.Credentials.Present {
			if triple, ok := fetchPeerCredentials(s.conn); ok {
				req.Credentials.Triple = triple
				req.Credentials.Present = true
			}
		}

		resp := s.dispatcher.Dispatch(ctx, req)
		if err := s.writeResponse(resp); err != nil {
			s.logger.Debug().Err(err).Msg("session closed on write error")
			return
		}
	}
}

// readFrame reads one framed message and returns its undecoded body.
// A malformed header cannot be recovered from (the expected body
// length itself is in doubt), so that case terminates the session.
func (s *Session) readFrame() ([]byte, error) {
	var hdr [wire.HeaderSize]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, err
	}

	bodyLen, err := wire.DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Session) writeResponse(resp *wire.Response) error {
	out := wire.EncodeResponse(resp)
	_, err := s.conn.Write(out)
	return err
}

func (s *Session) close() {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := s.conn.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
	_ = s.conn.Close()
}
