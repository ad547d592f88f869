package lbus

import (
	"context"
	"errors"
	"net"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handler is the register file behind a Server.
type Handler interface {
	ReadRegister(addr uint32) uint32
	WriteRegister(addr uint32, value uint32)
}

// Server answers lbus requests on a UDP socket. Transactions of a packet are
// applied in record order and one packet is served at a time.
type Server struct {
	Addr    string
	Handler Handler

	mu   sync.Mutex
	conn net.PacketConn
}

// Listen binds the UDP socket.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", s.Addr)
	}
	s.conn = conn
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// ListenAndServe binds the socket and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve answers requests until ctx is done. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	logrus.Infof("lbus server listening on %s", conn.LocalAddr().String())

	buf := make([]byte, 2048)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return pkgerrors.Wrap(err, "failed to read request")
		}

		reply, err := s.handle(buf[:n])
		if err != nil {
			logrus.WithError(err).WithField("peer", peer.String()).Debug("dropping request")
			continue
		}

		if _, err := conn.WriteTo(reply, peer); err != nil {
			logrus.WithError(err).WithField("peer", peer.String()).Warn("failed to send reply")
		}
	}
}

func (s *Server) handle(b []byte) ([]byte, error) {
	p := &Packet{}
	if err := p.Unmarshal(b); err != nil {
		return nil, err
	}
	if len(p.Ops) == 0 {
		return nil, pkgerrors.Wrap(ErrMalformedPacket, "no records")
	}

	for i, op := range p.Ops {
		if op.Read {
			p.Ops[i].Data = s.Handler.ReadRegister(op.Addr)
			continue
		}
		s.Handler.WriteRegister(op.Addr, op.Data)
	}
	return p.Marshal(), nil
}
