package sqlwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/tuannm99/tinyrdb/internal/engine"
)

// Server serves one shared database to any number of connections. The
// database's own lock serializes writers.
type Server struct {
	db *engine.Database

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(db *engine.Database) *Server {
	return &Server{db: db, conns: make(map[net.Conn]struct{})}
}

// Run listens on addr and serves until ctx is done.
func Run(ctx context.Context, addr string, db *engine.Database) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("sqlwire: listening", "addr", ln.Addr().String(), "workdir", db.Dir())
	return NewServer(db).Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every open
// connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}
			slog.Warn("sqlwire: accept", "err", err)
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	slog.Debug("sqlwire: client connected", "remote", remote)
	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("sqlwire: read request", "remote", remote, "err", err)
			}
			return
		}
		if err := WriteFrame(conn, s.handle(&req)); err != nil {
			slog.Debug("sqlwire: write response", "remote", remote, "err", err)
			return
		}
	}
}

func (s *Server) handle(req *Request) *Response {
	resp := &Response{ID: req.ID}
	switch req.Op {
	case "", OpExecute:
		resp.Result = s.db.Execute(req.SQL)
	case OpTables:
		resp.Tables = s.db.ListTables()
	case OpTableInfo:
		info, err := s.db.GetTableInfo(req.Table)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Info = info
	case OpRows:
		resp.Result = s.db.GetRows(req.Table, req.Limit, req.Offset, req.OrderBy, req.OrderDir)
	case OpInsert:
		resp.Result = s.db.InsertRow(req.Table, req.Data)
	case OpUpdate:
		resp.Result = s.db.UpdateRow(req.Table, req.RowID, req.Data)
	case OpDelete:
		resp.Result = s.db.DeleteRow(req.Table, req.RowID)
	case OpDrop:
		resp.Result = s.db.DropTable(req.Table)
	case OpReset:
		if err := s.db.Reset(); err != nil {
			resp.Error = err.Error()
		}
	case OpStats:
		st, err := s.db.Stats()
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Stats = &st
	default:
		resp.Error = fmt.Sprintf("sqlwire: unknown op %q", req.Op)
	}
	return resp
}
