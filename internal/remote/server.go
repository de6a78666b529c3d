package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/target"
)

// ValidateFunc checks source for backend.
type ValidateFunc func(ctx context.Context, backend, source string) (diagnostic string, failed bool, err error)

// DefaultReadTimeout bounds how long a client may take to send its request.
const DefaultReadTimeout = 30 * time.Second

// Server answers requests by running the local harness binary.
type Server struct {
	// HarnessPath is the composite harness executable.
	HarnessPath string

	// ReadTimeout bounds reading one request. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// Validate serves validation requests; nil rejects them.
	Validate ValidateFunc

	Logger *log.Logger
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// ListenAndServe listens on address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Each connection is
// handled on its own goroutine. Serve closes ln and waits for in-flight
// connections before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logf("listening on %s", ln.Addr())

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	// Unblock reads and writes when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	timeout := s.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		s.logf("%s: failed to set read deadline: %v", conn.RemoteAddr(), err)
		return
	}

	var req Request
	if err := protocol.NewDecoder(conn).Decode(&req); err != nil {
		s.logf("%s: failed to read request: %v", conn.RemoteAddr(), err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	// The harness run may outlast the read timeout.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		s.logf("%s: failed to clear read deadline: %v", conn.RemoteAddr(), err)
		return
	}

	resp := s.dispatch(ctx, req)
	if resp.Error != "" {
		s.logf("%s: %s", conn.RemoteAddr(), resp.Error)
	}
	if err := protocol.NewEncoder(conn).Encode(resp); err != nil {
		s.logf("%s: failed to write response: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch {
	case req.Run != nil:
		run, err := s.run(ctx, req.Run)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Run: run}
	case req.Validate != nil:
		if s.Validate == nil {
			return Response{Error: "validation is not supported by this server"}
		}
		diagnostic, failed, err := s.Validate(ctx, req.Validate.Backend, req.Validate.Source)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Validate: &ValidateResponse{Failed: failed, Diagnostic: diagnostic}}
	}
	return Response{Error: "empty request"}
}

func (s *Server) run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	configs, err := harness.ParseConfigIDs(req.Configs)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "diffharness-metadata-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to store metadata: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(req.Metadata); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to store metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to store metadata: %w", err)
	}

	inv := target.Invocation{Program: req.Program, MetadataPath: f.Name(), Configs: configs}
	s.logf("running %d configs", len(configs))

	code, lines, err := target.RunLocal(ctx, s.HarnessPath, inv, nil)
	if err != nil {
		return nil, err
	}
	return &RunResponse{ExitCode: code, Lines: lines}, nil
}
