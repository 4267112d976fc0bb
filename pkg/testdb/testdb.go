// Package testdb starts throwaway in-memory MySQL servers for integration tests.
package testdb

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/server"
	"github.com/dolthub/go-mysql-server/sql"

	"dbautorest/pkg/logger"
)

// Server is an in-memory MySQL server speaking the wire protocol on localhost.
type Server struct {
	Server   *server.Server
	Engine   *sqle.Engine
	Provider *memory.DbProvider
	Database string
	Port     int
	cancel   context.CancelFunc
}

// Start creates a server hosting a single database and waits until it accepts connections.
func Start(ctx context.Context, database string) (*Server, error) {
	port, err := FreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to get free port: %w", err)
	}

	db := memory.NewDatabase(database)
	provider := memory.NewDBProvider(db)
	engine := sqle.NewDefault(provider)

	config := server.Config{
		Protocol: "tcp",
		Address:  fmt.Sprintf("localhost:%d", port),
	}
	s, err := server.NewServer(config, engine, sql.NewContext, memory.NewSessionBuilder(provider), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := s.Start(); err != nil {
			logger.Debugf("test mysql server on port %d stopped: %v", port, err)
		}
	}()
	go func() {
		<-serverCtx.Done()
		_ = s.Close()
	}()

	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readyCancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-readyCtx.Done():
			cancel()
			return nil, fmt.Errorf("test mysql server did not start: %w", readyCtx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", config.Address, 100*time.Millisecond)
			if err == nil {
				conn.Close()
				return &Server{
					Server:   s,
					Engine:   engine,
					Provider: provider,
					Database: database,
					Port:     port,
					cancel:   cancel,
				}, nil
			}
		}
	}
}

// DSN returns a go-sql-driver/mysql DSN for the hosted database.
func (s *Server) DSN() string {
	return fmt.Sprintf("root:@tcp(localhost:%d)/%s?parseTime=true&interpolateParams=true", s.Port, s.Database)
}

// Exec runs statements directly against the engine, bypassing the wire protocol.
func (s *Server) Exec(statements ...string) error {
	for _, stmt := range statements {
		session := memory.NewSession(sql.NewBaseSession(), s.Provider)
		ctx := sql.NewContext(context.Background(), sql.WithSession(session))
		ctx.SetCurrentDatabase(s.Database)

		_, iter, _, err := s.Engine.Query(ctx, stmt)
		if err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
		for {
			_, err := iter.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				iter.Close(ctx)
				return fmt.Errorf("exec %q: %w", stmt, err)
			}
		}
		if err := iter.Close(ctx); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Close shuts the server down. The listener is released asynchronously.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// FreePort finds an available TCP port.
func FreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
