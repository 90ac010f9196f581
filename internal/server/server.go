// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	pathpkg "path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options are the runtime settings of the HTTP server.
type Options struct {
	// Bind is the address to listen on. Defaults to the IPv6 loopback.
	Bind string

	// Port to listen on. Port 0 picks a free one.
	Port int

	// BasePath is the global path prefix under which everything is
	// served. Must match the base path the tenant registry was built
	// with.
	BasePath string
}

func (o *Options) addr() string {
	bind := o.Bind
	if bind == "" {
		bind = "::1"
	}
	return net.JoinHostPort(bind, strconv.Itoa(o.Port))
}

// Server serves the identity provider over HTTP.
type Server struct {
	registry *issuer.Registry
	opts     Options
}

// New creates a Server for the given tenants.
func New(registry *issuer.Registry, opts Options) *Server {
	return &Server{registry: registry, opts: opts}
}

// Router builds the HTTP handler: middleware stack plus all endpoints,
// mounted under the configured base path.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.StripSlashes,
		requestLogger,
		permissiveCORS,
	)

	handler := NewHandler(s.registry)

	base := pathpkg.Join("/", s.opts.BasePath)
	if base == "/" {
		handler.Routes(r)
	} else {
		r.Route(base, handler.Routes)
	}

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.addr(), err)
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("Listening on: %s", s.announceURL(listener.Addr()))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return group.Wait()
}

// announceURL is the URL the server is reachable under locally, including
// the base path. Announced once at startup.
func (s *Server) announceURL(addr net.Addr) string {
	url := "http://" + addr.String()
	if base := pathpkg.Join("/", s.opts.BasePath); base != "/" {
		url += base
	}
	return url
}
