// Copyright 2025 The PostureKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/service/objects"
)

// Config for the server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests (0 disables the SSH UI)
	SSHPort int
	// Path of the SSH host key
	HostKeyPath string
}

// API exposed by the worker to the server.
type API interface {
	// Actuals returns the actual state of all configured objects.
	Actuals() []objects.ActualState
	// Trigger injects a command as if it was received on the serial
	// channel. Returns false when no worker is running.
	Trigger(command, source string) bool
}

// UI serves the terminal UI on incoming SSH sessions.
type UI interface {
	Handler(s ssh.Session) (tea.Model, []tea.ProgramOption)
}

// Server runs the HTTP and SSH servers for the service.
type Server struct {
	Config
	log zerolog.Logger
	api API
	ui  UI
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, api API, ui UI) (*Server, error) {
	return &Server{
		Config: cfg,
		log:    log.With().Str("component", "server").Logger(),
		api:    api,
		ui:     ui,
	}, nil
}

type triggerRequest struct {
	Command string `json:"command"`
}

// Run the server until the given context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log

	// Prepare HTTP server
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return maskAny(err)
	}
	httpRouter := echo.New()
	httpRouter.HideBanner = true
	httpRouter.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/api/objects", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.api.Actuals())
	})
	httpRouter.POST("/api/trigger", func(c echo.Context) error {
		var req triggerRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if req.Command == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "command is empty")
		}
		if !s.api.Trigger(req.Command, "http") {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no worker running")
		}
		return c.NoContent(http.StatusAccepted)
	})
	httpSrv := http.Server{
		Handler: httpRouter,
	}

	// Prepare SSH server
	var sshServer *ssh.Server
	if s.SSHPort != 0 {
		sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
		sshServer, err = wish.NewServer(
			wish.WithAddress(sshAddr),
			wish.WithHostKeyPath(s.HostKeyPath),
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui.Handler),
				// The last item in the chain is the first to be called.
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			return fmt.Errorf("could not start SSH server: %w", err)
		}
	}

	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to serve HTTP server")
		}
	}()
	if sshServer != nil {
		log.Debug().Int("port", s.SSHPort).Msg("Serving SSH")
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				log.Error().Err(err).Msg("failed to serve SSH server")
			}
		}()
	}

	// Wait until context closed
	<-ctx.Done()

	log.Info().Msg("Closing servers")
	httpSrv.Shutdown(context.Background())
	if sshServer != nil {
		sshServer.Shutdown(context.Background())
	}
	return nil
}
