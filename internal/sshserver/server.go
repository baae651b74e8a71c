// Package sshserver exposes the terminal UI over SSH. Access is restricted
// to keys registered in the ssh_users table.
package sshserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"backtestgpt/internal/repository"
	"backtestgpt/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
)

const sshUserContextKey = "backtestgpt-ssh-user"

// UserAuthenticator resolves public key fingerprints to registered users.
type UserAuthenticator interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*repository.SSHUser, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
}

// Config carries listener settings for the SSH server.
type Config struct {
	Bind        string
	Port        int
	HostKeyPath string
}

// Server wraps a wish SSH server that drops authenticated users into the TUI.
type Server struct {
	tracer trace.Tracer
	users  UserAuthenticator
	chat   tui.TurnQuerier
	runs   tui.RunQuerier
	cat    tui.CatalogQuerier
	srv    *ssh.Server
}

// New builds the SSH server. The chat, runs and catalog collaborators are
// handed to each session's TUI.
func New(tracer trace.Tracer, users UserAuthenticator, chat tui.TurnQuerier, runs tui.RunQuerier, cat tui.CatalogQuerier, cfg Config) (*Server, error) {
	s := &Server{
		tracer: tracer,
		users:  users,
		chat:   chat,
		runs:   runs,
		cat:    cat,
	}

	srv, err := wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.Port))),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithPublicKeyAuth(s.authorize),
		wish.WithMiddleware(
			bm.Middleware(s.teaHandler),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	)
	if err != nil {
		return nil, err
	}

	s.srv = srv
	return s, nil
}

// Start serves SSH sessions until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != ssh.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// authorize accepts a connection only when the key's SHA256 fingerprint
// belongs to an active registered user. The user is stashed on the session
// context for the TUI handler.
func (s *Server) authorize(ctx ssh.Context, key ssh.PublicKey) bool {
	spanCtx, span := s.tracer.Start(ctx, "sshserver.authorize")
	defer span.End()

	if s.users == nil {
		return false
	}

	fingerprint := gossh.FingerprintSHA256(key)
	user, err := s.users.FindByFingerprint(spanCtx, fingerprint)
	if err != nil {
		log.Printf("ssh auth lookup failed for %s: %v", fingerprint, err)
		return false
	}
	if user == nil {
		log.Printf("ssh auth rejected unknown fingerprint %s", fingerprint)
		return false
	}

	if err := s.users.UpdateLastLogin(spanCtx, user.ID); err != nil {
		log.Printf("ssh last-login update failed for %s: %v", user.Username, err)
	}

	ctx.SetValue(sshUserContextKey, user)
	return true
}

func (s *Server) teaHandler(session ssh.Session) (tea.Model, []tea.ProgramOption) {
	user, ok := session.Context().Value(sshUserContextKey).(*repository.SSHUser)
	if !ok || user == nil {
		// PublicKeyAuth ran before the session, so this is unreachable
		// short of a misconfigured middleware chain.
		return nil, nil
	}

	svc := tui.Services{
		Chat:     s.chat,
		Runs:     s.runs,
		Catalog:  s.cat,
		UserID:   user.ID,
		Username: user.Username,
	}

	return tui.NewAppModel(svc), []tea.ProgramOption{tea.WithAltScreen()}
}
