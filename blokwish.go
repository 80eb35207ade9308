// Package blokwish serves blokfall games over ssh and http, one game per
// connected player.
package blokwish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/ghthor/blokwish/blokfall"
	"github.com/ghthor/blokwish/bubbles/playfield"
	"github.com/ghthor/blokwish/journal"
	"github.com/ghthor/blokwish/tshelper"
	"github.com/ghthor/blokwish/tstea"
	"github.com/ghthor/gotty/v2/server"
	"github.com/ghthor/gotty/v2/utils"
	"golang.org/x/sync/errgroup"
)

// Games creates the game played by each session.
type Games struct {
	Options []blokfall.Option

	// Journal is optional.
	Journal *journal.Recorder
}

var _ tstea.NewModel = Games{}.NewModel

func (g Games) NewModel(ctx context.Context, sess tstea.Session, player string) (tea.Model, error) {
	m, err := playfield.New(player, g.Options...)
	if err != nil {
		return nil, err
	}
	detach := func() {}
	if g.Journal != nil {
		detach = g.Journal.Attach(player, m.Game())
	}

	log.Info("session started", "player", player, "remote", sess.RemoteAddr().String())
	context.AfterFunc(ctx, func() {
		detach()
		m.Close()
		log.Info("session ended", "player", player, "cause", context.Cause(ctx))
	})
	return m, nil
}

func NewSSHServer(ctx context.Context, identify tshelper.Identify, games Games, hostKeyPath string) (*ssh.Server, error) {
	s, err := wish.NewServer(
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			tstea.WishMiddleware(ctx, identify, games.NewModel, tstea.NewProgram),
			logging.Middleware(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create ssh server: %w", err)
	}
	return s, nil
}

func RunSSH(ctx context.Context, grp *errgroup.Group, cancel context.CancelCauseFunc, l net.Listener, s *ssh.Server) error {
	grp.Go(func() error {
		if err := s.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			cancel(err)
			return err
		}
		return nil
	})

	return nil
}

func ShutdownSSH(s *ssh.Server, timeout time.Duration) error {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		if errors.Is(err, context.DeadlineExceeded) {
			return s.Close()
		}
		return err
	}
	return nil
}

func HTTPOptions() (*server.Options, error) {
	opts := &server.Options{}
	if err := utils.ApplyDefaultValues(opts); err != nil {
		return nil, fmt.Errorf("gotty default options failure: %w", err)
	}
	opts.Preferences = &server.HtermPrefernces{}
	if err := utils.ApplyDefaultValues(opts.Preferences); err != nil {
		return nil, fmt.Errorf("gotty default hterm preferences failure: %w", err)
	}
	opts.Preferences.EnableWebGL = true
	opts.PermitWrite = true

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("gotty options validation failure: %w", err)
	}
	return opts, nil
}

func RunHTTP(ctx context.Context, grp *errgroup.Group, cancel context.CancelCauseFunc, l net.Listener, fact server.Factory) error {
	opts, err := HTTPOptions()
	if err != nil {
		return err
	}

	gottySrv, err := server.New(fact, opts)
	if err != nil {
		return fmt.Errorf("error creating gotty server: %w", err)
	}

	grp.Go(func() error {
		if serr := gottySrv.Run(ctx, server.WithListener(l)); serr != nil && !errors.Is(serr, context.Canceled) {
			cancel(serr)
			return serr
		}
		return nil
	})

	return nil
}
