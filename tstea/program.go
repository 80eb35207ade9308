// tstea serves bubbletea programs to ssh sessions through wish and to
// browsers through gotty, one program per connection.
package tstea

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/creack/pty"
	"github.com/ghthor/blokwish/ctxhelp"
	"github.com/ghthor/blokwish/tshelper"
	"github.com/ghthor/gotty/v2/server"
	"github.com/gorilla/websocket"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
)

type Session interface {
	RemoteAddr() net.Addr
}

// NewModel builds the model for one connection. It returns an error to refuse
// the session.
type NewModel func(ctx context.Context, sess Session, player string) (tea.Model, error)

type NewTeaProgram func(context.Context, tea.Model, ...tea.ProgramOption) *tea.Program

// NewProgram runs m until ctx is done.
func NewProgram(ctx context.Context, m tea.Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append(opts, tea.WithContext(ctx), tea.WithAltScreen())...)
}

func WishMiddleware(ctx context.Context, identify tshelper.Identify, newModel NewModel, newProg NewTeaProgram) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		player, err := identify(s.Context(), s.RemoteAddr().String())
		if err != nil {
			wish.Fatalln(s, "identify error: ", err)
			return nil
		}

		_, _, active := s.Pty()
		if !active {
			wish.Fatalln(s, "no active terminal, skipping")
			return nil
		}

		progCtx, cancel := ctxhelp.Join(ctx, s.Context())
		m, err := newModel(progCtx, s, player)
		if err != nil {
			cancel(err)
			wish.Fatalln(s, "failed to start game: ", err)
			return nil
		}
		return newProg(progCtx, m, bubbletea.MakeOptions(s)...)
	}
	return bubbletea.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}

type TeaTYFactory struct {
	ctx      context.Context
	identify tshelper.Identify

	newModel NewModel
	newProg  NewTeaProgram
}

func NewTeaTYFactory(ctx context.Context, identify tshelper.Identify, newModel NewModel, newProg NewTeaProgram) *TeaTYFactory {
	return &TeaTYFactory{
		ctx:      ctx,
		identify: identify,

		newModel: newModel,
		newProg:  newProg,
	}
}

var _ server.Factory = &TeaTYFactory{}

func (*TeaTYFactory) Name() string { return "TeaTYFactory" }

func (f *TeaTYFactory) New(ctx context.Context, params map[string][]string, conn *websocket.Conn) (server.Slave, error) {
	ctx, cancel := ctxhelp.Join(f.ctx, ctx)

	player, err := f.identify(ctx, conn.RemoteAddr().String())
	if err != nil {
		cancel(err)
		return nil, err
	}

	p, t, err := pty.Open()
	if err != nil {
		cancel(err)
		return nil, fmt.Errorf("failed to pty.Open(): %w", err)
	}

	m, err := f.newModel(ctx, conn, player)
	if err != nil {
		cancel(err)
		return nil, errors.Join(err, t.Close(), p.Close())
	}

	prog := f.newProg(ctx, m,
		tea.WithInput(t),
		tea.WithOutput(t),
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer func() {
			t.Close()
			p.Close()
			conn.Close()
			cancel(nil)
		}()

		_, err := prog.Run()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, tea.ErrProgramKilled) {
			cancel(err)
			return err
		}

		return nil
	})

	return &TeaTYProgram{
		ctx: grpCtx,
		pty: p,
		tty: t,

		grp:     grp,
		program: prog,
	}, nil
}

type TeaTYProgram struct {
	ctx context.Context

	pty, tty *os.File

	grp     *errgroup.Group
	program *tea.Program
}

var _ server.Slave = &TeaTYProgram{}

func (t *TeaTYProgram) Read(p []byte) (n int, err error) {
	return t.pty.Read(p)
}

func (t *TeaTYProgram) Write(p []byte) (n int, err error) {
	return t.pty.Write(p)
}

func (t *TeaTYProgram) Close() error {
	t.tty.Close()
	t.pty.Close()
	t.program.Quit()
	return t.grp.Wait()
}

func (t *TeaTYProgram) WindowTitleVariables() map[string]any {
	return map[string]any{"command": "blokwish"}
}

// ResizeTerminal retries because the browser may report a size before the
// pty is ready for it.
func (t *TeaTYProgram) ResizeTerminal(width, height int) error {
	size := &pty.Winsize{
		Cols: uint16(width),
		Rows: uint16(height),
	}
	_, err := backoff.Retry(t.ctx, func() (struct{}, error) {
		return struct{}{}, errors.Join(
			pty.Setsize(t.pty, size),
			pty.Setsize(t.tty, size),
		)
	},
		backoff.WithBackOff(ResizeBackOff()),
		backoff.WithMaxElapsedTime(2*time.Second),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Warn("pty resize", "error", err, "retrying", d)
		}),
	)
	if err != nil {
		log.Warn("pty resize retry exhausted", "error", err)
		return err
	}
	t.program.Send(tea.WindowSizeMsg{
		Width:  width,
		Height: height,
	})
	return nil
}

func ResizeBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.0,
		Multiplier:          1.1,
		MaxInterval:         500 * time.Millisecond,
	}
}
