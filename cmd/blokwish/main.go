package main

// blokwish plays blokfall in the terminal, or serves it to many players at
// once over ssh (wish) and the browser (gotty), optionally on a tailnet.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ghthor/blokwish"
	"github.com/ghthor/blokwish/blokfall"
	"github.com/ghthor/blokwish/bubbles/playfield"
	"github.com/ghthor/blokwish/journal"
	"github.com/ghthor/blokwish/tshelper"
	"github.com/ghthor/blokwish/tstea"
	"golang.org/x/sync/errgroup"
)

var (
	sshPort     int    = 23234
	httpPort    int    = 28080
	host        string = "localhost"
	hostname    string = "blokwish"
	hostKeyPath string = ".ssh/id_ed25519"
	useTS       bool
	local       bool
)

var (
	rows        int           = blokfall.DefaultRows
	cols        int           = blokfall.DefaultCols
	tick        time.Duration = blokfall.LoopTime
	journalPath string
	history     int
	debug       bool
)

func init() {
	switch os.Getenv("BLOKWISH_LOG_FORMAT") {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	}
}

func main() {
	flag.IntVar(&sshPort, "ssh-port", sshPort, "port for ssh listener")
	flag.IntVar(&httpPort, "http-port", httpPort, "port for http listener")
	flag.StringVar(&host, "host", host, "address to listen on without tailscale")
	flag.StringVar(&hostname, "hostname", hostname, "tailscale device hostname")
	flag.StringVar(&hostKeyPath, "host-key", hostKeyPath, "ssh host key path, created if missing")
	flag.BoolVar(&useTS, "tailscale", false, "listen on a tailnet and identify players by login")
	flag.BoolVar(&local, "local", false, "play in this terminal instead of serving")
	flag.IntVar(&rows, "rows", rows, "grid rows")
	flag.IntVar(&cols, "cols", cols, "grid columns")
	flag.DurationVar(&tick, "tick", tick, "gravity interval")
	flag.StringVar(&journalPath, "journal", "", "sqlite file to journal games to")
	flag.IntVar(&history, "history", 0, "print the newest N journal records and exit")
	flag.BoolVar(&debug, "debug", false, "debug logging")

	flag.Parse()

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	rootCtx := ctx

	ctx, sigCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	var err error
	switch {
	case history > 0:
		err = printHistory(ctx)
	case local:
		err = playLocal(ctx)
	default:
		err = serve(ctx, cancel)
	}
	if err != nil {
		log.Fatal("blokwish", "error", err)
	}

	if err = context.Cause(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("blokwish", "error", err)
	}
}

func gameOptions(logger *log.Logger) []blokfall.Option {
	return []blokfall.Option{
		blokfall.WithSize(rows, cols),
		blokfall.WithInterval(tick),
		blokfall.WithLogger(logger),
	}
}

func openJournal(ctx context.Context) (*journal.Store, error) {
	if journalPath == "" {
		return nil, nil
	}
	store, err := journal.Open(ctx, journalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", journalPath, err)
	}
	return store, nil
}

func printHistory(ctx context.Context) error {
	if journalPath == "" {
		return errors.New("-history requires -journal")
	}
	store, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(ctx, history)
	if err != nil {
		return err
	}
	fmt.Println(journal.Table(recs))
	return nil
}

func playLocal(ctx context.Context) error {
	// the terminal belongs to the game, keep logs out of it
	logger := log.New(io.Discard)
	if debug {
		f, err := os.OpenFile("blokwish-debug.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		defer f.Close()
		logger = log.NewWithOptions(f, log.Options{Level: log.DebugLevel, ReportTimestamp: true})
	}
	log.SetDefault(logger)

	player := os.Getenv("USER")
	m, err := playfield.New(player, gameOptions(logger)...)
	if err != nil {
		return err
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	store, err := openJournal(ctx)
	if err != nil {
		return err
	}
	var rec *journal.Recorder
	if store != nil {
		defer store.Close()
		// saving outlives an interrupt, Close ends it
		recCtx := context.WithoutCancel(ctx)
		rec = journal.NewRecorder(recCtx, store, logger)
		rec.Attach(player, m.Game())
		grp.Go(func() error { return rec.Run(recCtx) })
	}

	_, err = tstea.NewProgram(grpCtx, m).Run()
	if rec != nil {
		rec.Close()
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Join(err, grp.Wait())
	}
	return grp.Wait()
}

func serve(ctx context.Context, cancel context.CancelCauseFunc) error {
	var (
		l   tshelper.Listeners
		err error
	)
	if useTS {
		l, err = tshelper.NewListeners(hostname, sshPort, httpPort)
	} else {
		l, err = tshelper.NewTCPListeners(host, sshPort, httpPort)
	}
	if err != nil {
		return fmt.Errorf("listeners: %w", err)
	}
	defer l.Close()

	grp, grpCtx := errgroup.WithContext(ctx)

	games := blokwish.Games{Options: gameOptions(log.Default())}

	store, err := openJournal(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		recCtx := context.WithoutCancel(ctx)
		games.Journal = journal.NewRecorder(recCtx, store, log.Default())
		defer games.Journal.Close()
		grp.Go(func() error { return games.Journal.Run(recCtx) })
	}

	s, err := blokwish.NewSSHServer(ctx, l.Identify, games, hostKeyPath)
	if err != nil {
		return err
	}

	addr := host
	if useTS {
		tsIPv4, _, err := l.WaitForTailscaleIP(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for tailscale IP: %w", err)
		}
		addr = tsIPv4.String()
	}
	log.Info("Starting SSH server", "addr", net.JoinHostPort(addr, fmt.Sprint(sshPort)))
	log.Infof("Starting HTTP server http://%s", net.JoinHostPort(addr, fmt.Sprint(httpPort)))

	err = errors.Join(
		blokwish.RunSSH(grpCtx, grp, cancel, l.Ssh, s),
		blokwish.RunHTTP(grpCtx, grp, cancel, l.Http, tstea.NewTeaTYFactory(
			ctx, l.Identify, games.NewModel, tstea.NewProgram,
		)),
	)
	if err != nil {
		return fmt.Errorf("failed to start blokwish: %w", err)
	}

	<-grpCtx.Done()

	log.Info("Stopping SSH server")
	if err = blokwish.ShutdownSSH(s, 30*time.Second); err != nil {
		log.Error("Could not stop server", "error", err)
	}
	if games.Journal != nil {
		// sessions are gone, save what they left in the ring
		games.Journal.Close()
	}

	if err = grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error shutting down servers: %w", err)
	}
	return nil
}
