package tshelper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/charmbracelet/log"
	"tailscale.com/client/local"
	"tailscale.com/tsnet"
)

// Identify names the player connecting from remoteAddr.
type Identify func(ctx context.Context, remoteAddr string) (string, error)

type Listeners struct {
	ts *tsnet.Server

	Ssh, Http net.Listener

	// Client is nil unless the listeners are on a tailnet.
	Client *local.Client

	Identify Identify
}

// NewListeners joins the tailnet as hostname and listens there. Players are
// identified by their tailscale login name.
func NewListeners(hostname string, sshPort, httpPort int) (Listeners, error) {
	l := Listeners{}
	l.ts = new(tsnet.Server)
	l.ts.Hostname = hostname

	var err error
	l.Ssh, err = l.ts.Listen("tcp", net.JoinHostPort("", fmt.Sprint(sshPort)))
	if err != nil {
		return l, errors.Join(
			fmt.Errorf("failed to start ssh listener: %w", err),
			l.Close(),
		)
	}

	l.Http, err = l.ts.Listen("tcp", net.JoinHostPort("", fmt.Sprint(httpPort)))
	if err != nil {
		return l, errors.Join(
			fmt.Errorf("failed to start http listener: %w", err),
			l.Close(),
		)
	}

	l.Client, err = l.ts.LocalClient()
	if err != nil {
		return l, errors.Join(
			fmt.Errorf("failed to create tsnet LocalClient(): %w", err),
			l.Close(),
		)
	}
	l.Identify = WhoIs(l.Client)

	return l, nil
}

// NewTCPListeners listens on host without tailscale. Players are identified
// by their remote address.
func NewTCPListeners(host string, sshPort, httpPort int) (Listeners, error) {
	l := Listeners{Identify: RemoteHost}

	var err error
	l.Ssh, err = net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(sshPort)))
	if err != nil {
		return l, errors.Join(
			fmt.Errorf("failed to start ssh listener: %w", err),
			l.Close(),
		)
	}

	l.Http, err = net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(httpPort)))
	if err != nil {
		return l, errors.Join(
			fmt.Errorf("failed to start http listener: %w", err),
			l.Close(),
		)
	}

	return l, nil
}

func WhoIs(lc *local.Client) Identify {
	return func(ctx context.Context, remoteAddr string) (string, error) {
		who, err := lc.WhoIs(ctx, remoteAddr)
		if err != nil {
			return "", fmt.Errorf("tailscale WhoIs %s: %w", remoteAddr, err)
		}
		return who.UserProfile.LoginName, nil
	}
}

// RemoteHost names a player guest@host.
func RemoteHost(_ context.Context, remoteAddr string) (string, error) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return "", fmt.Errorf("invalid remote address %q: %w", remoteAddr, err)
	}
	return "guest@" + host, nil
}

// WaitForTailscaleIP blocks until the tailnet has assigned an address.
func (l Listeners) WaitForTailscaleIP(ctx context.Context) (v4, v6 netip.Addr, err error) {
	if l.ts == nil {
		return v4, v6, errors.New("listeners are not on a tailnet")
	}

	var (
		t    = time.NewTicker(time.Second)
		done = ctx.Done()
	)
	defer t.Stop()

	for {
		select {
		case <-done:
			return v4, v6, ctx.Err()

		case <-t.C:
			v4, v6 = l.ts.TailscaleIPs()
			if v4.IsValid() {
				return v4, v6, nil
			}
			log.Info("Waiting for tailscale IP")
		}
	}
}

func (l Listeners) Close() error {
	errs := make([]error, 0, 3)
	if l.Ssh != nil {
		errs = append(errs, l.Ssh.Close())
	}
	if l.Http != nil {
		errs = append(errs, l.Http.Close())
	}
	if l.ts != nil {
		errs = append(errs, l.ts.Close())
	}

	return errors.Join(errs...)
}
