package main

import (
	"context"
	"fmt"
	"time"

	grpcserver "github.com/and161185/worklog/internal/server/grpc"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
)

const callTimeout = 30 * time.Second

type app struct {
	conn connOptions
	tz   string
	now  func() time.Time
	dial func(o connOptions, bearer string) (*grpcserver.Client, func(), error)
}

func newApp() *app {
	return &app{now: time.Now, dial: dial}
}

func (a *app) location() (*time.Location, error) {
	if a.tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.tz)
	if err != nil {
		return nil, fmt.Errorf("--tz: %w", err)
	}
	return loc, nil
}

// call invokes method, attaching the saved token unless public is set.
func (a *app) call(cmd *cobra.Command, method string, fields map[string]any, public bool) (*structpb.Struct, error) {
	var bearer string
	if !public {
		s, err := loadSession(a.now())
		if err != nil {
			return nil, err
		}
		bearer = s.AccessToken
	}
	cl, closeFn, err := a.dial(a.conn, bearer)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return cl.Call(ctx, method, fields)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wl",
		Short:         "Worklog client: log daily work and review project attendance",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.conn.addr, "addr", "localhost:8443", "server address")
	pf.StringVar(&a.conn.caPath, "cacert", "", "CA certificate (PEM)")
	pf.BoolVar(&a.conn.insecure, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&a.conn.plaintext, "plaintext", false, "connect without TLS (dev)")
	pf.StringVar(&a.tz, "tz", "", "time zone for dates and times (default local)")

	root.AddCommand(
		registerCmd(a),
		loginCmd(a),
		projectCmd(a),
		memberCmd(a),
		logCmd(a),
		monthCmd(a),
		statsCmd(a),
		inviteCmd(a),
		inboxCmd(a),
		answerCmd(a),
	)
	return root
}
