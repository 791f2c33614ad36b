// Command clinsup keeps clinical supervision form drafts per user and
// exports them as PDF.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeptools/clinsup/conf"
	"github.com/zeptools/clinsup/drafts"
	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/session"
)

const userEnv = "CLINSUP_USER"

type options struct {
	root string
	user string
	yes  bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "clinsup",
		Short: "Clinical supervision form drafts and PDF export",
		Long: `clinsup keeps clinical supervision form drafts per user in a local
key-value store and renders them as print-ready PDF documents.

Configuration is read from <root>/config:
  .core.json            app name, debug, default user, document title
  .kv-databases.json    storage backend (sqlite | memory | redis)
  .storage-crypto.json  optional key for encrypting stored values
  .renderer.json        paper, margin, rasterizer (text | rod), output dir`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&o.root, "root", "r", ".", "Application root holding config/ and data/")
	rootCmd.PersistentFlags().StringVarP(&o.user, "user", "u", "", "User name (or set "+userEnv+" env)")
	rootCmd.PersistentFlags().BoolVarP(&o.yes, "yes", "y", false, "Discard unsaved changes without asking")

	rootCmd.AddCommand(newUsersCmd(o))
	rootCmd.AddCommand(newDraftsCmd(o))
	rootCmd.AddCommand(newExportCmd(o))
	rootCmd.AddCommand(newBlankCmd(o))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		for _, n := range notify.All(err) {
			fmt.Fprintln(os.Stderr, n.Message)
		}
		os.Exit(1)
	}
}

// app is one command's wiring: the core and, for user commands, the session
type app struct {
	core    *conf.Core
	sess    *session.Session
	out     io.Writer
	cancel  context.CancelFunc
	started bool
}

func (o *options) confirmer(cmd *cobra.Command) drafts.Confirmer {
	if o.yes {
		return drafts.AlwaysDiscard
	}
	in := bufio.NewReader(cmd.InOrStdin())
	return drafts.ConfirmFunc(func(context.Context, *session.Session) bool {
		fmt.Fprint(cmd.OutOrStdout(), "You have unsaved changes. Discard them? [y/N] ")
		line, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

// open wires the core and, when withSession is set, opens the user's session
func (o *options) open(cmd *cobra.Command, withSession bool) (*app, error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	a := &app{core: &conf.Core{}, out: cmd.OutOrStdout(), cancel: cancel}
	c := a.core
	err := c.BaseInit(o.root, ctx, cancel)
	if err == nil {
		err = c.PrepareKVDatabase()
	}
	if err == nil {
		err = c.PrepareStore()
	}
	if err == nil {
		err = c.PrepareDrafts(o.confirmer(cmd), notify.Writer{Out: a.out})
	}
	if err == nil {
		c.PrepareDebouncer()
		err = c.PrepareRenderer()
	}
	if err == nil {
		err = c.StartServices()
		a.started = err == nil
	}
	if err != nil {
		a.close()
		return nil, err
	}
	if !withSession {
		return a, nil
	}
	user := firstNonEmpty(o.user, os.Getenv(userEnv), c.DefaultUser)
	if user == "" {
		a.close()
		return nil, errors.New("no user given: pass --user or set " + userEnv)
	}
	if a.sess, err = c.Drafts.Open(ctx, user); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close flushes pending autosaves and releases resources
func (a *app) close() {
	c := a.core
	if a.started {
		c.StopServices()
		if err := c.WaitServicesDone(); err != nil && c.Logger != nil {
			c.Logger.Sugar().Warnw("service stopped with error", "error", err)
		}
	}
	if c.Logger != nil {
		c.ResourceCleanUp()
	}
	a.cancel()
}

func (a *app) ctx() context.Context { return a.core.RootCtx }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
