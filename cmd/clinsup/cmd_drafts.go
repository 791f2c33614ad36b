package main

import (
	"fmt"
	"image"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zeptools/clinsup/drafts"
	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/notify"
)

func newDraftsCmd(o *options) *cobra.Command {
	draftsCmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage the current user's form drafts",
	}
	draftsCmd.AddCommand(
		newDraftsListCmd(o),
		newDraftsNewCmd(o),
		newDraftsShowCmd(o),
		newDraftsLoadCmd(o),
		newDraftsSetCmd(o),
		newDraftsSignCmd(o),
		newDraftsToggleCmd(o),
		newDraftsSaveCmd(o),
		newDraftsDuplicateCmd(o),
		newDraftsDeleteCmd(o),
		newDraftsClearCmd(o),
		newDraftsReconcileCmd(o),
	)
	return draftsCmd
}

// withSession runs fn with the user's session open and closes it afterwards
func withSession(o *options, fn func(a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.open(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, args)
	}
}

func newDraftsListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts, most recently saved first",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			list, err := a.core.Drafts.ListDrafts(a.ctx(), a.sess)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tSUPERVISOR\tSTAFF\tDATE\tREVIEW\tLAST SAVED")
			for _, m := range list {
				mark := ""
				if m.ID == a.sess.CurrentID {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					mark, m.ID, m.SupervisorName, m.StaffName, m.Date, m.ReviewType, m.LastSaved)
			}
			return w.Flush()
		}),
	}
}

func newDraftsNewCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new draft and make it current",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			id, err := a.core.Drafts.CreateDraft(a.ctx(), a.sess)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		}),
	}
}

func newDraftsShowCmd(o *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved draft (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			id := a.sess.CurrentID
			if len(args) == 1 {
				id = args[0]
			}
			snap, err := a.core.Drafts.Snapshot(a.ctx(), a.sess, id)
			if err != nil {
				return err
			}
			if raw {
				s, err := form.EncodeSnapshot(snap)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, s)
				return nil
			}
			printSnapshot(a, id, snap)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&raw, "json", false, "Print the stored JSON snapshot")
	return cmd
}

func printSnapshot(a *app, id string, snap *form.Snapshot) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "draft\t%s\n", id)
	if !snap.LastSaved.IsZero() {
		fmt.Fprintf(w, "last saved\t%s\n", snap.LastSaved.Format(form.LastSavedLayout))
	}
	for _, key := range a.sess.Form.Keys() {
		v, ok := snap.Fields[key]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%v\n", key, v)
	}
	fmt.Fprintf(w, "expanded\t%s\n", strings.Join(snap.ExpandedSections, ", "))
	pads := make([]string, 0, len(snap.Signatures))
	for pad := range snap.Signatures {
		pads = append(pads, pad)
	}
	slices.Sort(pads)
	for _, pad := range pads {
		state := "blank"
		if snap.Signatures[pad] != "" {
			state = "signed"
		}
		fmt.Fprintf(w, "%s\t%s\n", pad, state)
	}
	_ = w.Flush()
}

func newDraftsLoadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Make a saved draft current",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			return a.core.Drafts.LoadDraft(a.ctx(), a.sess, args[0])
		}),
	}
}

func newDraftsSetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field>=<value>...",
		Short: "Edit fields of the current draft; changes are autosaved",
		Long: `Edit fields of the current draft. Checkboxes take true/false,
radio groups and selects take an option value. Edits go through the
autosave debouncer and are written before the command exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			saver := drafts.NewAutoSaver(a.ctx(), a.core.Drafts, a.sess, a.core.Debouncer)
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected field=value, got %q", arg)
				}
				acc, err := a.sess.Form.Field(key)
				if err != nil {
					return err
				}
				if acc.IsBool() {
					on, err := strconv.ParseBool(value)
					if err != nil {
						return fmt.Errorf("%s: %w", key, err)
					}
					err = saver.Check(key, on)
				} else {
					err = saver.Edit(key, value)
				}
				if err != nil {
					return err
				}
			}
			a.core.Debouncer.Flush()
			return nil
		}),
	}
}

func newDraftsSignCmd(o *options) *cobra.Command {
	var (
		width float32
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "sign <pad> [x,y ...]",
		Short: "Draw a stroke on a signature pad, or clear it",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			saver := drafts.NewAutoSaver(a.ctx(), a.core.Drafts, a.sess, a.core.Debouncer)
			pad := args[0]
			var err error
			if clear {
				err = saver.ClearSignature(pad)
			} else {
				var pts []image.Point
				if pts, err = parsePoints(args[1:]); err == nil {
					err = saver.Stroke(pad, width, pts...)
				}
			}
			if err != nil {
				return err
			}
			a.core.Debouncer.Flush()
			return nil
		}),
	}
	cmd.Flags().Float32Var(&width, "width", 2, "Stroke width in px")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the pad")
	return cmd
}

func parsePoints(args []string) ([]image.Point, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	pts := make([]image.Point, 0, len(args))
	for _, arg := range args {
		xs, ys, ok := strings.Cut(arg, ",")
		x, errX := strconv.Atoi(xs)
		y, errY := strconv.Atoi(ys)
		if !ok || errX != nil || errY != nil {
			return nil, fmt.Errorf("bad point %q, want x,y", arg)
		}
		pts = append(pts, image.Pt(x, y))
	}
	return pts, nil
}

func newDraftsToggleCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <section>",
		Short: "Expand or collapse a section",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			saver := drafts.NewAutoSaver(a.ctx(), a.core.Drafts, a.sess, a.core.Debouncer)
			if err := saver.Toggle(args[0]); err != nil {
				return err
			}
			a.core.Debouncer.Flush()
			st, _ := a.sess.Sections.State(args[0])
			fmt.Fprintf(a.out, "%s: %s\n", args[0], st)
			return nil
		}),
	}
}

func newDraftsSaveCmd(o *options) *cobra.Command {
	var asNew bool
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current draft",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			var (
				m   drafts.Meta
				err error
			)
			if asNew {
				m, err = a.core.Drafts.SaveAsNewDraft(a.ctx(), a.sess)
			} else {
				m, err = a.core.Drafts.SaveDraft(a.ctx(), a.sess, false)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, m.ID)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asNew, "as-new", false, "Save under a new id, leaving the current draft untouched")
	return cmd
}

func newDraftsDuplicateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a draft under a new id and load the copy",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			m, err := a.core.Drafts.DuplicateDraft(a.ctx(), a.sess, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, m.ID)
			return nil
		}),
	}
}

func newDraftsDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(o, func(a *app, args []string) error {
			return a.core.Drafts.DeleteDraft(a.ctx(), a.sess, args[0])
		}),
	}
}

func newDraftsClearCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the current draft and start a fresh one",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			return a.core.Drafts.ClearForm(a.ctx(), a.sess)
		}),
	}
}

func newDraftsReconcileCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild the draft list from the stored snapshots",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			added, removed, err := a.core.Drafts.Reconcile(a.ctx(), a.sess)
			if err != nil {
				return err
			}
			a.core.Drafts.Notify(notify.Infof("Draft list reconciled: %d added, %d removed", added, removed))
			return nil
		}),
	}
}
