package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/render"
)

func newExportCmd(o *options) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the current draft as a filled PDF",
		Long: `Validate the current draft and render every section the review type
shows into a PDF. A section that cannot be captured is replaced by an
error placeholder; the rest of the document is still produced.`,
		Args: cobra.NoArgs,
		RunE: withSession(o, func(a *app, _ []string) error {
			doc, err := a.core.Renderer.Filled(a.ctx(), a.sess)
			if err != nil {
				return err
			}
			for _, f := range doc.Failures {
				a.core.Drafts.Notify(notify.FromError(f))
			}
			return save(a, doc, outDir, "PDF generated successfully")
		}),
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: renderer out_dir)")
	return cmd
}

func newBlankCmd(o *options) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "blank",
		Short: "Render the blank printable template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.open(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()
			doc, err := a.core.Renderer.Blank(a.ctx())
			if err != nil {
				return err
			}
			return save(a, doc, outDir, "Blank PDF template generated successfully")
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: renderer out_dir)")
	return cmd
}

func save(a *app, doc *render.Document, outDir, message string) error {
	if outDir == "" {
		outDir = a.core.OutDir()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	path, err := doc.Save(outDir)
	if err != nil {
		return err
	}
	notify.Writer{Out: a.out}.Notify(notify.Infof("%s: %s", message, path))
	return nil
}
