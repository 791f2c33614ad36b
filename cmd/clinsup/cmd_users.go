package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with saved drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()
			users, err := a.core.Store.Users(a.ctx())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintln(a.out, u)
			}
			return nil
		},
	}
}
