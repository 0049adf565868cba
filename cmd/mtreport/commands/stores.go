package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var storesRemote bool

func init() {
	storesListCmd.Flags().BoolVar(&storesRemote, "remote", false, "List the restaurants registered remotely instead.")
	storesCmd.AddCommand(storesListCmd, storesAddCmd)
	rootCmd.AddCommand(storesCmd)
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Inspects and registers stores.",
}

var storesListCmd = &cobra.Command{
	Use:   "list [--remote]",
	Short: "Lists the stores seen in crawled reports.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, storesRemote)
		if err != nil {
			return err
		}
		defer e.Close()

		t := newTable()
		if storesRemote {
			restaurants, err := e.remote.Restaurants(ctx)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Org code", "Name", "Id"})
			for _, r := range restaurants {
				t.AppendRow(table.Row{r.OrgCode, r.Name, r.ID})
			}
			t.Render()
			return nil
		}

		stores, err := e.local.Stores(ctx)
		if err != nil {
			return err
		}
		t.AppendHeader(table.Row{"Org code", "Name", "Last seen"})
		for _, s := range stores {
			t.AppendRow(table.Row{s.OrgCode, s.Name, s.UpdatedAt.Format(time.DateTime)})
		}
		t.Render()
		return nil
	},
}

var storesAddCmd = &cobra.Command{
	Use:   "add <org code> <name>",
	Short: "Registers a store in the remote store so its records can be mirrored.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		id, err := e.remote.RegisterStore(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (%s) as %s\n", args[1], args[0], id)
		return nil
	},
}
