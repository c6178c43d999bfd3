package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Inspect regional building code tables",
	}
	cmd.AddCommand(newCodesListCmd())
	cmd.AddCommand(newCodesShowCmd())
	return cmd
}

func newCodesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available region/building-type tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			reg, err := a.registry()
			if err != nil {
				return err
			}
			keys := reg.Keys()
			if a.json {
				return printJSON(cmd.OutOrStdout(), keys)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Region", "Building type", "Requirements"})
			for _, k := range keys {
				t, _ := reg.Lookup(k.Region, k.BuildingType)
				tw.AppendRow(table.Row{k.Region, k.BuildingType, len(t.Requirements)})
			}
			tw.Render()
			return nil
		},
	}
}

func newCodesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <region> [building-type]",
		Short: "Show the requirements of one table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCodes(cmd, args)
		},
	}
}

func showCodes(cmd *cobra.Command, args []string) error {
	a := appFromContext(cmd.Context())
	reg, err := a.registry()
	if err != nil {
		return err
	}
	bt := a.cfg.BuildingType
	if len(args) == 2 {
		bt = args[1]
	}
	t, ok := reg.Lookup(args[0], bt)
	if !ok {
		return exitError(exitInput, "no code table for %s/%s", args[0], bt)
	}
	if a.json {
		return printJSON(cmd.OutOrStdout(), t)
	}
	loggerFromContext(cmd.Context()).Debug("showing code table", "region", t.Region, "building_type", t.BuildingType)

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetTitle(fmt.Sprintf("%s / %s", t.Region, t.BuildingType))
	tw.AppendHeader(table.Row{"Code", "Name", "Min", "Max", "Unit", "Mandatory"})
	for _, r := range t.Requirements {
		tw.AppendRow(table.Row{r.Code, r.Name, bound(r.Min), bound(r.Max), r.Unit, r.Mandatory})
	}
	tw.Render()
	return nil
}

func bound(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
