package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cdp-inject/launcher/src/discovery"
)

const maxTitleWidth = 48

func newTargetsCommand() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the debug targets of a running application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port <= 0 || port > 65535 {
				return fmt.Errorf("--port must be between 1 and 65535, got %d", port)
			}
			base := "http://" + net.JoinHostPort(host, strconv.Itoa(port))
			client := &http.Client{Timeout: 5 * time.Second}
			targets, err := discovery.ListTargets(cmd.Context(), client, base)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintf(out, "No targets on %s\n", base)
				return nil
			}
			fmt.Fprintln(out, renderTargets(targets))
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host the debugger listens on")
	cmd.Flags().IntVar(&port, "port", 9222, "Debug port of the running application")
	return cmd
}

func renderTargets(targets []discovery.Target) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "ID", "Type", "Title", "WebSocket URL"})
	for i, t := range targets {
		tw.AppendRow(table.Row{i + 1, t.ID, t.Type, text.Trim(t.Title, maxTitleWidth), t.WebSocketDebuggerURL})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
