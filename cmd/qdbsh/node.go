package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	qdb "quasardb.net/database/qdbgo"
)

func (a *app) nodeCommand() *cobra.Command {
	var nodeURI string
	cmd := &cobra.Command{
		Use:       "node <status|config|topology>",
		Short:     "Print a JSON document served by a node",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"status", "config", "topology"},
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := qdb.ParseNodeDocument(args[0])
			if err != nil {
				return err
			}
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()
			uri := nodeURI
			if uri == "" {
				uri = a.cfg.ClusterURI
			}
			raw, err := h.NodeRaw(uri, doc)
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("node %v: %w", doc, err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(os.Stdout)
			return err
		},
	}
	cmd.Flags().StringVar(&nodeURI, "node", "", "node URI, defaults to the cluster URI")
	return cmd
}
