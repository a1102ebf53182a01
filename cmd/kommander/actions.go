package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

func newActionsCmd() *cobra.Command {
	var (
		encoding string
		asJSON   bool
		preview  string
	)

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the action catalog",
		Long: `List the actions accepted on the MQTT action topic and the HTTP API.

Examples:
  kommander actions
  kommander actions --json
  kommander actions --preview callPlan --option callPlan=3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := kommander.ParseToggleEncoding(encoding)
			if err != nil {
				return err
			}
			catalog := kommander.NewCatalog(enc)

			if preview != "" {
				opts, err := parseOptionFlags(cmd)
				if err != nil {
					return err
				}
				return writePreview(cmd.OutOrStdout(), catalog, preview, opts)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Actions())
			}
			return writeActionTable(cmd.OutOrStdout(), catalog)
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", string(kommander.ToggleImplicit), "toggle encoding (implicit or explicit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	cmd.Flags().StringVar(&preview, "preview", "", "print the command an action would send")
	cmd.Flags().StringArray("option", nil, "action option as key=value (repeatable, with --preview)")

	return cmd
}

// parseOptionFlags turns --option key=value pairs into action options.
// Values that parse as JSON (numbers, booleans) keep their type.
func parseOptionFlags(cmd *cobra.Command) (kommander.Options, error) {
	raw, err := cmd.Flags().GetStringArray("option")
	if err != nil {
		return nil, err
	}
	opts := make(kommander.Options, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("option %q: expected key=value", kv)
		}
		var typed any
		if json.Unmarshal([]byte(value), &typed) == nil {
			opts[key] = typed
		} else {
			opts[key] = value
		}
	}
	return opts, nil
}

func writePreview(w io.Writer, catalog *kommander.Catalog, id string, opts kommander.Options) error {
	cmd, err := catalog.Encode(id, opts)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeActionTable(w io.Writer, catalog *kommander.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOPTIONS")
	for _, a := range catalog.Actions() {
		names := make([]string, 0, len(a.Options))
		for _, o := range a.Options {
			names = append(names, o.ID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, strings.Join(names, ","))
	}
	return tw.Flush()
}
