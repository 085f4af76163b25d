package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-tfiac/internal/api"
	"github.com/joshp123/gohome-tfiac/internal/entries"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage config entries",
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List config entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		domain, _ := cmd.Flags().GetString("domain")

		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		resp, err := call[api.ListEntriesResponse](s, api.EntriesServiceName, "ListEntries", &api.ListEntriesRequest{Domain: domain})
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return out.print(resp, func() [][]string {
			rows := [][]string{{"ID", "DOMAIN", "TITLE", "HOST", "STATE", "REASON"}}
			for _, e := range resp.Entries {
				rows = append(rows, []string{
					e.EntryID,
					e.Domain,
					e.Title,
					entryHost(e),
					string(e.State),
					orDash(e.Reason),
				})
			}
			return rows
		})
	},
}

var entriesRemoveCmd = &cobra.Command{
	Use:   "remove <entry>",
	Short: "Unload and delete a config entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := resolveEntry(s, args[0])
		if err != nil {
			return err
		}
		if _, err := call[api.EntryResponse](s, api.EntriesServiceName, "RemoveEntry", &api.EntryRequest{EntryID: entry.EntryID}); err != nil {
			return fmt.Errorf("remove entry: %w", err)
		}
		fmt.Printf("removed %s (%s)\n", entry.Title, entry.EntryID)
		return nil
	},
}

var entriesReloadCmd = &cobra.Command{
	Use:   "reload <entry>",
	Short: "Unload and set up a config entry again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := resolveEntry(s, args[0])
		if err != nil {
			return err
		}
		resp, err := call[api.EntryResponse](s, api.EntriesServiceName, "ReloadEntry", &api.EntryRequest{EntryID: entry.EntryID})
		if err != nil {
			return fmt.Errorf("reload entry: %w", err)
		}
		if out.json {
			return out.printJSON(resp)
		}
		fmt.Printf("%s %s\n", entry.EntryID, resp.Entry.State)
		return nil
	},
}

func init() {
	entriesListCmd.Flags().String("domain", "", "only list entries of this integration")
	entriesCmd.AddCommand(entriesListCmd, entriesRemoveCmd, entriesReloadCmd)
}

// entryHost mirrors the platform's rule: a non-empty options host wins.
func entryHost(e entries.Entry) string {
	if host := e.Options[entries.KeyHost]; host != "" {
		return host
	}
	return orDash(e.Data[entries.KeyHost])
}
