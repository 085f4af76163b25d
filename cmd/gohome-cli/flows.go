package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-tfiac/internal/api"
	"github.com/joshp123/gohome-tfiac/internal/flow"
)

var setupCmd = &cobra.Command{
	Use:     "setup <domain>",
	Short:   "Add a device by running the integration's setup flow",
	Example: "  gohome-cli setup tfiac --set host=192.168.1.40",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, api.StartFlowRequest{Domain: args[0], Source: flow.SourceUser})
	},
}

var reconfigureCmd = &cobra.Command{
	Use:     "reconfigure <entry>",
	Short:   "Point an existing entry at a new host",
	Example: "  gohome-cli reconfigure \"Living Room\" --set host=192.168.1.41",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntryFlow(cmd, args[0], flow.SourceReconfigure)
	},
}

var optionsCmd = &cobra.Command{
	Use:     "options <entry>",
	Short:   "Edit an entry's host and friendly name",
	Example: "  gohome-cli options \"Living Room\" --set friendly_name=Lounge",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntryFlow(cmd, args[0], flow.SourceOptions)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{setupCmd, reconfigureCmd, optionsCmd} {
		cmd.Flags().StringArray("set", nil, "form input as key=value (repeatable)")
	}
}

func runEntryFlow(cmd *cobra.Command, input string, source flow.Source) error {
	s, err := dial(cmd)
	if err != nil {
		return err
	}
	entry, err := resolveEntry(s, input)
	s.Close()
	if err != nil {
		return err
	}
	return runFlow(cmd, api.StartFlowRequest{Domain: entry.Domain, Source: source, EntryID: entry.EntryID})
}

// runFlow starts a flow and submits the --set input to its first form.
// A form that comes back with errors is aborted so it does not linger.
func runFlow(cmd *cobra.Command, start api.StartFlowRequest) error {
	input, err := parseInput(cmd)
	if err != nil {
		return err
	}

	s, err := dial(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	started, err := call[api.FlowResponse](s, api.EntriesServiceName, "StartFlow", &start)
	if err != nil {
		return fmt.Errorf("start flow: %w", err)
	}
	res := started.Result
	if res.Type == flow.ResultForm {
		configured, err := call[api.FlowResponse](s, api.EntriesServiceName, "ConfigureFlow", &api.ConfigureFlowRequest{
			FlowID: res.FlowID,
			Input:  input,
		})
		if err != nil {
			return fmt.Errorf("configure flow: %w", err)
		}
		res = configured.Result
	}

	if out.json {
		if err := out.printJSON(res); err != nil {
			return err
		}
	}

	switch res.Type {
	case flow.ResultCreateEntry:
		if !out.json {
			if res.EntryID != "" {
				fmt.Printf("created %s (%s)\n", res.Title, res.EntryID)
			} else {
				fmt.Println("options saved")
			}
		}
		return nil
	case flow.ResultAbort:
		if res.Reason == flow.ReasonReconfigureSuccessful {
			if !out.json {
				fmt.Println("reconfigured")
			}
			return nil
		}
		return fmt.Errorf("flow aborted: %s", res.Reason)
	default:
		_, _ = call[api.AbortFlowResponse](s, api.EntriesServiceName, "AbortFlow", &api.AbortFlowRequest{FlowID: res.FlowID})
		return fmt.Errorf("step %s needs input: %s", res.StepID, describeForm(res))
	}
}

func parseInput(cmd *cobra.Command) (map[string]string, error) {
	pairs, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return nil, err
	}
	input := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--set %q: want key=value", pair)
		}
		input[strings.TrimSpace(key)] = value
	}
	return input, nil
}

func describeForm(res flow.Result) string {
	var parts []string
	for _, f := range res.Schema {
		part := f.Key
		if f.Required {
			part += " (required)"
		}
		if f.Default != "" {
			part += " [" + f.Default + "]"
		}
		parts = append(parts, part)
	}
	keys := make([]string, 0, len(res.Errors))
	for key := range res.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, "error "+key+": "+res.Errors[key])
	}
	return strings.Join(parts, ", ")
}
