package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-tfiac/internal/core"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List loaded plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		resp, err := call[core.ListPluginsResponse](s, core.RegistryServiceName, "ListPlugins", &core.ListPluginsRequest{})
		if err != nil {
			return fmt.Errorf("list plugins: %w", err)
		}
		return out.print(resp, func() [][]string {
			rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
			for _, p := range resp.Plugins {
				rows = append(rows, []string{p.PluginID, p.DisplayName, p.Version, p.Status})
			}
			return rows
		})
	},
}

var pluginsDescribeCmd = &cobra.Command{
	Use:   "describe <plugin_id>",
	Short: "Show a plugin's manifest, health, and agent notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		resp, err := call[core.DescribePluginResponse](s, core.RegistryServiceName, "DescribePlugin", &core.DescribePluginRequest{PluginID: args[0]})
		if err != nil {
			return fmt.Errorf("describe plugin: %w", err)
		}
		if out.json {
			return out.printJSON(resp)
		}

		p := resp.Plugin
		fmt.Printf("id: %s\n", p.PluginID)
		fmt.Printf("name: %s\n", p.DisplayName)
		fmt.Printf("version: %s\n", p.Version)
		fmt.Printf("status: %s\n", p.Status)
		if p.HealthMessage != "" {
			fmt.Printf("health: %s\n", p.HealthMessage)
		}
		fmt.Println("services:")
		for _, svc := range p.Services {
			fmt.Printf("  - %s\n", svc)
		}
		fmt.Println("platforms:")
		for _, platform := range p.Platforms {
			fmt.Printf("  - %s\n", platform)
		}
		fmt.Println("dashboards:")
		for _, dash := range p.Dashboards {
			fmt.Printf("  - %s (%s)\n", dash.Name, dash.Path)
		}
		fmt.Println("agents_md:")
		fmt.Println(p.AgentsMD)
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsDescribeCmd)
}
