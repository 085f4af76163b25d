package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-tfiac/internal/api"
	"github.com/joshp123/gohome-tfiac/internal/climate"
)

var climateCmd = &cobra.Command{
	Use:   "climate",
	Short: "Read and control climate entities",
}

var climateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List climate entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		resp, err := call[api.ListEntitiesResponse](s, api.ClimateServiceName, "ListEntities", &api.ListEntitiesRequest{})
		if err != nil {
			return fmt.Errorf("list entities: %w", err)
		}
		return out.print(resp, func() [][]string { return stateRows(resp.Entities...) })
	},
}

var climateGetCmd = &cobra.Command{
	Use:   "get <entity>",
	Short: "Show one entity's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		return withEntity(cmd, args[0], func(s *session, id string) (*api.StateResponse, error) {
			return call[api.StateResponse](s, api.ClimateServiceName, "GetState", &api.EntityRequest{UniqueID: id, Refresh: refresh})
		})
	},
}

var climateTempCmd = &cobra.Command{
	Use:   "temp <entity> <degrees>",
	Short: "Set the target temperature",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		temp, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("temperature %q: %w", args[1], err)
		}
		mode, _ := cmd.Flags().GetString("mode")
		return withEntity(cmd, args[0], func(s *session, id string) (*api.StateResponse, error) {
			return call[api.StateResponse](s, api.ClimateServiceName, "SetTemperature", &api.SetTemperatureRequest{
				UniqueID:    id,
				Temperature: &temp,
				HVACMode:    climate.HVACMode(mode),
			})
		})
	},
}

var climateModeCmd = modeCommand("mode", "Set the HVAC mode (off, heat, cool, auto, dry, fan_only)", "SetHVACMode")
var climateFanCmd = modeCommand("fan", "Set the fan mode (auto, high, medium, low)", "SetFanMode")
var climateSwingCmd = modeCommand("swing", "Set the swing mode (off, horizontal, vertical, both)", "SetSwingMode")

var climateOnCmd = powerCommand("on", "Turn the unit on", "TurnOn")
var climateOffCmd = powerCommand("off", "Turn the unit off", "TurnOff")

func modeCommand(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <entity> <mode>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEntity(cmd, args[0], func(s *session, id string) (*api.StateResponse, error) {
				return call[api.StateResponse](s, api.ClimateServiceName, method, &api.SetModeRequest{UniqueID: id, Mode: args[1]})
			})
		},
	}
}

func powerCommand(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <entity>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEntity(cmd, args[0], func(s *session, id string) (*api.StateResponse, error) {
				return call[api.StateResponse](s, api.ClimateServiceName, method, &api.EntityRequest{UniqueID: id})
			})
		},
	}
}

// withEntity resolves the entity argument, runs fn, and prints the
// returned state.
func withEntity(cmd *cobra.Command, entity string, fn func(*session, string) (*api.StateResponse, error)) error {
	s, err := dial(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := resolveEntity(s, entity)
	if err != nil {
		return err
	}
	resp, err := fn(s, id)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return out.print(resp, func() [][]string { return stateRows(resp.State) })
}

func init() {
	climateGetCmd.Flags().Bool("refresh", false, "poll the device before answering")
	climateTempCmd.Flags().String("mode", "", "also switch to this HVAC mode")
	climateCmd.AddCommand(
		climateListCmd,
		climateGetCmd,
		climateTempCmd,
		climateModeCmd,
		climateFanCmd,
		climateSwingCmd,
		climateOnCmd,
		climateOffCmd,
	)
}
