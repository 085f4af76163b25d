package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/rpc"
)

const ClimateServiceName = "gohome.climate.v1.Climate"

type ListEntitiesRequest struct {
	EntryID string `json:"entry_id,omitempty"`
}

type ListEntitiesResponse struct {
	Entities []climate.State `json:"entities"`
}

type EntityRequest struct {
	UniqueID string `json:"unique_id"`
	// Refresh polls the device before answering GetState.
	Refresh bool `json:"refresh,omitempty"`
}

type SetTemperatureRequest struct {
	UniqueID    string           `json:"unique_id"`
	Temperature *float64         `json:"temperature,omitempty"`
	HVACMode    climate.HVACMode `json:"hvac_mode,omitempty"`
}

type SetModeRequest struct {
	UniqueID string `json:"unique_id"`
	Mode     string `json:"mode"`
}

type StateResponse struct {
	State climate.State `json:"state"`
}

// ClimateServer is the server API of gohome.climate.v1.Climate.
type ClimateServer interface {
	ListEntities(context.Context, *ListEntitiesRequest) (*ListEntitiesResponse, error)
	GetState(context.Context, *EntityRequest) (*StateResponse, error)
	SetTemperature(context.Context, *SetTemperatureRequest) (*StateResponse, error)
	SetHVACMode(context.Context, *SetModeRequest) (*StateResponse, error)
	SetFanMode(context.Context, *SetModeRequest) (*StateResponse, error)
	SetSwingMode(context.Context, *SetModeRequest) (*StateResponse, error)
	TurnOn(context.Context, *EntityRequest) (*StateResponse, error)
	TurnOff(context.Context, *EntityRequest) (*StateResponse, error)
}

var ClimateServiceDesc = grpc.ServiceDesc{
	ServiceName: ClimateServiceName,
	HandlerType: (*ClimateServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ClimateServiceName, "ListEntities", ClimateServer.ListEntities),
		rpc.Method(ClimateServiceName, "GetState", ClimateServer.GetState),
		rpc.Method(ClimateServiceName, "SetTemperature", ClimateServer.SetTemperature),
		rpc.Method(ClimateServiceName, "SetHVACMode", ClimateServer.SetHVACMode),
		rpc.Method(ClimateServiceName, "SetFanMode", ClimateServer.SetFanMode),
		rpc.Method(ClimateServiceName, "SetSwingMode", ClimateServer.SetSwingMode),
		rpc.Method(ClimateServiceName, "TurnOn", ClimateServer.TurnOn),
		rpc.Method(ClimateServiceName, "TurnOff", ClimateServer.TurnOff),
	},
	Metadata: "gohome/climate/v1/climate",
}

type climateService struct {
	registry *climate.Registry
}

func RegisterClimateService(server grpc.ServiceRegistrar, registry *climate.Registry) {
	server.RegisterService(&ClimateServiceDesc, &climateService{registry: registry})
}

func (s *climateService) ListEntities(_ context.Context, req *ListEntitiesRequest) (*ListEntitiesResponse, error) {
	resp := &ListEntitiesResponse{Entities: []climate.State{}}
	for _, state := range s.registry.States() {
		if req.EntryID != "" && state.EntryID != req.EntryID {
			continue
		}
		resp.Entities = append(resp.Entities, state)
	}
	return resp, nil
}

func (s *climateService) GetState(ctx context.Context, req *EntityRequest) (*StateResponse, error) {
	if req.UniqueID == "" {
		return nil, status.Error(codes.InvalidArgument, "unique_id is required")
	}

	var (
		state climate.State
		err   error
	)
	if req.Refresh {
		state, err = s.registry.Refresh(ctx, req.UniqueID)
	} else {
		state, err = s.registry.State(req.UniqueID)
	}
	if err != nil {
		return nil, statusError("get state", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) SetTemperature(ctx context.Context, req *SetTemperatureRequest) (*StateResponse, error) {
	if req.UniqueID == "" {
		return nil, status.Error(codes.InvalidArgument, "unique_id is required")
	}
	if req.Temperature == nil && req.HVACMode == "" {
		return nil, status.Error(codes.InvalidArgument, "temperature or hvac_mode is required")
	}
	if req.HVACMode != "" {
		if _, ok := climate.ParseHVACMode(string(req.HVACMode)); !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown hvac_mode %q", req.HVACMode)
		}
	}

	state, err := s.registry.SetTemperature(ctx, req.UniqueID, climate.SetTemperatureRequest{
		Temperature: req.Temperature,
		HVACMode:    req.HVACMode,
	})
	if err != nil {
		return nil, statusError("set temperature", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) SetHVACMode(ctx context.Context, req *SetModeRequest) (*StateResponse, error) {
	if err := requireMode(req); err != nil {
		return nil, err
	}
	mode, ok := climate.ParseHVACMode(req.Mode)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown hvac mode %q", req.Mode)
	}

	state, err := s.registry.SetHVACMode(ctx, req.UniqueID, mode)
	if err != nil {
		return nil, statusError("set hvac mode", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) SetFanMode(ctx context.Context, req *SetModeRequest) (*StateResponse, error) {
	if err := requireMode(req); err != nil {
		return nil, err
	}
	state, err := s.registry.SetFanMode(ctx, req.UniqueID, req.Mode)
	if err != nil {
		return nil, statusError("set fan mode", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) SetSwingMode(ctx context.Context, req *SetModeRequest) (*StateResponse, error) {
	if err := requireMode(req); err != nil {
		return nil, err
	}
	state, err := s.registry.SetSwingMode(ctx, req.UniqueID, req.Mode)
	if err != nil {
		return nil, statusError("set swing mode", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) TurnOn(ctx context.Context, req *EntityRequest) (*StateResponse, error) {
	if req.UniqueID == "" {
		return nil, status.Error(codes.InvalidArgument, "unique_id is required")
	}
	state, err := s.registry.TurnOn(ctx, req.UniqueID)
	if err != nil {
		return nil, statusError("turn on", err)
	}
	return &StateResponse{State: state}, nil
}

func (s *climateService) TurnOff(ctx context.Context, req *EntityRequest) (*StateResponse, error) {
	if req.UniqueID == "" {
		return nil, status.Error(codes.InvalidArgument, "unique_id is required")
	}
	state, err := s.registry.TurnOff(ctx, req.UniqueID)
	if err != nil {
		return nil, statusError("turn off", err)
	}
	return &StateResponse{State: state}, nil
}

func requireMode(req *SetModeRequest) error {
	if req.UniqueID == "" {
		return status.Error(codes.InvalidArgument, "unique_id is required")
	}
	if req.Mode == "" {
		return status.Error(codes.InvalidArgument, "mode is required")
	}
	return nil
}
