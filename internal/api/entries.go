package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
	"github.com/joshp123/gohome-tfiac/internal/rpc"
)

const EntriesServiceName = "gohome.entries.v1.Entries"

type ListEntriesRequest struct {
	Domain string `json:"domain,omitempty"`
}

type ListEntriesResponse struct {
	Entries []entries.Entry `json:"entries"`
}

type EntryRequest struct {
	EntryID string `json:"entry_id"`
}

type EntryResponse struct {
	Entry *entries.Entry `json:"entry,omitempty"`
}

type StartFlowRequest struct {
	Domain  string      `json:"domain"`
	Source  flow.Source `json:"source"`
	EntryID string      `json:"entry_id,omitempty"`
}

type ConfigureFlowRequest struct {
	FlowID string            `json:"flow_id"`
	Input  map[string]string `json:"input"`
}

type FlowResponse struct {
	Result flow.Result `json:"result"`
}

type ListFlowsRequest struct{}

type ListFlowsResponse struct {
	Flows []flow.Result `json:"flows"`
}

type AbortFlowRequest struct {
	FlowID string `json:"flow_id"`
}

type AbortFlowResponse struct{}

// EntryManager is the part of entries.Manager the service needs.
type EntryManager interface {
	Entries(domain string) []entries.Entry
	Entry(entryID string) (entries.Entry, error)
	Remove(ctx context.Context, entryID string) error
	Reload(ctx context.Context, entryID string) error
}

// FlowManager is the part of flow.Manager the service needs.
type FlowManager interface {
	Init(ctx context.Context, domain string, source flow.Source, entryID string) (flow.Result, error)
	Configure(ctx context.Context, flowID string, input map[string]string) (flow.Result, error)
	Progress() []flow.Result
	Abort(flowID string) error
}

// EntriesServer is the server API of gohome.entries.v1.Entries.
type EntriesServer interface {
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	RemoveEntry(context.Context, *EntryRequest) (*EntryResponse, error)
	ReloadEntry(context.Context, *EntryRequest) (*EntryResponse, error)
	StartFlow(context.Context, *StartFlowRequest) (*FlowResponse, error)
	ConfigureFlow(context.Context, *ConfigureFlowRequest) (*FlowResponse, error)
	ListFlows(context.Context, *ListFlowsRequest) (*ListFlowsResponse, error)
	AbortFlow(context.Context, *AbortFlowRequest) (*AbortFlowResponse, error)
}

var EntriesServiceDesc = grpc.ServiceDesc{
	ServiceName: EntriesServiceName,
	HandlerType: (*EntriesServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(EntriesServiceName, "ListEntries", EntriesServer.ListEntries),
		rpc.Method(EntriesServiceName, "RemoveEntry", EntriesServer.RemoveEntry),
		rpc.Method(EntriesServiceName, "ReloadEntry", EntriesServer.ReloadEntry),
		rpc.Method(EntriesServiceName, "StartFlow", EntriesServer.StartFlow),
		rpc.Method(EntriesServiceName, "ConfigureFlow", EntriesServer.ConfigureFlow),
		rpc.Method(EntriesServiceName, "ListFlows", EntriesServer.ListFlows),
		rpc.Method(EntriesServiceName, "AbortFlow", EntriesServer.AbortFlow),
	},
	Metadata: "gohome/entries/v1/entries",
}

type entriesService struct {
	entries EntryManager
	flows   FlowManager
}

func RegisterEntriesService(server grpc.ServiceRegistrar, em EntryManager, fm FlowManager) {
	server.RegisterService(&EntriesServiceDesc, &entriesService{entries: em, flows: fm})
}

func (s *entriesService) ListEntries(_ context.Context, req *ListEntriesRequest) (*ListEntriesResponse, error) {
	return &ListEntriesResponse{Entries: s.entries.Entries(req.Domain)}, nil
}

func (s *entriesService) RemoveEntry(ctx context.Context, req *EntryRequest) (*EntryResponse, error) {
	if req.EntryID == "" {
		return nil, status.Error(codes.InvalidArgument, "entry_id is required")
	}
	if err := s.entries.Remove(ctx, req.EntryID); err != nil {
		return nil, statusError("remove entry", err)
	}
	return &EntryResponse{}, nil
}

func (s *entriesService) ReloadEntry(ctx context.Context, req *EntryRequest) (*EntryResponse, error) {
	if req.EntryID == "" {
		return nil, status.Error(codes.InvalidArgument, "entry_id is required")
	}
	if err := s.entries.Reload(ctx, req.EntryID); err != nil {
		return nil, statusError("reload entry", err)
	}
	entry, err := s.entries.Entry(req.EntryID)
	if err != nil {
		return nil, statusError("reload entry", err)
	}
	return &EntryResponse{Entry: &entry}, nil
}

func (s *entriesService) StartFlow(ctx context.Context, req *StartFlowRequest) (*FlowResponse, error) {
	if req.Domain == "" {
		return nil, status.Error(codes.InvalidArgument, "domain is required")
	}
	source := req.Source
	if source == "" {
		source = flow.SourceUser
	}
	switch source {
	case flow.SourceUser:
	case flow.SourceReconfigure, flow.SourceOptions:
		if req.EntryID == "" {
			return nil, status.Errorf(codes.InvalidArgument, "entry_id is required for %s flows", source)
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown flow source %q", source)
	}

	res, err := s.flows.Init(ctx, req.Domain, source, req.EntryID)
	if err != nil {
		return nil, statusError("start flow", err)
	}
	return &FlowResponse{Result: res}, nil
}

func (s *entriesService) ConfigureFlow(ctx context.Context, req *ConfigureFlowRequest) (*FlowResponse, error) {
	if req.FlowID == "" {
		return nil, status.Error(codes.InvalidArgument, "flow_id is required")
	}
	res, err := s.flows.Configure(ctx, req.FlowID, req.Input)
	if err != nil {
		return nil, statusError("configure flow", err)
	}
	return &FlowResponse{Result: res}, nil
}

func (s *entriesService) ListFlows(context.Context, *ListFlowsRequest) (*ListFlowsResponse, error) {
	return &ListFlowsResponse{Flows: s.flows.Progress()}, nil
}

func (s *entriesService) AbortFlow(_ context.Context, req *AbortFlowRequest) (*AbortFlowResponse, error) {
	if req.FlowID == "" {
		return nil, status.Error(codes.InvalidArgument, "flow_id is required")
	}
	if err := s.flows.Abort(req.FlowID); err != nil {
		return nil, statusError("abort flow", err)
	}
	return &AbortFlowResponse{}, nil
}
