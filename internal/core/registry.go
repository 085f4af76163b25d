package core

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joshp123/gohome-tfiac/internal/rpc"
)

const RegistryServiceName = "gohome.registry.v1.Registry"

type ListPluginsRequest struct{}

type PluginSummary struct {
	PluginID    string `json:"plugin_id"`
	DisplayName string `json:"display_name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

type ListPluginsResponse struct {
	Plugins []PluginSummary `json:"plugins"`
}

type DescribePluginRequest struct {
	PluginID string `json:"plugin_id"`
}

type DashboardRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type PluginDescriptor struct {
	Manifest
	AgentsMD      string         `json:"agents_md,omitempty"`
	Status        string         `json:"status"`
	HealthMessage string         `json:"health_message,omitempty"`
	Dashboards    []DashboardRef `json:"dashboards,omitempty"`
}

type DescribePluginResponse struct {
	Plugin *PluginDescriptor `json:"plugin"`
}

// RegistryServer is the server API of gohome.registry.v1.Registry.
type RegistryServer interface {
	ListPlugins(context.Context, *ListPluginsRequest) (*ListPluginsResponse, error)
	DescribePlugin(context.Context, *DescribePluginRequest) (*DescribePluginResponse, error)
}

var RegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: RegistryServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(RegistryServiceName, "ListPlugins", RegistryServer.ListPlugins),
		rpc.Method(RegistryServiceName, "DescribePlugin", RegistryServer.DescribePlugin),
	},
	Metadata: "gohome/registry/v1/registry",
}

func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&RegistryServiceDesc, srv)
}

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

var _ RegistryServer = (*RegistryService)(nil)

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

func (r *RegistryService) ListPlugins(ctx context.Context, _ *ListPluginsRequest) (*ListPluginsResponse, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	resp := &ListPluginsResponse{}
	for _, p := range r.plugins {
		manifest := p.Manifest()
		resp.Plugins = append(resp.Plugins, PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			Status:      string(p.Health()),
		})
	}

	return resp, nil
}

func (r *RegistryService) DescribePlugin(ctx context.Context, req *DescribePluginRequest) (*DescribePluginResponse, error) {
	_ = ctx

	if req.PluginID == "" {
		return nil, status.Error(codes.InvalidArgument, "plugin_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != req.PluginID {
			continue
		}

		descriptor := &PluginDescriptor{
			Manifest:      manifest,
			AgentsMD:      p.AgentsMD(),
			Status:        string(p.Health()),
			HealthMessage: p.HealthMessage(),
		}

		for _, d := range p.Dashboards() {
			descriptor.Dashboards = append(descriptor.Dashboards, DashboardRef{
				Name: d.Name,
				Path: dashboardPath(manifest.PluginID, d.Name),
			})
		}

		return &DescribePluginResponse{Plugin: descriptor}, nil
	}

	return nil, status.Errorf(codes.NotFound, "plugin %q not found", req.PluginID)
}
