package router

import (
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-tfiac/internal/api"
	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/core"
)

// Services are the host components exposed over gRPC.
type Services struct {
	Plugins []core.Plugin
	Entries api.EntryManager
	Flows   api.FlowManager
	Climate *climate.Registry
}

// Register registers the registry, entries, and climate services on the
// gRPC server.
func Register(server grpc.ServiceRegistrar, svc Services) {
	core.RegisterRegistryServer(server, core.NewRegistryService(svc.Plugins))
	api.RegisterEntriesService(server, svc.Entries, svc.Flows)
	api.RegisterClimateService(server, svc.Climate)
}
