package api

import (
	"context"
	"io"
	"log/slog"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
	"github.com/joshp123/gohome-tfiac/internal/rate"
	"github.com/joshp123/gohome-tfiac/internal/rpc"
)

// thermostat is a minimal climate entity keyed by its config entry.
type thermostat struct {
	id     string
	mode   climate.HVACMode
	fan    string
	target float64
}

func (t *thermostat) UniqueID() string                         { return t.id }
func (t *thermostat) Name() string                             { return "Thermostat " + t.id }
func (t *thermostat) DeviceInfo() climate.DeviceInfo           { return climate.DeviceInfo{Name: t.id} }
func (t *thermostat) Available() bool                          { return true }
func (t *thermostat) ShouldPoll() bool                         { return true }
func (t *thermostat) TemperatureUnit() climate.TemperatureUnit { return climate.Fahrenheit }
func (t *thermostat) MinTemp() float64                         { return 61 }
func (t *thermostat) MaxTemp() float64                         { return 88 }
func (t *thermostat) FanModes() []string                       { return []string{climate.FanAuto, climate.FanLow} }
func (t *thermostat) SwingModes() []string                     { return nil }
func (t *thermostat) FanMode() string                          { return t.fan }
func (t *thermostat) SwingMode() string                        { return "" }
func (t *thermostat) Update(context.Context)                   {}

func (t *thermostat) SupportedFeatures() climate.Feature {
	return climate.FeatureTargetTemperature | climate.FeatureFanMode | climate.FeatureTurnOn | climate.FeatureTurnOff
}

func (t *thermostat) HVACModes() []climate.HVACMode {
	return []climate.HVACMode{climate.HVACOff, climate.HVACCool, climate.HVACHeat}
}

func (t *thermostat) CurrentTemperature() (float64, bool) { return 0, false }
func (t *thermostat) TargetTemperature() (float64, bool)  { return t.target, t.target != 0 }
func (t *thermostat) HVACMode() (climate.HVACMode, bool)  { return t.mode, true }

func (t *thermostat) SetTemperature(_ context.Context, req climate.SetTemperatureRequest) error {
	if req.Temperature != nil {
		t.target = *req.Temperature
	}
	return nil
}

func (t *thermostat) SetHVACMode(_ context.Context, mode climate.HVACMode) error {
	t.mode = mode
	return nil
}

func (t *thermostat) SetFanMode(_ context.Context, mode string) error {
	t.fan = mode
	return nil
}

func (t *thermostat) SetSwingMode(context.Context, string) error { return climate.ErrNotSupported }
func (t *thermostat) TurnOn(ctx context.Context) error           { return t.SetHVACMode(ctx, climate.HVACCool) }
func (t *thermostat) TurnOff(ctx context.Context) error          { return t.SetHVACMode(ctx, climate.HVACOff) }

// demo owns entries of the "demo" domain and exposes one thermostat each.
type demo struct{}

func (demo) Domain() string { return "demo" }

func (demo) SetupEntry(ctx context.Context, host entries.Host, entry entries.Entry) (bool, error) {
	return true, host.ForwardEntrySetups(ctx, entry, []entries.Platform{entries.PlatformClimate})
}

func (demo) UnloadEntry(ctx context.Context, host entries.Host, entry entries.Entry) (bool, error) {
	return host.UnloadPlatforms(ctx, entry, []entries.Platform{entries.PlatformClimate})
}

func (demo) SetupPlatform(_ context.Context, _ entries.Platform, entry entries.Entry, add entries.AddEntities) error {
	return add(&thermostat{id: entry.EntryID, mode: climate.HVACOff})
}

func (demo) NewFlow(context.Context, entries.Host, flow.Source, *entries.Entry) (flow.Handler, error) {
	return demoFlow{}, nil
}

type demoFlow struct{}

func (demoFlow) Step(_ context.Context, stepID string, input map[string]string) (flow.Result, error) {
	if input == nil {
		return flow.Form(stepID, []flow.Field{{Key: entries.KeyHost, Required: true}}, nil), nil
	}
	return flow.CreateEntry(input[entries.KeyHost], input), nil
}

func newTestConn(t *testing.T) (*grpc.ClientConn, *entries.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := climate.NewRegistry(logger)
	em := entries.NewManager(entries.NewMemoryStore(), registry, entries.WithLogger(logger))
	require.NoError(t, em.Register(demo{}))
	fm := flow.NewManager(em, logger)
	require.NoError(t, fm.Register(demo{}))

	ln := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterEntriesService(server, em, fm)
	RegisterClimateService(server, registry)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, em
}

func method(service, name string) string {
	return "/" + service + "/" + name
}

func createEntry(t *testing.T, conn *grpc.ClientConn, host string) flow.Result {
	t.Helper()
	ctx := testContext(t)

	started, err := rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{Domain: "demo"})
	require.NoError(t, err)
	require.Equal(t, flow.ResultForm, started.Result.Type)

	done, err := rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "ConfigureFlow"), &ConfigureFlowRequest{
		FlowID: started.Result.FlowID,
		Input:  map[string]string{entries.KeyHost: host},
	})
	require.NoError(t, err)
	require.Equal(t, flow.ResultCreateEntry, done.Result.Type)
	return done.Result
}

func TestEntriesServiceFlowLifecycle(t *testing.T) {
	conn, em := newTestConn(t)
	ctx := testContext(t)

	res := createEntry(t, conn, "10.0.0.5")
	assert.Equal(t, "10.0.0.5", res.Title)
	assert.NotEmpty(t, res.EntryID)

	list, err := rpc.Invoke[ListEntriesResponse](ctx, conn, method(EntriesServiceName, "ListEntries"), &ListEntriesRequest{Domain: "demo"})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, entries.StateLoaded, list.Entries[0].State)

	reloaded, err := rpc.Invoke[EntryResponse](ctx, conn, method(EntriesServiceName, "ReloadEntry"), &EntryRequest{EntryID: res.EntryID})
	require.NoError(t, err)
	require.NotNil(t, reloaded.Entry)
	assert.Equal(t, entries.StateLoaded, reloaded.Entry.State)

	_, err = rpc.Invoke[EntryResponse](ctx, conn, method(EntriesServiceName, "RemoveEntry"), &EntryRequest{EntryID: res.EntryID})
	require.NoError(t, err)
	assert.Empty(t, em.Entries("demo"))

	_, err = rpc.Invoke[EntryResponse](ctx, conn, method(EntriesServiceName, "RemoveEntry"), &EntryRequest{EntryID: res.EntryID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestEntriesServiceFlows(t *testing.T) {
	conn, _ := newTestConn(t)
	ctx := testContext(t)

	started, err := rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{Domain: "demo"})
	require.NoError(t, err)

	flows, err := rpc.Invoke[ListFlowsResponse](ctx, conn, method(EntriesServiceName, "ListFlows"), &ListFlowsRequest{})
	require.NoError(t, err)
	require.Len(t, flows.Flows, 1)
	assert.Equal(t, started.Result.FlowID, flows.Flows[0].FlowID)

	again, err := rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "ConfigureFlow"), &ConfigureFlowRequest{
		FlowID: started.Result.FlowID,
		Input:  map[string]string{},
	})
	require.NoError(t, err)
	assert.Equal(t, flow.ResultForm, again.Result.Type)
	assert.Equal(t, flow.ErrorRequired, again.Result.Errors[entries.KeyHost])

	_, err = rpc.Invoke[AbortFlowResponse](ctx, conn, method(EntriesServiceName, "AbortFlow"), &AbortFlowRequest{FlowID: started.Result.FlowID})
	require.NoError(t, err)

	_, err = rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "ConfigureFlow"), &ConfigureFlowRequest{FlowID: started.Result.FlowID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestEntriesServiceValidation(t *testing.T) {
	conn, _ := newTestConn(t)
	ctx := testContext(t)

	_, err := rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{Domain: "demo", Source: flow.SourceOptions})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{Domain: "demo", Source: "zeroconf"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{Domain: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = rpc.Invoke[FlowResponse](ctx, conn, method(EntriesServiceName, "StartFlow"), &StartFlowRequest{
		Domain:  "demo",
		Source:  flow.SourceReconfigure,
		EntryID: "missing",
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestClimateServiceCommands(t *testing.T) {
	conn, _ := newTestConn(t)
	ctx := testContext(t)
	id := createEntry(t, conn, "10.0.0.5").EntryID

	list, err := rpc.Invoke[ListEntitiesResponse](ctx, conn, method(ClimateServiceName, "ListEntities"), &ListEntitiesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Entities, 1)
	assert.Equal(t, id, list.Entities[0].UniqueID)

	temp := 72.0
	got, err := rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetTemperature"), &SetTemperatureRequest{
		UniqueID:    id,
		Temperature: &temp,
		HVACMode:    climate.HVACHeat,
	})
	require.NoError(t, err)
	require.NotNil(t, got.State.TargetTemperature)
	assert.Equal(t, 72.0, *got.State.TargetTemperature)
	assert.Equal(t, climate.HVACHeat, got.State.HVACMode)

	got, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetFanMode"), &SetModeRequest{UniqueID: id, Mode: climate.FanLow})
	require.NoError(t, err)
	assert.Equal(t, climate.FanLow, got.State.FanMode)

	got, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "TurnOff"), &EntityRequest{UniqueID: id})
	require.NoError(t, err)
	assert.Equal(t, climate.HVACOff, got.State.HVACMode)

	got, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "TurnOn"), &EntityRequest{UniqueID: id})
	require.NoError(t, err)
	assert.Equal(t, climate.HVACCool, got.State.HVACMode)

	got, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetHVACMode"), &SetModeRequest{UniqueID: id, Mode: "heat"})
	require.NoError(t, err)
	assert.Equal(t, climate.HVACHeat, got.State.HVACMode)

	got, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "GetState"), &EntityRequest{UniqueID: id, Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, climate.HVACHeat, got.State.HVACMode)
}

func TestClimateServiceErrors(t *testing.T) {
	conn, _ := newTestConn(t)
	ctx := testContext(t)
	id := createEntry(t, conn, "10.0.0.5").EntryID

	hot := 99.0
	_, err := rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetTemperature"), &SetTemperatureRequest{UniqueID: id, Temperature: &hot})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetSwingMode"), &SetModeRequest{UniqueID: id, Mode: climate.SwingBoth})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetHVACMode"), &SetModeRequest{UniqueID: id, Mode: "heat_cool"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "SetHVACMode"), &SetModeRequest{UniqueID: id, Mode: "dry"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "GetState"), &EntityRequest{UniqueID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = rpc.Invoke[StateResponse](ctx, conn, method(ClimateServiceName, "TurnOn"), &EntityRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStatusErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("lookup: %w", entries.ErrEntryNotFound), codes.NotFound},
		{climate.ErrOutOfRange, codes.InvalidArgument},
		{fmt.Errorf("update: %w", rate.RateLimitError{Provider: "tfiac:10.0.0.5", Reason: "budget"}), codes.ResourceExhausted},
		{fmt.Errorf("read: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{io.EOF, codes.Internal},
	}
	for _, tc := range cases {
		err := statusError("op", tc.err)
		assert.Equal(t, tc.code, status.Code(err), tc.err.Error())
	}
}
