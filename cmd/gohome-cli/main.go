package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/rpc"
)

var (
	addr    string
	timeout time.Duration
	out     outputMode
)

var rootCmd = &cobra.Command{
	Use:           "gohome-cli",
	Short:         "Manage GoHome config entries and climate devices",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "gRPC address (default: $GOHOME_GRPC_ADDR or config core.grpc_addr)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 20*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&out.json, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(pluginsCmd, servicesCmd, entriesCmd, climateCmd)
	rootCmd.AddCommand(setupCmd, reconfigureCmd, optionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is one dialed connection bounded by --timeout.
type session struct {
	ctx    context.Context
	conn   *grpc.ClientConn
	cancel context.CancelFunc
}

func dial(cmd *cobra.Command) (*session, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	target := addr
	if target == "" {
		target = resolveAddr()
	}

	conn, err := grpcurl.BlockingDial(ctx, "tcp", target, insecure.NewCredentials())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &session{ctx: ctx, conn: conn, cancel: cancel}, nil
}

func (s *session) Close() {
	_ = s.conn.Close()
	s.cancel()
}

func call[Resp any](s *session, service, method string, req any) (*Resp, error) {
	return rpc.Invoke[Resp](s.ctx, s.conn, "/"+service+"/"+method, req)
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List gRPC services exposed by the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := dial(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		client := grpcreflect.NewClientAuto(s.ctx, s.conn)
		defer client.Reset()
		services, err := client.ListServices()
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		for _, service := range services {
			fmt.Println(service)
		}
		return nil
	},
}

func resolveAddr() string {
	if value := os.Getenv("GOHOME_GRPC_ADDR"); value != "" {
		return value
	}
	for _, path := range configSearchPaths() {
		if addr := addrFromConfig(path); addr != "" {
			return addr
		}
	}
	return "gohome:9000"
}

func configSearchPaths() []string {
	paths := []string{}
	if value := os.Getenv("GOHOME_CONFIG"); value != "" {
		paths = append(paths, value)
	}
	paths = append(paths, config.DefaultPath)
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "gohome", "config.yaml"))
	}
	return paths
}

func addrFromConfig(path string) string {
	cfg, err := config.Load(path)
	if err != nil || cfg == nil || cfg.Core == nil {
		return ""
	}
	return cfg.Core.GRPCAddr
}
