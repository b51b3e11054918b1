package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/logging"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/server"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/svcerr"
)

type serveFlags struct {
	listenIP   string
	tcpPort    int
	udpPort    int
	configPath string
	pcapFile   string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the EtherNet/IP simulator",
		Long: `Start the simulator's TCP listener (and, if enabled, UDP stub) and
answer encapsulation/CIP traffic until interrupted.

Configuration is loaded from --config (created with defaults if it does
not yet exist). CLI flags override the listen address and ports from the
loaded config.

Press Ctrl+C to stop the server gracefully.`,
		Example: `  # Start with defaults
  enipsimd serve

  # Start on a specific address and port
  enipsimd serve --listen-ip 192.168.1.50 --tcp-port 44818

  # Record wire traffic for later inspection in Wireshark
  enipsimd serve --pcap session.pcap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runServe(flags); err != nil {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.listenIP, "listen-ip", "", "Listen IP address (overrides config)")
	cmd.Flags().IntVar(&flags.tcpPort, "tcp-port", 0, "TCP port (overrides config)")
	cmd.Flags().IntVar(&flags.udpPort, "udp-port", 0, "UDP port (overrides config)")
	cmd.Flags().StringVar(&flags.configPath, "config", "enipsimd.yaml", "Server config file path")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Record wire traffic to a pcap file")

	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := config.LoadServerConfig(flags.configPath, true)
	if err != nil {
		wrapped := svcerr.WrapConfigError(err, flags.configPath)
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", wrapped)
		return wrapped
	}

	if flags.listenIP != "" {
		cfg.Server.ListenIP = flags.listenIP
	}
	if flags.tcpPort != 0 {
		cfg.Server.TCPPort = flags.tcpPort
	}
	if flags.udpPort != 0 {
		cfg.Server.UDPPort = flags.udpPort
		cfg.Server.EnableUDP = true
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	srv, err := server.New(cfg, logger, server.Options{PcapPath: flags.pcapFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Fprintf(os.Stdout, "enipsimd listening on %s\n", srv.TCPAddr())

	var metricsSrv *http.Server
	if cfg.Metrics.Enable {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.Metrics().Handler())
		metricsSrv = &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Metrics.ListenIP, cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
		fmt.Fprintf(os.Stdout, "metrics exposed on %s/metrics\n", metricsSrv.Addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintf(os.Stdout, "\nshutting down...\n")
	srv.Stop()
	if metricsSrv != nil {
		metricsSrv.Close()
	}
	if err := srv.Wait(); err != nil {
		return fmt.Errorf("server wait: %w", err)
	}
	return nil
}
