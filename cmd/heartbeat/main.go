// SPDX-License-Identifier: MIT

// Command heartbeat registers a service instance with a Eureka
// registry and keeps its lease alive until interrupted. It is meant to
// run as a sidecar next to applications that cannot speak Eureka
// themselves.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btouchard/eureka/sdk"
)

func main() {
	var (
		serverURL       = flag.String("eureka", "http://localhost:8761", "registry base URL (without /eureka)")
		appName         = flag.String("app", "", "application name to register under (required)")
		port            = flag.Int("port", 8080, "port the application listens on")
		ipAddr          = flag.String("ip", "127.0.0.1", "remotely accessible IP address")
		hostname        = flag.String("hostname", "", "hostname, defaults to the IP address")
		instanceID      = flag.String("instance-id", "", "pin the instance id instead of generating one")
		healthCheckURL  = flag.String("health-url", "", "health check URL advertised to the registry")
		statusPageURL   = flag.String("status-url", "", "status page URL advertised to the registry")
		interval        = flag.Duration("interval", 30*time.Second, "time between lease renewals")
		leaseDuration   = flag.Int("lease-duration", 0, "lease duration in seconds (0 = registry client default)")
		renewalInterval = flag.Int("renewal-interval", 0, "advertised renewal interval in seconds (0 = default)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *appName == "" {
		logger.Error("missing required flag -app")
		flag.Usage()
		os.Exit(2)
	}

	client, err := sdk.New(sdk.Config{
		ServerURL:      *serverURL,
		AppName:        *appName,
		Port:           *port,
		IPAddr:         *ipAddr,
		Hostname:       *hostname,
		InstanceID:     *instanceID,
		HealthCheckURL: *healthCheckURL,
		StatusPageURL:  *statusPageURL,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	heartbeat := sdk.NewHeartbeat(client, *interval, sdk.RegisterOptions{
		LeaseDuration:   *leaseDuration,
		RenewalInterval: *renewalInterval,
	}, logger)

	logger.Info("heartbeat starting",
		"app", client.AppName(),
		"instance_id", client.InstanceID(),
		"registry", *serverURL,
		"interval", *interval,
	)

	if err := heartbeat.Run(ctx); err != nil {
		logger.Error("heartbeat failed", "error", err)
		os.Exit(1)
	}
}
