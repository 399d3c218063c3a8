package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hubertat/servicemaker"
	"github.com/spf13/pflag"

	"relay-service/internal/bluez"
	"relay-service/internal/config"
	"relay-service/internal/core"
	"relay-service/internal/hardware"
	"relay-service/internal/input"
	"relay-service/internal/input/evdevice"
	"relay-service/internal/logger"
	"relay-service/internal/messaging"
	"relay-service/internal/web"
)

var version = "dev"

var service = servicemaker.ServiceMaker{
	User:               "relay-service",
	UserGroups:         []string{"input", "i2c", "gpio", "bluetooth"},
	ServicePath:        "/etc/systemd/system/relay-service.service",
	ServiceDescription: "Relay service: drives relay boards from gamepads and touch devices",
	ExecDir:            "/usr/local/bin",
	ExecName:           "relay-service",
}

func main() {
	flags := pflag.NewFlagSet("relay-service", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Path of the configuration file (default: search /etc/relay-service and .)")
	logLevel := flags.String("log", "3", "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	dryRun := flags.Bool("dry-run", false, "Use an in-memory relay board and print relay changes")
	install := flags.Bool("install", false, "Install the systemd service")
	showVersion := flags.Bool("version", false, "Print the version and exit")
	testRelays := flags.Bool("test-relays", false, "Cycle every relay on and off until interrupted, then exit")
	listDevices := flags.Bool("list-devices", false, "List connected Bluetooth devices with their input nodes and exit")
	flags.String("driver", "", "Relay driver (sequent, gpio, mcp23017, mock)")
	flags.Int("stack", 0, "Stack level of the Sequent relay board (0-7)")
	flags.String("listen", "", "Status page listen address")
	flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version)
		return
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	l := logger.NewLogger(logger.NewStdLogger(os.Stdout), level)

	if *install {
		if err := service.InstallService(); err != nil {
			l.Fatalf("Failed to install service: %v", err)
		}
		l.Infof("Service installed")
		return
	}

	l.Infof("Starting relay service %s...", version)

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		l.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.File != "" {
		l.Infof("Configuration loaded from %s", cfg.File)
	}
	if *dryRun {
		cfg.Relay.Driver = config.DriverMock
	}

	if *listDevices {
		bt := bluez.New()
		defer bt.Close()
		discoverer := input.NewDiscoverer(evdevice.NewSource(cfg.InputDir), bt, cfg.Devices(), l.WithTag("input"))
		reports, err := discoverer.Inventory(context.Background())
		if err != nil {
			l.Fatalf("Failed to list devices: %v", err)
		}
		printInventory(os.Stdout, reports)
		return
	}

	port, err := hardware.Open(cfg.Relay, l.WithTag("relay"))
	if err != nil {
		l.Fatalf("Failed to open relay board: %v", err)
	}
	if mock, ok := port.(*hardware.MockBoard); ok {
		mock.MonitorStateChanges(os.Stdout)
	}

	if *testRelays {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		l.Infof("Cycling %d relays, press Ctrl-C to exit", port.Channels())
		err := hardware.CycleRelays(ctx, port, time.Second, l.WithTag("relay"))
		stop()
		port.Close()
		if err != nil {
			l.Fatalf("Relay test failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publishers []messaging.Publisher
	var redisClient *messaging.RedisClient
	if cfg.Redis.Address != "" {
		redisClient = messaging.NewRedisClient(cfg.Redis, l.WithTag("redis"))
		if err := redisClient.Connect(ctx); err != nil {
			l.Warnf("Redis status publishing degraded: %v", err)
		}
		publishers = append(publishers, redisClient)
	}
	var mqttClient *messaging.MqttClient
	if cfg.MQTT.Broker != "" {
		mqttClient, err = messaging.NewMqttClient(cfg.MQTT, l.WithTag("mqtt"))
		if err != nil {
			l.Fatalf("Failed to configure MQTT: %v", err)
		}
		if err := mqttClient.Connect(ctx); err != nil {
			l.Warnf("%v", err)
		}
		publishers = append(publishers, mqttClient)
	}

	var sink core.StatusSink
	var broadcaster *messaging.Broadcaster
	if len(publishers) > 0 {
		broadcaster = messaging.NewBroadcaster(l.WithTag("status"), publishers...)
		sink = broadcaster
	}

	bt := bluez.New()
	inputLog := l.WithTag("input")
	discoverer := input.NewDiscoverer(evdevice.NewSource(cfg.InputDir), bt, cfg.Devices(), inputLog)

	var notifier core.ChangeNotifier
	watcher, err := input.NewWatcher(cfg.InputDir, inputLog)
	if err != nil {
		l.Warnf("Not watching %s, relying on periodic discovery: %v", cfg.InputDir, err)
	} else {
		notifier = watcher
	}

	supervisor := core.NewSupervisor(cfg, discoverer, port, notifier, sink, l.WithTag("supervisor"))

	var server *web.Server
	if cfg.Web.Enabled {
		server = web.NewServer(cfg.Web.Address, version, supervisor, l.WithTag("web"))
		server.Start()
	}

	supervisor.Start(ctx)
	l.Infof("Relay service started with %d device entries", len(cfg.Devices()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)

	supervisor.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Warnf("HTTP server shutdown: %v", err)
		}
	}
	if broadcaster != nil {
		broadcaster.Close()
	}
	if mqttClient != nil {
		if err := mqttClient.Disconnect(shutdownCtx); err != nil {
			l.Debugf("MQTT disconnect: %v", err)
		}
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if watcher != nil {
		watcher.Close()
	}
	bt.Close()
	if err := port.Close(); err != nil {
		l.Errorf("Failed to close relay board: %v", err)
	}
	l.Infof("Shutdown complete")
}

func printInventory(w io.Writer, reports []input.BluetoothReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No connected Bluetooth devices found.")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "\nDevice name:    %s\nDevice address: %s\n", r.Device.Name, r.Device.Address)
		if len(r.Nodes) == 0 {
			fmt.Fprintln(w, "  No matching input device found.")
		}
		for _, n := range r.Nodes {
			marker := " "
			if n.Selected {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s (%s)\n", marker, n.Path, n.Name)
			if n.Err != nil {
				fmt.Fprintf(w, "    cannot open: %v\n", n.Err)
				continue
			}
			types := make([]string, 0, len(n.Capabilities))
			for t := range n.Capabilities {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(w, "    %s: %s\n", t, strings.Join(n.Capabilities[t], " "))
			}
		}
	}
}
