package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/landyrev/simple-nmea-simulator/logging"
	"github.com/landyrev/simple-nmea-simulator/route"
	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/landyrev/simple-nmea-simulator/transport"
	"github.com/landyrev/simple-nmea-simulator/web"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

var errUsage = errors.New("usage")

const usage = `Usage: nmea-simulator <command> [options]

NMEA 0183 vessel simulator
Streams navigation, environment and AIS sentences for a vessel following a route.

Commands:
  run                                 Run the simulator and serve NMEA over TCP
  route line|circle|rectangle|waypoints  Print or save the waypoints of a route
  config save <file>                  Write the effective configuration to a file
  config load <file>                  Validate a configuration file and print it
  ports                               List available serial ports
  version                             Show version information

Run "nmea-simulator <command> --help" for the options of a command.
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stdout, stderr)
	case "route":
		return routeCommand(args[1:], stdout, stderr)
	case "config":
		return configCommand(args[1:], stdout, stderr)
	case "ports":
		return portsCommand(stdout)
	case "version", "--version", "-v":
		printVersion(stdout)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

func printVersion(w io.Writer) {
	if Version != "dev" {
		fmt.Fprintf(w, "v%s\n", Version)
	} else {
		fmt.Fprintf(w, "%s\n", Commit)
	}
	if BuildDate != "unknown" {
		fmt.Fprintf(w, "built %s\n", BuildDate)
	}
}

// configFlags registers one flag per configuration key. Flag names are the
// keys with '_' replaced by '-', which is what simulator.LoadConfig binds.
func configFlags(name string, stderr io.Writer) (*pflag.FlagSet, *string) {
	d := simulator.DefaultConfig()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.StringP("config", "c", "", "Configuration file (JSON or YAML)")

	fs.String("host", d.Host, "TCP listen host")
	fs.IntP("port", "p", d.Port, "TCP listen port")
	fs.Float64P("speed-knots", "s", d.SpeedKnots, "Vessel speed in knots")
	fs.StringP("route-type", "r", d.RouteType, "Route type: line, circle, rectangle or waypoints")

	fs.Float64("start-lat", d.StartLat, "Line start latitude")
	fs.Float64("start-lon", d.StartLon, "Line start longitude")
	fs.Float64("end-lat", d.EndLat, "Line end latitude")
	fs.Float64("end-lon", d.EndLon, "Line end longitude")
	fs.Int("line-points", d.LinePoints, "Number of points on a line route")
	fs.Float64("center-lat", d.CenterLat, "Circle or rectangle center latitude")
	fs.Float64("center-lon", d.CenterLon, "Circle or rectangle center longitude")
	fs.Float64("radius-nm", d.RadiusNM, "Circle radius in nautical miles")
	fs.Int("num-points", d.NumPoints, "Number of points on a circle route")
	fs.Float64("width-nm", d.WidthNM, "Rectangle width in nautical miles")
	fs.Float64("height-nm", d.HeightNM, "Rectangle height in nautical miles")
	fs.StringP("waypoints-file", "w", d.WaypointsFile, "Waypoints file (JSON, YAML or GPX)")

	fs.Duration("output-rate", d.OutputRate, "Interval between sentence batches")
	fs.Duration("duration", d.Duration, "How long to run (e.g. 30s, 5m). 0 runs indefinitely")
	fs.Int64("seed", d.Seed, "Random seed for sensor variation. 0 seeds from the clock")
	fs.StringP("log-level", "l", d.LogLevel, "Log level: debug, info, warn or error")
	fs.Int("zone-hours", d.ZoneHours, "Local zone hours reported in ZDA")
	fs.Int("zone-minutes", d.ZoneMinutes, "Local zone minutes reported in ZDA")
	fs.String("gpx-file", d.GPXFile, "Record the simulated track to this GPX file")

	fs.String("serial-port", d.SerialPort, "Also write sentences to this serial port (e.g. /dev/ttyUSB0, COM1)")
	fs.Int("baud-rate", d.BaudRate, "Serial port baud rate")
	fs.String("udp-dest", d.UDPDest, "Also send sentences to this UDP address (e.g. 255.255.255.255:10110)")
	fs.String("nats-url", d.NATSURL, "Also publish sentences to this NATS server")
	fs.String("nats-subject", d.NATSSubject, "NATS subject")
	fs.String("redis-addr", d.RedisAddr, "Also publish batches to this Redis server")
	fs.String("redis-channel", d.RedisChannel, "Redis channel")
	fs.String("web-addr", d.WebAddr, "Serve the status API and metrics on this address (e.g. :8080)")

	return fs, configPath
}

func loadConfig(name string, args []string, stderr io.Writer) (simulator.Config, error) {
	fs, configPath := configFlags(name, stderr)
	if err := fs.Parse(args); err != nil {
		return simulator.Config{}, err
	}
	return simulator.LoadConfig(*configPath, fs)
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := configFlags("run", stderr)
	toStdout := fs.Bool("stdout", false, "Also write sentences to stdout (logs go to stderr)")
	jsonLogs := fs.Bool("json-logs", false, "Write logs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := simulator.LoadConfig(*configPath, fs)
	if err != nil {
		return err
	}

	log := logging.New(stderr, cfg.LogLevel)
	if *jsonLogs {
		log = logging.NewJSON(stderr, cfg.LogLevel)
	}

	var extra []transport.Sink
	if *toStdout {
		extra = append(extra, transport.NewStreamSink(stdout))
	}
	return run(ctx, cfg, log, extra...)
}

// run serves the simulator until ctx is cancelled or the configured
// duration elapses. Runs stopped and restarted over the web API keep every
// output and TCP client attached.
func run(ctx context.Context, cfg simulator.Config, log zerolog.Logger, extra ...transport.Sink) error {
	r, err := cfg.BuildRoute()
	if err != nil {
		return fmt.Errorf("failed to build route: %w", err)
	}
	tracker, err := route.NewTracker(r, cfg.SpeedKnots, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	sim := simulator.New(cfg, tracker, simulator.WithLogger(log))

	log.Info().
		Str("route", cfg.RouteType).
		Int("waypoints", r.Len()).
		Bool("loop", r.IsLoop()).
		Float64("length_m", tracker.TotalLength()).
		Dur("lap", tracker.Duration()).
		Msg("Route ready")

	sinks, err := openSinks(cfg, log)
	if err != nil {
		return err
	}
	sinks = append(sinks, extra...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	for _, s := range sinks {
		wg.Add(1)
		go func(sink transport.Sink) {
			defer wg.Done()
			defer sink.Close()
			if err := transport.Attach(ctx, sim, sink); err != nil {
				log.Error().Err(err).Msg("Output stopped")
			}
		}(s)
	}

	tcp := transport.NewTCPServer(cfg.Addr(), sim, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcp.ListenAndServe(ctx); err != nil {
			errCh <- err
		}
	}()

	if cfg.WebAddr != "" {
		srv := web.NewServer(sim, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.WebAddr); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	if err := sim.Start(ctx); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case <-sim.Finished():
		log.Info().Msg("Duration elapsed")
	case err = <-errCh:
	}

	cancel()
	wg.Wait()
	<-sim.Done()
	return err
}

func openSinks(cfg simulator.Config, log zerolog.Logger) ([]transport.Sink, error) {
	var sinks []transport.Sink
	fail := func(err error) ([]transport.Sink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	if cfg.SerialPort != "" {
		s, err := transport.OpenSerial(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			return fail(err)
		}
		log.Info().Str("port", cfg.SerialPort).Int("baud", cfg.BaudRate).Msg("Opened serial port")
		sinks = append(sinks, s)
	}
	if cfg.UDPDest != "" {
		s, err := transport.NewUDPSink(cfg.UDPDest)
		if err != nil {
			return fail(err)
		}
		log.Info().Str("dest", cfg.UDPDest).Msg("Sending UDP")
		sinks = append(sinks, s)
	}
	if cfg.NATSURL != "" {
		s, err := transport.NewNATSSink(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return fail(err)
		}
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("Publishing to NATS")
		sinks = append(sinks, s)
	}
	if cfg.RedisAddr != "" {
		s, err := transport.NewRedisSink(cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return fail(err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("Publishing to Redis")
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func routeCommand(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, "Usage: nmea-simulator route line|circle|rectangle|waypoints [options] [--out file]\n")
		return errUsage
	}
	kind, args := args[0], args[1:]

	fs, configPath := configFlags("route "+kind, stderr)
	out := fs.StringP("out", "o", "", "Save waypoints to this file (JSON, YAML or GPX by extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := fs.Set("route-type", kind); err != nil {
		return err
	}

	cfg, err := simulator.LoadConfig(*configPath, fs)
	if err != nil {
		return err
	}
	r, err := cfg.BuildRoute()
	if err != nil {
		return err
	}

	if *out != "" {
		if err := route.SaveWaypointFile(*out, r); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved %d waypoints to %s\n", r.Len(), *out)
		return nil
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Waypoints())
}

func configCommand(args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 || (args[0] != "save" && args[0] != "load") {
		fmt.Fprint(stderr, "Usage: nmea-simulator config save|load <file> [options]\n")
		return errUsage
	}
	action, path, rest := args[0], args[1], args[2:]

	if action == "load" {
		cfg, err := loadConfig("config load", append([]string{"--config", path}, rest...), stderr)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	cfg, err := loadConfig("config save", rest, stderr)
	if err != nil {
		return err
	}
	if err := simulator.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Configuration saved to %s\n", path)
	return nil
}

func portsCommand(stdout io.Writer) error {
	ports, err := transport.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return nil
}
