package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/landyrev/simple-nmea-simulator/route"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Route types accepted by BuildRoute
const (
	RouteLine      = "line"
	RouteCircle    = "circle"
	RouteRectangle = "rectangle"
	RouteWaypoints = "waypoints"
)

// EnvPrefix prefixes environment overrides, e.g. NMEA_SIM_PORT.
const EnvPrefix = "NMEA_SIM"

// Config holds all configuration options for the simulator and its outputs
type Config struct {
	Host       string  `json:"host" mapstructure:"host"`
	Port       int     `json:"port" mapstructure:"port"`
	SpeedKnots float64 `json:"speed_knots" mapstructure:"speed_knots"`

	RouteType     string  `json:"route_type" mapstructure:"route_type"`
	StartLat      float64 `json:"start_lat" mapstructure:"start_lat"`
	StartLon      float64 `json:"start_lon" mapstructure:"start_lon"`
	EndLat        float64 `json:"end_lat" mapstructure:"end_lat"`
	EndLon        float64 `json:"end_lon" mapstructure:"end_lon"`
	LinePoints    int     `json:"line_points" mapstructure:"line_points"`
	CenterLat     float64 `json:"center_lat" mapstructure:"center_lat"`
	CenterLon     float64 `json:"center_lon" mapstructure:"center_lon"`
	RadiusNM      float64 `json:"radius_nm" mapstructure:"radius_nm"`
	NumPoints     int     `json:"num_points" mapstructure:"num_points"`
	WidthNM       float64 `json:"width_nm" mapstructure:"width_nm"`
	HeightNM      float64 `json:"height_nm" mapstructure:"height_nm"`
	WaypointsFile string  `json:"waypoints_file" mapstructure:"waypoints_file"`

	OutputRate  time.Duration `json:"output_rate" mapstructure:"output_rate"`
	Duration    time.Duration `json:"duration" mapstructure:"duration"` // 0 = run indefinitely
	Seed        int64         `json:"seed" mapstructure:"seed"`         // 0 = seed from the clock
	LogLevel    string        `json:"log_level" mapstructure:"log_level"`
	ZoneHours   int           `json:"zone_hours" mapstructure:"zone_hours"`
	ZoneMinutes int           `json:"zone_minutes" mapstructure:"zone_minutes"`
	GPXFile     string        `json:"gpx_file" mapstructure:"gpx_file"`

	SerialPort   string `json:"serial_port" mapstructure:"serial_port"`
	BaudRate     int    `json:"baud_rate" mapstructure:"baud_rate"`
	UDPDest      string `json:"udp_dest" mapstructure:"udp_dest"`
	NATSURL      string `json:"nats_url" mapstructure:"nats_url"`
	NATSSubject  string `json:"nats_subject" mapstructure:"nats_subject"`
	RedisAddr    string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisChannel string `json:"redis_channel" mapstructure:"redis_channel"`
	WebAddr      string `json:"web_addr" mapstructure:"web_addr"`
}

// DefaultConfig returns a configuration with sensible defaults: a line
// route across Sydney Harbour at 5 knots served on 0.0.0.0:10110.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         10110,
		SpeedKnots:   5.0,
		RouteType:    RouteLine,
		StartLat:     -33.8587,
		StartLon:     151.2140,
		EndLat:       -33.8400,
		EndLon:       151.2200,
		LinePoints:   10,
		CenterLat:    -33.8587,
		CenterLon:    151.2140,
		RadiusNM:     0.5,
		NumPoints:    8,
		WidthNM:      0.3,
		HeightNM:     0.2,
		OutputRate:   1 * time.Second,
		LogLevel:     "info",
		ZoneHours:    2,
		ZoneMinutes:  0,
		BaudRate:     4800,
		NATSSubject:  "nmea.sentences",
		RedisChannel: "nmea",
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.SpeedKnots < 0 {
		return ErrInvalidSpeed
	}
	if c.OutputRate <= 0 {
		return ErrInvalidOutputRate
	}
	if c.Duration < 0 {
		return ErrInvalidDuration
	}
	if c.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	if c.ZoneHours < -13 || c.ZoneHours > 13 || c.ZoneMinutes < 0 || c.ZoneMinutes > 59 {
		return ErrInvalidZone
	}

	switch c.RouteType {
	case RouteLine:
		if c.LinePoints < 2 {
			return fmt.Errorf("%w: line_points must be at least 2", ErrInvalidPointCount)
		}
	case RouteCircle:
		if c.NumPoints < 3 {
			return fmt.Errorf("%w: num_points must be at least 3", ErrInvalidPointCount)
		}
	case RouteRectangle:
	case RouteWaypoints:
		if c.WaypointsFile == "" {
			return ErrMissingWaypointsFile
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRouteType, c.RouteType)
	}
	return nil
}

// Addr returns the TCP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BuildRoute creates the route described by the configuration.
func (c *Config) BuildRoute() (route.Route, error) {
	switch c.RouteType {
	case RouteLine:
		return route.Line(c.StartLat, c.StartLon, c.EndLat, c.EndLon, c.LinePoints)
	case RouteCircle:
		return route.Circle(c.CenterLat, c.CenterLon, c.RadiusNM, c.NumPoints)
	case RouteRectangle:
		return route.Rectangle(c.CenterLat, c.CenterLon, c.WidthNM, c.HeightNM)
	case RouteWaypoints:
		if c.WaypointsFile == "" {
			return route.Route{}, ErrMissingWaypointsFile
		}
		return route.LoadWaypointFile(c.WaypointsFile)
	default:
		return route.Route{}, fmt.Errorf("%w: %q", ErrUnknownRouteType, c.RouteType)
	}
}

// values flattens the configuration into viper keys. Durations are stored
// as strings so written files stay readable.
func (c *Config) values() map[string]any {
	return map[string]any{
		"host":           c.Host,
		"port":           c.Port,
		"speed_knots":    c.SpeedKnots,
		"route_type":     c.RouteType,
		"start_lat":      c.StartLat,
		"start_lon":      c.StartLon,
		"end_lat":        c.EndLat,
		"end_lon":        c.EndLon,
		"line_points":    c.LinePoints,
		"center_lat":     c.CenterLat,
		"center_lon":     c.CenterLon,
		"radius_nm":      c.RadiusNM,
		"num_points":     c.NumPoints,
		"width_nm":       c.WidthNM,
		"height_nm":      c.HeightNM,
		"waypoints_file": c.WaypointsFile,
		"output_rate":    c.OutputRate.String(),
		"duration":       c.Duration.String(),
		"seed":           c.Seed,
		"log_level":      c.LogLevel,
		"zone_hours":     c.ZoneHours,
		"zone_minutes":   c.ZoneMinutes,
		"gpx_file":       c.GPXFile,
		"serial_port":    c.SerialPort,
		"baud_rate":      c.BaudRate,
		"udp_dest":       c.UDPDest,
		"nats_url":       c.NATSURL,
		"nats_subject":   c.NATSSubject,
		"redis_addr":     c.RedisAddr,
		"redis_channel":  c.RedisChannel,
		"web_addr":       c.WebAddr,
	}
}

// Keys returns every configuration key.
func Keys() []string {
	defaults := DefaultConfig()
	keys := make([]string, 0, len(defaults.values()))
	for k := range defaults.values() {
		keys = append(keys, k)
	}
	return keys
}

// LoadConfig reads configuration in increasing precedence from defaults,
// the file at path (JSON or YAML, optional), NMEA_SIM_* environment
// variables (a .env file in the working directory is loaded first) and
// changed flags. Flags are matched by key with '_' replaced by '-'.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults := DefaultConfig()
	for k, val := range defaults.values() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range Keys() {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path. The format follows the file extension.
func SaveConfig(path string, cfg Config) error {
	v := viper.New()
	for k, val := range cfg.values() {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
