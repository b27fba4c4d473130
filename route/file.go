package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/landyrev/simple-nmea-simulator/geo"
	"gopkg.in/yaml.v3"
)

// WaypointFile is the on-disk schema for JSON and YAML waypoint lists.
//
//	{"waypoints": [{"lat": -33.8587, "lon": 151.2140}, ...]}
type WaypointFile struct {
	Waypoints []geo.Coordinate `json:"waypoints" yaml:"waypoints"`
}

// LoadWaypointFile reads a route from a .json, .yaml/.yml or .gpx file.
func LoadWaypointFile(path string) (Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return Route{}, fmt.Errorf("failed to open waypoint file %s: %w", path, err)
	}
	defer f.Close()

	var points []geo.Coordinate
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		var wf WaypointFile
		if err := json.NewDecoder(f).Decode(&wf); err != nil {
			return Route{}, fmt.Errorf("failed to parse waypoint file %s: %w", path, err)
		}
		points = wf.Waypoints
	case ".yaml", ".yml":
		var wf WaypointFile
		if err := yaml.NewDecoder(f).Decode(&wf); err != nil {
			return Route{}, fmt.Errorf("failed to parse waypoint file %s: %w", path, err)
		}
		points = wf.Waypoints
	case ".gpx":
		points, err = ReadGPX(f)
		if err != nil {
			return Route{}, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return Route{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}

	return FromWaypoints(points)
}

// SaveWaypointFile writes the route's waypoints as JSON, YAML or GPX route
// points, chosen by the file extension.
func SaveWaypointFile(path string, r Route) error {
	wf := WaypointFile{Waypoints: r.Waypoints()}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".gpx" {
		var buf bytes.Buffer
		if err := WriteGPXRoute(&buf, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), wf.Waypoints); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0o644)
	}

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(wf, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(wf)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode waypoints: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
