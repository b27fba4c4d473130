package route

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/landyrev/simple-nmea-simulator/geo"
)

// GPX represents the root GPX document structure
type GPX struct {
	XMLName xml.Name   `xml:"gpx"`
	Version string     `xml:"version,attr"`
	Creator string     `xml:"creator,attr"`
	Xmlns   string     `xml:"xmlns,attr"`
	Track   GPXTrack   `xml:"trk"`
	Routes  []GPXRoute `xml:"rte"`
}

// GPXTrack represents a GPX track
type GPXTrack struct {
	Name         string          `xml:"name"`
	TrackSegment GPXTrackSegment `xml:"trkseg"`
}

// GPXTrackSegment represents a segment of a GPX track
type GPXTrackSegment struct {
	TrackPoints []GPXPoint `xml:"trkpt"`
}

// GPXRoute represents a GPX route
type GPXRoute struct {
	Name        string     `xml:"name"`
	RoutePoints []GPXPoint `xml:"rtept"`
}

// GPXPoint is a single track or route point
type GPXPoint struct {
	Lat  float64    `xml:"lat,attr"`
	Lon  float64    `xml:"lon,attr"`
	Time *time.Time `xml:"time,omitempty"`
}

func newGPX() *GPX {
	return &GPX{
		Version: "1.1",
		Creator: "simple-nmea-simulator",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
	}
}

// WriteGPXRoute writes points as the route points of a single GPX route.
func WriteGPXRoute(w io.Writer, name string, points []geo.Coordinate) error {
	gpx := newGPX()
	rte := GPXRoute{Name: name, RoutePoints: make([]GPXPoint, len(points))}
	for i, p := range points {
		rte.RoutePoints[i] = GPXPoint{Lat: p.Lat, Lon: p.Lon}
	}
	gpx.Routes = []GPXRoute{rte}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(gpx); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}
	return nil
}

// GPXWriter records the simulated vessel track to a GPX file
type GPXWriter struct {
	filename string
	gpx      *GPX
	file     *os.File
}

// NewGPXWriter creates a new GPX writer
func NewGPXWriter(filename string) (*GPXWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}

	gpx := newGPX()
	gpx.Track.Name = "NMEA Simulator Track"

	return &GPXWriter{
		filename: filename,
		gpx:      gpx,
		file:     file,
	}, nil
}

// AddTrackPoint appends a position to the track. The file is rewritten
// every 10 points.
func (w *GPXWriter) AddTrackPoint(pos geo.Coordinate, timestamp time.Time) error {
	ts := timestamp.UTC()
	w.gpx.Track.TrackSegment.TrackPoints = append(w.gpx.Track.TrackSegment.TrackPoints, GPXPoint{
		Lat:  pos.Lat,
		Lon:  pos.Lon,
		Time: &ts,
	})

	if w.TrackPointCount()%10 == 0 {
		return w.WriteToFile()
	}
	return nil
}

// WriteToFile rewrites the whole GPX document
func (w *GPXWriter) WriteToFile() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to beginning of file: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := w.file.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w.file)
	encoder.Indent("", "  ")
	if err := encoder.Encode(w.gpx); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}

	return w.file.Sync()
}

// Close flushes the track and closes the file
func (w *GPXWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.WriteToFile()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}

// TrackPointCount returns the number of track points currently stored
func (w *GPXWriter) TrackPointCount() int {
	return len(w.gpx.Track.TrackSegment.TrackPoints)
}

// ReadGPX parses a GPX document and returns its track points, falling back
// to the points of the first route.
func ReadGPX(r io.Reader) ([]geo.Coordinate, error) {
	var gpx GPX
	if err := xml.NewDecoder(r).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	points := gpx.Track.TrackSegment.TrackPoints
	if len(points) == 0 && len(gpx.Routes) > 0 {
		points = gpx.Routes[0].RoutePoints
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points or route points found in GPX")
	}

	coords := make([]geo.Coordinate, len(points))
	for i, p := range points {
		coords[i] = geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return coords, nil
}
