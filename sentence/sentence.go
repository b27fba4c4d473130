// Package sentence encodes NMEA 0183 sentences. Every sentence type is a
// plain value built once per tick; Render turns it into text, re-sampling the
// per-field variation on every call.
package sentence

import (
	"time"

	"github.com/landyrev/simple-nmea-simulator/geo"
)

// Kind identifies a sentence schema.
type Kind string

// Supported sentence kinds
const (
	KindRMC Kind = "RMC"
	KindVHW Kind = "VHW"
	KindVTG Kind = "VTG"
	KindHDT Kind = "HDT"
	KindGLL Kind = "GLL"
	KindGGA Kind = "GGA"
	KindGSA Kind = "GSA"
	KindZDA Kind = "ZDA"
	KindVBW Kind = "VBW"
	KindMWD Kind = "MWD"
	KindMWV Kind = "MWV"
	KindMTW Kind = "MTW"
	KindDPT Kind = "DPT"
	KindDBT Kind = "DBT"
	KindRPM Kind = "RPM"
	KindAPB Kind = "APB"
	KindRMB Kind = "RMB"
	KindVDO Kind = "VDO"
	KindVDM Kind = "VDM"
)

var talkers = map[Kind]string{
	KindRMC: "GP",
	KindVHW: "II",
	KindVTG: "GP",
	KindHDT: "II",
	KindGLL: "GP",
	KindGGA: "GP",
	KindGSA: "GP",
	KindZDA: "GP",
	KindVBW: "II",
	KindMWD: "WI",
	KindMWV: "WI",
	KindMTW: "II",
	KindDPT: "SD",
	KindDBT: "SD",
	KindRPM: "II",
	KindAPB: "II",
	KindRMB: "GP",
	KindVDO: "AI",
	KindVDM: "AI",
}

// Talker returns the two-letter talker id the simulator uses for k.
func (k Kind) Talker() string {
	return talkers[k]
}

// Address returns the talker and sentence id, e.g. "GPRMC".
func (k Kind) Address() string {
	return talkers[k] + string(k)
}

// Kinds lists every supported kind in broadcast order.
func Kinds() []Kind {
	return []Kind{
		KindRMC, KindVHW, KindVTG, KindHDT, KindGLL, KindGGA, KindGSA, KindZDA,
		KindVBW, KindMWD, KindMWV, KindMTW, KindDPT, KindDBT, KindRPM, KindAPB,
		KindRMB, KindVDO, KindVDM,
	}
}

// Sentence is implemented only by the types in this package.
type Sentence interface {
	Kind() Kind
	Time() time.Time
	stamped() stamp
}

type stamp struct {
	at time.Time
}

func (s stamp) Time() time.Time { return s.at }
func (s stamp) stamped() stamp  { return s }

func stampAt(at time.Time) stamp {
	return stamp{at: at.UTC()}
}

// RMC is the recommended minimum position fix.
type RMC struct {
	stamp
	Position   geo.Coordinate
	SpeedKnots float64
	CourseDeg  float64
}

// NewRMC creates an RMC sentence captured at at.
func NewRMC(at time.Time, pos geo.Coordinate, speedKnots, courseDeg float64) RMC {
	return RMC{stamp: stampAt(at), Position: pos, SpeedKnots: speedKnots, CourseDeg: courseDeg}
}

// Kind implements Sentence.
func (RMC) Kind() Kind { return KindRMC }

// VHW is speed through water and heading.
type VHW struct {
	stamp
	HeadingDeg float64
	SpeedKnots float64
}

// NewVHW creates a VHW sentence captured at at.
func NewVHW(at time.Time, speedKnots, headingDeg float64) VHW {
	return VHW{stamp: stampAt(at), HeadingDeg: headingDeg, SpeedKnots: speedKnots}
}

// Kind implements Sentence.
func (VHW) Kind() Kind { return KindVHW }

// VTG is track made good and ground speed.
type VTG struct {
	stamp
	CourseDeg  float64
	SpeedKnots float64
}

// NewVTG creates a VTG sentence captured at at.
func NewVTG(at time.Time, courseDeg, speedKnots float64) VTG {
	return VTG{stamp: stampAt(at), CourseDeg: courseDeg, SpeedKnots: speedKnots}
}

// Kind implements Sentence.
func (VTG) Kind() Kind { return KindVTG }

// HDT is true heading.
type HDT struct {
	stamp
	HeadingDeg float64
}

// NewHDT creates an HDT sentence captured at at.
func NewHDT(at time.Time, headingDeg float64) HDT {
	return HDT{stamp: stampAt(at), HeadingDeg: headingDeg}
}

// Kind implements Sentence.
func (HDT) Kind() Kind { return KindHDT }

// GLL is geographic position.
type GLL struct {
	stamp
	Position geo.Coordinate
}

// NewGLL creates a GLL sentence captured at at.
func NewGLL(at time.Time, pos geo.Coordinate) GLL {
	return GLL{stamp: stampAt(at), Position: pos}
}

// Kind implements Sentence.
func (GLL) Kind() Kind { return KindGLL }

// GGA is GPS fix data.
type GGA struct {
	stamp
	Position   geo.Coordinate
	Quality    int
	Satellites int
	HDOP       float64
	Altitude   float64 // meters
}

// NewGGA creates a GGA sentence with fix quality 1 captured at at.
func NewGGA(at time.Time, pos geo.Coordinate, satellites int, hdop, altitude float64) GGA {
	return GGA{
		stamp:      stampAt(at),
		Position:   pos,
		Quality:    1,
		Satellites: satellites,
		HDOP:       hdop,
		Altitude:   altitude,
	}
}

// Kind implements Sentence.
func (GGA) Kind() Kind { return KindGGA }

// GSA is DOP and active satellites. Only PRNs 1 through 12 are reported.
type GSA struct {
	stamp
	Satellites []int
	PDOP       float64
	HDOP       float64
	VDOP       float64
}

// NewGSA creates a GSA sentence captured at at.
func NewGSA(at time.Time, satellites []int, pdop, hdop, vdop float64) GSA {
	prns := make([]int, len(satellites))
	copy(prns, satellites)
	return GSA{stamp: stampAt(at), Satellites: prns, PDOP: pdop, HDOP: hdop, VDOP: vdop}
}

// Kind implements Sentence.
func (GSA) Kind() Kind { return KindGSA }

// ZDA is UTC date and time with the local zone offset.
type ZDA struct {
	stamp
	ZoneHours   int
	ZoneMinutes int
}

// NewZDA creates a ZDA sentence captured at at.
func NewZDA(at time.Time, zoneHours, zoneMinutes int) ZDA {
	return ZDA{stamp: stampAt(at), ZoneHours: zoneHours, ZoneMinutes: zoneMinutes}
}

// Kind implements Sentence.
func (ZDA) Kind() Kind { return KindZDA }

// VBW is dual ground/water speed.
type VBW struct {
	stamp
	SpeedKnots float64
}

// NewVBW creates a VBW sentence captured at at.
func NewVBW(at time.Time, speedKnots float64) VBW {
	return VBW{stamp: stampAt(at), SpeedKnots: speedKnots}
}

// Kind implements Sentence.
func (VBW) Kind() Kind { return KindVBW }

// MWD is true wind direction and speed.
type MWD struct {
	stamp
	DirectionDeg float64
	SpeedKnots   float64
}

// NewMWD creates an MWD sentence captured at at.
func NewMWD(at time.Time, directionDeg, speedKnots float64) MWD {
	return MWD{stamp: stampAt(at), DirectionDeg: directionDeg, SpeedKnots: speedKnots}
}

// Kind implements Sentence.
func (MWD) Kind() Kind { return KindMWD }

// MWV is relative wind angle and speed.
type MWV struct {
	stamp
	AngleDeg   float64
	SpeedKnots float64
}

// NewMWV creates an MWV sentence captured at at.
func NewMWV(at time.Time, angleDeg, speedKnots float64) MWV {
	return MWV{stamp: stampAt(at), AngleDeg: angleDeg, SpeedKnots: speedKnots}
}

// Kind implements Sentence.
func (MWV) Kind() Kind { return KindMWV }

// MTW is water temperature.
type MTW struct {
	stamp
	Celsius float64
}

// NewMTW creates an MTW sentence captured at at.
func NewMTW(at time.Time, celsius float64) MTW {
	return MTW{stamp: stampAt(at), Celsius: celsius}
}

// Kind implements Sentence.
func (MTW) Kind() Kind { return KindMTW }

// DPT is depth below transducer with transducer offset, in meters.
type DPT struct {
	stamp
	DepthMeters  float64
	OffsetMeters float64
}

// NewDPT creates a DPT sentence captured at at.
func NewDPT(at time.Time, depthMeters, offsetMeters float64) DPT {
	return DPT{stamp: stampAt(at), DepthMeters: depthMeters, OffsetMeters: offsetMeters}
}

// Kind implements Sentence.
func (DPT) Kind() Kind { return KindDPT }

// DBT is depth below transducer in feet, meters and fathoms.
type DBT struct {
	stamp
	Feet    float64
	Meters  float64
	Fathoms float64
}

// Depth unit conversions from meters
const (
	FeetPerMeter    = 3.28084
	FathomsPerMeter = 0.546807
)

// NewDBT creates a DBT sentence for a depth in meters.
func NewDBT(at time.Time, depthMeters float64) DBT {
	return DBT{
		stamp:   stampAt(at),
		Feet:    depthMeters * FeetPerMeter,
		Meters:  depthMeters,
		Fathoms: depthMeters * FathomsPerMeter,
	}
}

// Kind implements Sentence.
func (DBT) Kind() Kind { return KindDBT }

// RPM is shaft revolutions and propeller pitch for one engine.
type RPM struct {
	stamp
	EngineID string
	RPM      float64
	Pitch    float64
}

// NewRPM creates an RPM sentence captured at at.
func NewRPM(at time.Time, engineID string, rpm, pitch float64) RPM {
	return RPM{stamp: stampAt(at), EngineID: engineID, RPM: rpm, Pitch: pitch}
}

// Kind implements Sentence.
func (RPM) Kind() Kind { return KindRPM }

// APB is the autopilot sentence B.
type APB struct {
	stamp
	BearingDeg    float64
	BearingMagDeg float64
	HeadingDeg    float64
}

// NewAPB creates an APB sentence captured at at.
func NewAPB(at time.Time, bearingDeg, bearingMagDeg, headingDeg float64) APB {
	return APB{stamp: stampAt(at), BearingDeg: bearingDeg, BearingMagDeg: bearingMagDeg, HeadingDeg: headingDeg}
}

// Kind implements Sentence.
func (APB) Kind() Kind { return KindAPB }

// RMB is the recommended minimum navigation information.
type RMB struct {
	stamp
	Position        geo.Coordinate
	BearingDeg      float64
	DistanceNM      float64
	HeadingDeg      float64
	ClosingVelocity float64 // knots
}

// NewRMB creates an RMB sentence captured at at.
func NewRMB(at time.Time, pos geo.Coordinate, bearingDeg, distanceNM, headingDeg, closingVelocity float64) RMB {
	return RMB{
		stamp:           stampAt(at),
		Position:        pos,
		BearingDeg:      bearingDeg,
		DistanceNM:      distanceNM,
		HeadingDeg:      headingDeg,
		ClosingVelocity: closingVelocity,
	}
}

// Kind implements Sentence.
func (RMB) Kind() Kind { return KindRMB }

// AIS holds the fragment metadata and opaque armored payload shared by the
// VDO and VDM wrappers. The payload is passed through untouched.
type AIS struct {
	FragmentCount  int
	FragmentNumber int
	Channel        string
	Payload        string
}

// VDO wraps an AIS message about the own vessel.
type VDO struct {
	stamp
	AIS
}

// NewVDO creates a VDO sentence captured at at.
func NewVDO(at time.Time, ais AIS) VDO {
	return VDO{stamp: stampAt(at), AIS: ais}
}

// Kind implements Sentence.
func (VDO) Kind() Kind { return KindVDO }

// VDM wraps an AIS message received from another vessel.
type VDM struct {
	stamp
	AIS
}

// NewVDM creates a VDM sentence captured at at.
func NewVDM(at time.Time, ais AIS) VDM {
	return VDM{stamp: stampAt(at), AIS: ais}
}

// Kind implements Sentence.
func (VDM) Kind() Kind { return KindVDM }

// Fragments splits an AIS message that spans several sentences into
// numbered fragments on channel.
func Fragments(channel string, payloads ...string) []AIS {
	frags := make([]AIS, len(payloads))
	for i, p := range payloads {
		frags[i] = AIS{
			FragmentCount:  len(payloads),
			FragmentNumber: i + 1,
			Channel:        channel,
			Payload:        p,
		}
	}
	return frags
}
