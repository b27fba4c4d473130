package sentence

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// KnotsToKilometersPerHour and KnotsToMetersPerSecond convert speeds for the
// secondary unit fields.
const (
	KnotsToKilometersPerHour = 1.852
	KnotsToMetersPerSecond   = 0.514444
)

// Render encodes s as a complete sentence without a line terminator. Numeric
// fields are varied with fresh samples from src on every call.
func Render(s Sentence, src Source) (string, error) {
	if s == nil {
		return "", ErrUnknownSentence
	}
	if s.Time().IsZero() {
		return "", fmt.Errorf("%w: %s has no timestamp", ErrIncompleteSentence, s.Kind().Address())
	}

	var body string
	start := byte('$')

	switch v := s.(type) {
	case RMC:
		lat, ns := FormatLatitude(v.Position.Lat)
		lon, ew := FormatLongitude(v.Position.Lon)
		speed := Vary(src, v.SpeedKnots, 0.05)
		course := Vary(src, v.CourseDeg, 0.1)
		body = fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,,",
			FormatTime(v.at), lat, ns, lon, ew, speed, course, formatDate(v.at))

	case VHW:
		speed := Vary(src, v.SpeedKnots, 0.05)
		heading := Vary(src, v.HeadingDeg, 0.1)
		body = fmt.Sprintf("IIVHW,%.1f,T,%.1f,M,%.1f,N,%.1f,K",
			heading, heading, speed, speed*KnotsToKilometersPerHour)

	case VTG:
		course := Vary(src, v.CourseDeg, 0.1)
		speed := Vary(src, v.SpeedKnots, 0.05)
		body = fmt.Sprintf("GPVTG,%.1f,T,%.1f,M,%.1f,N,%.1f,K",
			course, course, speed, speed*KnotsToKilometersPerHour)

	case HDT:
		body = fmt.Sprintf("IIHDT,%.1f,T", Vary(src, v.HeadingDeg, 0.1))

	case GLL:
		lat, ns := FormatLatitude(v.Position.Lat)
		lon, ew := FormatLongitude(v.Position.Lon)
		body = fmt.Sprintf("GPGLL,%s,%s,%s,%s,%s,A", lat, ns, lon, ew, FormatTime(v.at))

	case GGA:
		lat, ns := FormatLatitude(v.Position.Lat)
		lon, ew := FormatLongitude(v.Position.Lon)
		satellites := max(1, int(Vary(src, float64(v.Satellites), 0.2)))
		hdop := math.Max(0.5, Vary(src, v.HDOP, 0.3))
		altitude := Vary(src, v.Altitude, 0.1)
		body = fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,%d,%d,%.1f,%.1f,M,,,,",
			FormatTime(v.at), lat, ns, lon, ew, v.Quality, satellites, hdop, altitude)

	case GSA:
		if len(v.Satellites) == 0 {
			return "", fmt.Errorf("%w: GPGSA has no satellites", ErrIncompleteSentence)
		}
		pdop := math.Max(0.5, Vary(src, v.PDOP, 0.2))
		hdop := math.Max(0.5, Vary(src, v.HDOP, 0.2))
		vdop := math.Max(0.5, Vary(src, v.VDOP, 0.2))
		body = fmt.Sprintf("GPGSA,A,3,%s,%.1f,%.1f,%.1f", satelliteSlots(v.Satellites), pdop, hdop, vdop)

	case ZDA:
		body = fmt.Sprintf("GPZDA,%s,%s,%s,%s",
			FormatTime(v.at), v.at.Format("02,01,2006"), formatZone(v.ZoneHours), formatZone(v.ZoneMinutes))

	case VBW:
		speed := Vary(src, v.SpeedKnots, 0.05)
		body = fmt.Sprintf("IIVBW,%.1f,%.1f,A,%.1f,%.1f,A,%.1f,A,%.1f,A",
			speed, speed, speed*0.9, speed*0.9, speed*1.1, speed*0.95)

	case MWD:
		direction := Vary(src, v.DirectionDeg, 0.1)
		speed := Vary(src, v.SpeedKnots, 0.1)
		body = fmt.Sprintf("WIMWD,%.1f,T,%.1f,M,%.1f,N,%.1f,M",
			direction, direction, speed, speed*KnotsToMetersPerSecond)

	case MWV:
		angle := Vary(src, v.AngleDeg, 0.1)
		speed := Vary(src, v.SpeedKnots, 0.1)
		body = fmt.Sprintf("WIMWV,%.1f,R,%.1f,N,A", angle, speed)

	case MTW:
		body = fmt.Sprintf("IIMTW,%.1f,C", Vary(src, v.Celsius, 0.05))

	case DPT:
		body = fmt.Sprintf("SDDPT,%.1f,%.1f", Vary(src, v.DepthMeters, 0.1), v.OffsetMeters)

	case DBT:
		feet := Vary(src, v.Feet, 0.1)
		meters := Vary(src, v.Meters, 0.1)
		fathoms := Vary(src, v.Fathoms, 0.1)
		body = fmt.Sprintf("SDDBT,%.1f,f,%.1f,M,%.1f,F", feet, meters, fathoms)

	case RPM:
		if v.EngineID == "" {
			return "", fmt.Errorf("%w: IIRPM has no engine id", ErrIncompleteSentence)
		}
		rpm := Vary(src, v.RPM, 0.05)
		pitch := Vary(src, v.Pitch, 0.1)
		body = fmt.Sprintf("IIRPM,%s,%s,%.1f,%.1f,A", v.EngineID, v.EngineID, rpm, pitch)

	case APB:
		bearing := Vary(src, v.BearingDeg, 0.1)
		bearingMag := Vary(src, v.BearingMagDeg, 0.1)
		heading := Vary(src, v.HeadingDeg, 0.1)
		body = fmt.Sprintf("IIAPB,A,A,%.6f,R,N,,,%.1f,T,dest,%.1f,T,%.1f,T,A",
			bearing, heading, bearingMag, bearingMag)

	case RMB:
		lat, ns := FormatLatitude(v.Position.Lat)
		lon, ew := FormatLongitude(v.Position.Lon)
		bearing := Vary(src, v.BearingDeg, 0.1)
		distance := Vary(src, v.DistanceNM, 0.05)
		heading := Vary(src, v.HeadingDeg, 0.1)
		body = fmt.Sprintf("GPRMB,A,%.6f,R,origin,dest,%s,%s,%s,%s,%.3f,%.1f,%.1f,,A",
			bearing, lat, ns, lon, ew, distance, heading, v.ClosingVelocity)

	case VDO:
		if err := v.AIS.validate(); err != nil {
			return "", fmt.Errorf("%w: AIVDO %v", ErrIncompleteSentence, err)
		}
		start = '!'
		body = "AIVDO," + v.AIS.fields()

	case VDM:
		if err := v.AIS.validate(); err != nil {
			return "", fmt.Errorf("%w: AIVDM %v", ErrIncompleteSentence, err)
		}
		start = '!'
		body = "AIVDM," + v.AIS.fields()

	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownSentence, s)
	}

	return frame(start, body), nil
}

// satelliteSlots fills the twelve PRN fields, leaving unused slots empty.
func satelliteSlots(prns []int) string {
	active := make(map[int]bool, len(prns))
	for _, prn := range prns {
		active[prn] = true
	}

	slots := make([]string, 12)
	for i := range slots {
		if prn := i + 1; active[prn] {
			slots[i] = strconv.Itoa(prn)
		}
	}
	return strings.Join(slots, ",")
}

func (a AIS) validate() error {
	switch {
	case a.Payload == "":
		return errors.New("empty payload")
	case a.Channel == "":
		return errors.New("empty radio channel")
	case a.FragmentCount < 1 || a.FragmentCount > 9:
		return fmt.Errorf("fragment count %d out of range", a.FragmentCount)
	case a.FragmentNumber < 1 || a.FragmentNumber > a.FragmentCount:
		return fmt.Errorf("fragment %d of %d", a.FragmentNumber, a.FragmentCount)
	}
	return nil
}

// fields renders count,number,,channel,payload,number. The trailing field
// repeats the fragment number, which downstream tools read as fill bits.
func (a AIS) fields() string {
	return fmt.Sprintf("%d,%d,,%s,%s,%d", a.FragmentCount, a.FragmentNumber, a.Channel, a.Payload, a.FragmentNumber)
}
