package sentence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const microMinutesPerDegree = 60 * 1000000

// Checksum XORs every byte between the leading '$' or '!' and the '*'.
// It accepts either a bare body or a complete sentence.
func Checksum(s string) byte {
	if len(s) > 0 && (s[0] == '$' || s[0] == '!') {
		s = s[1:]
	}
	if i := strings.IndexByte(s, '*'); i >= 0 {
		s = s[:i]
	}

	var checksum byte
	for i := 0; i < len(s); i++ {
		checksum ^= s[i]
	}
	return checksum
}

// Verify reports whether line carries a well-formed trailing checksum that
// matches its body.
func Verify(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	i := strings.LastIndexByte(line, '*')
	if i < 1 || len(line)-i != 3 {
		return false
	}
	if line[0] != '$' && line[0] != '!' {
		return false
	}
	want, err := strconv.ParseUint(line[i+1:], 16, 8)
	if err != nil {
		return false
	}
	return byte(want) == Checksum(line[:i])
}

// frame wraps body with its start character and checksum. The result has no
// line terminator.
func frame(start byte, body string) string {
	return fmt.Sprintf("%c%s*%02X", start, body, Checksum(body))
}

// FormatLatitude renders lat as DDMM.MMMMMM with its hemisphere letter.
func FormatLatitude(lat float64) (string, string) {
	hemisphere := "N"
	if lat < 0 {
		hemisphere = "S"
	}
	deg, minutes := degreesMinutes(lat)
	return fmt.Sprintf("%02d%s", deg, minutes), hemisphere
}

// FormatLongitude renders lon as DDDMM.MMMMMM with its hemisphere letter.
func FormatLongitude(lon float64) (string, string) {
	hemisphere := "E"
	if lon < 0 {
		hemisphere = "W"
	}
	deg, minutes := degreesMinutes(lon)
	return fmt.Sprintf("%03d%s", deg, minutes), hemisphere
}

// degreesMinutes splits |v| into whole degrees and MM.MMMMMM minutes. Rounding
// is done on the integer micro-minute count so 59.9999999 carries into the
// next degree instead of printing 60.000000.
func degreesMinutes(v float64) (int64, string) {
	total := int64(math.Round(math.Abs(v) * microMinutesPerDegree))
	deg := total / microMinutesPerDegree
	rem := total % microMinutesPerDegree
	return deg, fmt.Sprintf("%02d.%06d", rem/1000000, rem%1000000)
}

// FormatTime renders the UTC time of day as HHMMSS.sss.
func FormatTime(t time.Time) string {
	return t.UTC().Format("150405.000")
}

func formatDate(t time.Time) string {
	return t.UTC().Format("020106")
}

func formatZone(v int) string {
	if v < 0 {
		return fmt.Sprintf("-%02d", -v)
	}
	return fmt.Sprintf("%02d", v)
}
