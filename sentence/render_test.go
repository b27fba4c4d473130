package sentence

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/landyrev/simple-nmea-simulator/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always returns the same sample. 0.5 means no variation.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

var (
	testTime = time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)
	harbour  = geo.Coordinate{Lat: -33.8587, Lon: 151.2140}
)

func allSentences(at time.Time) []Sentence {
	return []Sentence{
		NewRMC(at, harbour, 5, 45),
		NewVHW(at, 5, 45),
		NewVTG(at, 45, 5),
		NewHDT(at, 45),
		NewGLL(at, harbour),
		NewGGA(at, harbour, 4, 1.0, 2.0),
		NewGSA(at, []int{8, 11, 15, 22}, 2, 1, 1),
		NewZDA(at, 2, 0),
		NewVBW(at, 5),
		NewMWD(at, 255.1, 27.8),
		NewMWV(at, 255.1, 27.8),
		NewMTW(at, 6.7),
		NewDPT(at, 2.2, 0.3),
		NewDBT(at, 2.2),
		NewRPM(at, "1", 612, 10.5),
		NewAPB(at, 0.012140, 260.4, 45),
		NewRMB(at, harbour, 0.012140, 3.573, 45, -1.4),
		NewVDO(at, Fragments("A", "17PaewhP0gar0FkcvG4hBh>t0000")[0]),
		NewVDM(at, Fragments("A", "57Paewh00001<To7;?@plD5<Tl0000000000000U1@:552R8R2TnA3QF", "@00000000000002")[1]),
	}
}

func TestRenderNominal(t *testing.T) {
	expected := []string{
		"$GPRMC,103045.123,A,3351.522000,S,15112.840000,E,5.0,45.0,150124,,,*0D",
		"$IIVHW,45.0,T,45.0,M,5.0,N,9.3,K*5A",
		"$GPVTG,45.0,T,45.0,M,5.0,N,9.3,K*41",
		"$IIHDT,45.0,T*13",
		"$GPGLL,3351.522000,S,15112.840000,E,103045.123,A*21",
		"$GPGGA,103045.123,3351.522000,S,15112.840000,E,1,4,1.0,2.0,M,,,,*2D",
		"$GPGSA,A,3,,,,,,,,8,,,11,,2.0,1.0,1.0*08",
		"$GPZDA,103045.123,15,01,2024,02,00*56",
		"$IIVBW,5.0,5.0,A,4.5,4.5,A,5.5,A,4.8,A*4F",
		"$WIMWD,255.1,T,255.1,M,27.8,N,14.3,M*51",
		"$WIMWV,255.1,R,27.8,N,A*1D",
		"$IIMTW,6.7,C*22",
		"$SDDPT,2.2,0.3*54",
		"$SDDBT,7.2,f,2.2,M,1.2,F*00",
		"$IIRPM,1,1,612.0,10.5,A*13",
		"$IIAPB,A,A,0.012140,R,N,,,45.0,T,dest,260.4,T,260.4,T,A*77",
		"$GPRMB,A,0.012140,R,origin,dest,3351.522000,S,15112.840000,E,3.573,45.0,-1.4,,A*0A",
		"!AIVDO,1,1,,A,17PaewhP0gar0FkcvG4hBh>t0000,1*0F",
		"!AIVDM,2,2,,A,@00000000000002,2*66",
	}

	sentences := allSentences(testTime)
	require.Len(t, sentences, len(expected))

	for i, s := range sentences {
		t.Run(string(s.Kind()), func(t *testing.T) {
			got, err := Render(s, fixedSource(0.5))
			require.NoError(t, err)
			assert.Equal(t, expected[i], got)
		})
	}
}

func TestRenderChecksumSelfConsistent(t *testing.T) {
	src := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		for _, s := range allSentences(testTime) {
			got, err := Render(s, src)
			require.NoError(t, err)

			assert.True(t, Verify(got), "checksum mismatch in %q", got)
			assert.NotContains(t, got, "\r")
			assert.NotContains(t, got, "\n")

			star := strings.LastIndexByte(got, '*')
			body := got[1:star]
			assert.Equal(t, s.Kind().Address(), body[:5])

			want, err := strconv.ParseUint(got[star+1:], 16, 8)
			require.NoError(t, err)
			assert.Equal(t, byte(want), Checksum(body))
		}
	}
}

func TestRenderResamplesEveryCall(t *testing.T) {
	s := NewHDT(testTime, 180)

	low, err := Render(s, fixedSource(0))
	require.NoError(t, err)
	high, err := Render(s, fixedSource(0.999999))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(low, "$IIHDT,162.0,T*"), low)
	assert.True(t, strings.HasPrefix(high, "$IIHDT,198.0,T*"), high)
}

func TestRenderVariationBounds(t *testing.T) {
	src := rand.New(rand.NewSource(7))
	s := NewMTW(testTime, 20)

	const n = 2000
	var sum float64
	for i := 0; i < n; i++ {
		got, err := Render(s, src)
		require.NoError(t, err)

		field := strings.Split(got, ",")[1]
		v, err := strconv.ParseFloat(field, 64)
		require.NoError(t, err)

		// ±5% plus the 0.05 rounding of one decimal place
		assert.GreaterOrEqual(t, v, 19.0-0.05)
		assert.LessOrEqual(t, v, 21.0+0.05)
		sum += v
	}
	assert.InDelta(t, 20.0, sum/n, 0.1)
}

func TestRenderFloors(t *testing.T) {
	gga := NewGGA(testTime, harbour, 1, 0.1, 2.0)
	got, err := Render(gga, fixedSource(0))
	require.NoError(t, err)

	fields := strings.Split(got, ",")
	assert.Equal(t, "1", fields[7], "satellite count never drops below one")
	assert.Equal(t, "0.5", fields[8], "hdop never drops below 0.5")

	gsa := NewGSA(testTime, []int{1}, 0.1, 0.1, 0.1)
	got, err = Render(gsa, fixedSource(0))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "$GPGSA,A,3,1,,,,,,,,,,,,0.5,0.5,0.5*"), got)
}

func TestRenderZoneOffset(t *testing.T) {
	got, err := Render(NewZDA(testTime, -5, 30), fixedSource(0.5))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "$GPZDA,103045.123,15,01,2024,-05,30*"), got)
}

func TestRenderIncomplete(t *testing.T) {
	tests := []struct {
		name     string
		sentence Sentence
	}{
		{"missing timestamp", RMC{Position: harbour, SpeedKnots: 5}},
		{"zero time constructor", NewHDT(time.Time{}, 90)},
		{"no satellites", NewGSA(testTime, nil, 2, 1, 1)},
		{"no engine id", NewRPM(testTime, "", 612, 10.5)},
		{"empty payload", NewVDO(testTime, AIS{FragmentCount: 1, FragmentNumber: 1, Channel: "A"})},
		{"empty channel", NewVDM(testTime, AIS{FragmentCount: 1, FragmentNumber: 1, Payload: "17Paewh"})},
		{"fragment past count", NewVDM(testTime, AIS{FragmentCount: 2, FragmentNumber: 3, Channel: "A", Payload: "17Paewh"})},
		{"zero fragment count", NewVDO(testTime, AIS{Channel: "A", Payload: "17Paewh"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.sentence, fixedSource(0.5))
			assert.ErrorIs(t, err, ErrIncompleteSentence)
		})
	}
}

func TestRenderNil(t *testing.T) {
	_, err := Render(nil, fixedSource(0.5))
	assert.ErrorIs(t, err, ErrUnknownSentence)
}

func TestFragments(t *testing.T) {
	frags := Fragments("B", "first", "second")
	require.Len(t, frags, 2)

	assert.Equal(t, AIS{FragmentCount: 2, FragmentNumber: 1, Channel: "B", Payload: "first"}, frags[0])
	assert.Equal(t, AIS{FragmentCount: 2, FragmentNumber: 2, Channel: "B", Payload: "second"}, frags[1])

	got, err := Render(NewVDO(testTime, frags[0]), fixedSource(0.5))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "!AIVDO,2,1,,B,first,1*"), got)
}

func TestConstructorsCaptureUTC(t *testing.T) {
	local := time.Date(2024, 1, 15, 20, 30, 45, 123000000, time.FixedZone("AEST", 10*3600))

	s := NewGLL(local, harbour)
	assert.Equal(t, time.UTC, s.Time().Location())
	assert.True(t, s.Time().Equal(testTime))

	got, err := Render(s, fixedSource(0.5))
	require.NoError(t, err)
	assert.Contains(t, got, ",103045.123,")
}

func TestGSACopiesSatellites(t *testing.T) {
	prns := []int{3, 4}
	s := NewGSA(testTime, prns, 2, 1, 1)
	prns[0] = 9

	assert.Equal(t, []int{3, 4}, s.Satellites)
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 19)

	for _, s := range allSentences(testTime) {
		assert.Contains(t, kinds, s.Kind())
		assert.Len(t, s.Kind().Address(), 5)
		assert.Len(t, s.Kind().Talker(), 2)
	}
}
