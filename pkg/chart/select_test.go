package chart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

func filledStore(t *testing.T, n int) *store.Store {
	t.Helper()
	s := store.New()
	for i := 0; i < n; i++ {
		s.Append(parser.Sample{Values: map[string]float64{
			parser.FieldTemperature: 20 + float64(i),
			parser.FieldHumidity:    50,
			parser.FieldNDVI:        0.6,
			parser.FieldAccelX:      0.1,
			parser.FieldAccelY:      0.2,
			parser.FieldAccelZ:      9.8,
		}})
	}
	return s
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"NDVI", ModeNDVI, false},
		{"temp", ModeTemp, false},
		{" Hum ", ModeHum, false},
		{"accel", ModeAccel, false},
		{"pressure", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSelectMode_Live(t *testing.T) {
	s := filledStore(t, 3)

	spec, err := SelectMode(ModeNDVI, VariantLive, s)
	require.NoError(t, err)
	require.Equal(t, "Vine Health (NDVI)", spec.Title)
	require.Equal(t, TimeLabel, spec.XLabel)
	require.Equal(t, &Range{Min: -0.1, Max: 1.0}, spec.YRange)
	require.Len(t, spec.Series, 1)
	require.Equal(t, StyleLineMarkers, spec.Series[0].Style)
	require.Equal(t, ColorNDVI, spec.Series[0].Color)
	require.Equal(t, []float64{0, 10, 20}, spec.Series[0].X)
	require.Equal(t, []float64{0.6, 0.6, 0.6}, spec.Series[0].Y)
}

func TestSelectMode_History(t *testing.T) {
	s := filledStore(t, 2)

	spec, err := SelectMode(ModeTemp, VariantHistory, s)
	require.NoError(t, err)
	require.Equal(t, "Temperature history (°C)", spec.Title)
	require.Nil(t, spec.YRange)
	require.Equal(t, StyleLine, spec.Series[0].Style)
	require.Equal(t, []float64{20, 21}, spec.Series[0].Y)
}

func TestSelectMode_AllModes(t *testing.T) {
	s := filledStore(t, 4)
	want := map[Mode]int{ModeNDVI: 1, ModeTemp: 1, ModeHum: 1, ModeAccel: 3}

	for _, m := range Modes {
		for _, v := range []Variant{VariantLive, VariantHistory} {
			spec, err := SelectMode(m, v, s)
			require.NoError(t, err)
			require.Len(t, spec.Series, want[m], "%s/%s", m, v)
			for _, ser := range spec.Series {
				require.Len(t, ser.X, 4)
				require.Len(t, ser.Y, 4)
			}
			require.Equal(t, 4*want[m], spec.Points())
		}
	}
}

func TestSelectMode_HumidityRange(t *testing.T) {
	spec, err := SelectMode(ModeHum, VariantLive, store.New())
	require.NoError(t, err)
	require.Equal(t, &Range{Min: 0, Max: 100}, spec.YRange)
	require.Empty(t, spec.Series[0].X)
}

func TestSelectMode_Unknown(t *testing.T) {
	_, err := SelectMode(Mode("PRESSURE"), VariantLive, store.New())
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestSelectMode_DoesNotAliasRange(t *testing.T) {
	a, err := SelectMode(ModeNDVI, VariantLive, store.New())
	require.NoError(t, err)
	a.YRange.Max = 42

	b, err := SelectMode(ModeNDVI, VariantLive, store.New())
	require.NoError(t, err)
	require.Equal(t, 1.0, b.YRange.Max)
}

func TestSelectAxes(t *testing.T) {
	tbl, err := ingest.IngestBytes([]byte("Temps;Temp;NDVI\n0;20;0,5\n10;21;0,6\n"))
	require.NoError(t, err)

	t.Run("time axis draws a line", func(t *testing.T) {
		spec, err := SelectAxes(tbl, "Temps", "NDVI")
		require.NoError(t, err)
		require.Equal(t, "NDVI vs Temps", spec.Title)
		require.Equal(t, "Temps", spec.XLabel)
		require.Equal(t, "NDVI", spec.YLabel)
		require.Nil(t, spec.YRange)
		require.Equal(t, StyleLine, spec.Series[0].Style)
		require.Equal(t, "NDVI", spec.Series[0].Name)
		require.Equal(t, []float64{0, 10}, spec.Series[0].X)
		require.Equal(t, []float64{0.5, 0.6}, spec.Series[0].Y)
	})

	t.Run("other axis scatters", func(t *testing.T) {
		spec, err := SelectAxes(tbl, "Temp", "NDVI")
		require.NoError(t, err)
		require.Equal(t, "NDVI vs Temp", spec.Title)
		require.Equal(t, StyleScatter, spec.Series[0].Style)
		require.Equal(t, ColorFreeScatter, spec.Series[0].Color)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := SelectAxes(tbl, "Temps", "Pressure")
		require.ErrorIs(t, err, ErrUnknownColumn)
		_, err = SelectAxes(tbl, "nope", "NDVI")
		require.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("copies data", func(t *testing.T) {
		spec, err := SelectAxes(tbl, "Temps", "NDVI")
		require.NoError(t, err)
		spec.Series[0].Y[0] = 99
		require.Equal(t, 0.5, tbl.Data["NDVI"][0])
	})
}

func TestStyleAndVariantStrings(t *testing.T) {
	require.Equal(t, "line", StyleLine.String())
	require.Equal(t, "line+markers", StyleLineMarkers.String())
	require.Equal(t, "scatter", StyleScatter.String())
	require.Equal(t, "live", VariantLive.String())
	require.Equal(t, "history", VariantHistory.String())
}
