package detector

import "fmt"

// Kind is the detected file type.
type Kind string

const (
	// KindSerialLog is a recording of the rig's serial output.
	KindSerialLog Kind = "serial-log"
	// KindFixedCSV is the SD-card log with the fixed 8-column header.
	KindFixedCSV Kind = "fixed-csv"
	// KindGenericCSV is any other delimited numeric file.
	KindGenericCSV Kind = "generic-csv"
	// KindUnknown means neither shape was recognised.
	KindUnknown Kind = "unknown"
)

// Description returns a human-readable name.
func (k Kind) Description() string {
	switch k {
	case KindSerialLog:
		return "recorded serial telemetry"
	case KindFixedCSV:
		return "SD-card CSV log (Time_ms;Temp;Hum;Pressure;NDVI;ax;ay;az)"
	case KindGenericCSV:
		return "generic numeric CSV"
	default:
		return "unrecognised"
	}
}

// Command returns the vignelab command line suited to the file.
func (r *DetectionResult) Command(path string) string {
	switch r.Kind {
	case KindSerialLog:
		return fmt.Sprintf("vignelab live --from-log %s", path)
	case KindFixedCSV:
		return fmt.Sprintf("vignelab replay %s", path)
	case KindGenericCSV:
		return fmt.Sprintf("vignelab explore %s --x %q --y %q", path, r.SuggestedX, r.SuggestedY)
	default:
		return ""
	}
}
