package tfiac

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

// Protocol operation modes as reported in BaseMode.
const (
	OperationHeat = "heat"
	OperationAuto = "selfFeel"
	OperationDry  = "dehumi"
	OperationFan  = "fan"
	OperationCool = "cool"
	OperationOff  = "off"
)

var hvacPairs = []struct {
	mode      climate.HVACMode
	operation string
}{
	{climate.HVACHeat, OperationHeat},
	{climate.HVACAuto, OperationAuto},
	{climate.HVACDry, OperationDry},
	{climate.HVACFanOnly, OperationFan},
	{climate.HVACCool, OperationCool},
	{climate.HVACOff, OperationOff},
}

var (
	hvacToOperation = make(map[climate.HVACMode]string, len(hvacPairs))
	operationToHVAC = make(map[string]climate.HVACMode, len(hvacPairs))
	hvacModes       = make([]climate.HVACMode, 0, len(hvacPairs))
)

func init() {
	for _, p := range hvacPairs {
		hvacToOperation[p.mode] = p.operation
		operationToHVAC[p.operation] = p.mode
		hvacModes = append(hvacModes, p.mode)
	}
}

var (
	fanModes   = []string{climate.FanAuto, climate.FanHigh, climate.FanMedium, climate.FanLow}
	swingModes = []string{climate.SwingOff, climate.SwingHorizontal, climate.SwingVertical, climate.SwingBoth}
)

// capitalize upper-cases the first rune and lower-cases the rest, which
// is how the unit spells fan and swing values.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
