// Package sample defines the metric results handed to writers each cycle.
//
// A Result is what a collector produced for one attribute of one source:
// a type-name tag string such as "name=PS Eden Space,type=MemoryPool", the
// attribute name, and a map of sub-key to dynamically typed value. Writers
// flatten results into Samples, one per sub-key.
package sample

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Result is one collected attribute.
type Result struct {
	TypeName  string         `yaml:"type_name" json:"type_name"`
	Attribute string         `yaml:"attribute" json:"attribute"`
	Values    map[string]any `yaml:"values" json:"values"`
}

// Sample is one value of one Result.
type Sample struct {
	TypeName    string
	SeriesGroup string
	MetricName  string
	SubKey      string
	Value       any
}

// String identifies the sample in log lines and errors.
func (s Sample) String() string {
	return fmt.Sprintf("%s:%s:%s", s.TypeName, s.MetricName, s.SubKey)
}

// Flatten expands results into samples. typeNames selects the type-name
// keys whose values form each sample's series group. Sub-keys are visited
// in sorted order so the output is deterministic.
func Flatten(results []Result, typeNames []string) []Sample {
	var out []Sample
	for _, res := range results {
		if len(res.Values) == 0 {
			continue
		}

		group := SeriesGroup(res.TypeName, typeNames)

		keys := make([]string, 0, len(res.Values))
		for k := range res.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			out = append(out, Sample{
				TypeName:    res.TypeName,
				SeriesGroup: group,
				MetricName:  res.Attribute,
				SubKey:      k,
				Value:       res.Values[k],
			})
		}
	}
	return out
}

// SeriesGroup joins the values of the selected keys of a type-name string
// with "_", in the order of typeNames. Keys absent from typeName are
// skipped; the result is empty when nothing matches.
func SeriesGroup(typeName string, typeNames []string) string {
	if typeName == "" || len(typeNames) == 0 {
		return ""
	}

	tags := make(map[string]string)
	for _, token := range strings.Split(typeName, ",") {
		k, v, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		// A repeated key keeps its last value.
		tags[k] = v
	}

	parts := make([]string, 0, len(typeNames))
	for _, key := range typeNames {
		if v, ok := tags[key]; ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "_")
}

// =============================================================================
// Values
// =============================================================================

// IsNumeric returns true for Go numeric values and for strings that parse
// as finite numbers.
func IsNumeric(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
	default:
		return false
	}
}

// Unknown is rrdtool's marker for a missing value.
const Unknown = "U"

// FormatValue renders a numeric value as an rrdtool update field.
// NaN and infinities become Unknown.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case string:
		return strings.TrimSpace(x)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Unknown
	}
	if abs := math.Abs(f); abs == 0 || (abs >= 1e-4 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
