package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Values is the flat key/value source used in silent mode
type Values map[string]string

// Lookup returns the value stored under key
func (v Values) Lookup(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	val, ok := v[key]
	return val, ok
}

// Merge returns a new Values with other layered over v
func (v Values) Merge(other Values) Values {
	out := make(Values, len(v)+len(other))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range other {
		out[k] = val
	}
	return out
}

// ParsePairs builds Values from key=value pairs already split by the flag
// parser, stripping one level of surrounding quotes from keys and values.
func ParsePairs(pairs map[string]string) Values {
	out := make(Values, len(pairs))
	for k, v := range pairs {
		out[stripQuotes(strings.TrimSpace(k))] = stripQuotes(strings.TrimSpace(v))
	}
	return out
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// LoadValuesFile reads a flat JSON or YAML mapping of silent values.
// Scalar values of any type are coerced to strings.
func LoadValuesFile(fs afero.Fs, path string) (Values, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read silent values file %s: %w", path, err)
	}

	// JSON is a subset of YAML, so one decoder serves both formats
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse silent values file %s: %w", path, err)
	}

	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("silent value %q in %s must be a scalar", k, path)
		case nil:
			raw[k] = ""
		case bool:
			// weak decoding would turn bools into "1"/"0"
			raw[k] = strconv.FormatBool(v.(bool))
		}
	}

	values := Values{}
	if err := mapstructure.WeakDecode(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to decode silent values file %s: %w", path, err)
	}
	return values, nil
}
