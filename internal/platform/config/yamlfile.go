package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"tower/internal/platform/logger"
)

// yamlStore holds the lowest-precedence configuration layer: values parsed
// from a YAML file, flattened into the same underscore-joined env-key space as Conf,
// e.g. `redis: {host: localhost}` becomes key "REDIS_HOST".
//
// Precedence mirrors the original settings loader: process env wins, then
// the env file (see envfile.go), then this YAML layer, then hardcoded
// defaults passed to May*.
var (
	yamlStoreMu sync.RWMutex
	yamlStore   = map[string]string{}
)

// LoadYAMLDefaults parses path as YAML and merges its flattened keys into
// the process-wide YAML defaults layer. A missing file is not an error.
func LoadYAMLDefaults(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse yaml config %s: %w", path, err)
	}

	flat := map[string]string{}
	flattenYAML("", doc, flat)

	yamlStoreMu.Lock()
	for k, v := range flat {
		yamlStore[k] = v
	}
	yamlStoreMu.Unlock()

	logger.Get().Debug().Str("path", path).Int("keys", len(flat)).Msg("loaded yaml config defaults")
	return nil
}

// flattenYAML walks a decoded YAML document and writes UPPER_SNAKE keys
// joined by "_" (matching the env-var namespace) into out.
func flattenYAML(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := strings.ToUpper(k)
			if prefix != "" {
				key = prefix + "_" + key
			}
			flattenYAML(key, child, out)
		}
	case map[any]any:
		for rawK, child := range v {
			k := strings.ToUpper(fmt.Sprintf("%v", rawK))
			key := k
			if prefix != "" {
				key = prefix + "_" + k
			}
			flattenYAML(key, child, out)
		}
	default:
		out[prefix] = stringifyYAMLScalar(v)
	}
}

func stringifyYAMLScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// yamlLookup returns the YAML-layer value for a fully-qualified key, if any.
func yamlLookup(key string) (string, bool) {
	yamlStoreMu.RLock()
	defer yamlStoreMu.RUnlock()
	v, ok := yamlStore[strings.ToUpper(key)]
	return v, ok
}

// ResetYAMLDefaults clears the YAML layer. Used by tests.
func ResetYAMLDefaults() {
	yamlStoreMu.Lock()
	yamlStore = map[string]string{}
	yamlStoreMu.Unlock()
}
