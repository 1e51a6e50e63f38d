package config

import (
	"bufio"
	"os"
	"strings"

	"tower/internal/platform/logger"
)

// LoadEnvFile reads KEY=VALUE pairs from path and applies them via os.Setenv,
// but only for keys not already present in the process environment. This
// mirrors dotenv-style precedence (real env wins over the file) used by the
// Python settings loader this config layer generalizes.
//
// A missing file is not an error; callers pass an optional path (e.g. from
// TOWER_ENV_FILE) and a missing value means "no env file configured".
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	applied := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if k == "" {
			continue
		}
		if _, present := os.LookupEnv(k); present {
			continue
		}
		if err := os.Setenv(k, v); err == nil {
			applied++
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	logger.Get().Debug().Str("path", path).Int("applied", applied).Msg("loaded env file")
	return nil
}
