package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"tower/internal/core/cache"
	"tower/internal/core/plugins"
	"tower/internal/core/plugins/credential/vaultcred"
	"tower/internal/core/plugins/driver/drivera"
	"tower/internal/core/plugins/driver/driverb"
	"tower/internal/core/queue"
	"tower/internal/core/stats"
	"tower/internal/core/worker"
	"tower/internal/modkit/repokit"
	"tower/internal/platform/config"
	"tower/internal/platform/logger"
	"tower/internal/platform/store"
)

func main() {
	l := logger.Get()
	if err := config.LoadEnvFile(os.Getenv("TOWER_ENV_FILE")); err != nil {
		l.Panic().Err(err).Msg("failed to load env file")
	}
	if err := config.LoadYAMLDefaults(os.Getenv("TOWER_CONFIG_YAML")); err != nil {
		l.Panic().Err(err).Msg("failed to load yaml config defaults")
	}

	root := config.New()
	workerCfg := root.Prefix("TOM_WORKER_")

	registerExplicitPlugins()

	st, err := store.Open(
		context.Background(),
		store.Config{
			RDS: store.RedisConfig{
				Enabled: true,
				Addr:    workerCfg.MayString("REDIS_ADDR", "localhost:6379"),
			},
			PG: store.PGConfig{
				Enabled: workerCfg.MayBool("PG_ENABLED", false),
				URL:     workerCfg.MayString("PG_URL", ""),
			},
			CH: store.CHConfig{
				Enabled:     workerCfg.MayBool("CH_ENABLED", false),
				URL:         workerCfg.MayString("CH_URL", ""),
				LogSQL:      workerCfg.MayBool("CH_LOG_SQL", false),
				ClientName:  "tower-worker",
				ClientTag:   workerCfg.MayString("VERSION", "dev"),
				InsertChunk: workerCfg.MayInt("CH_INSERT_CHUNK", 500),
				MaxRetries:  workerCfg.MayInt("CH_MAX_RETRIES", 3),
				RetryBaseMs: workerCfg.MayInt("CH_RETRY_BASE_MS", 200),
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(context.Background(), st)

	cred, err := buildCredential(workerCfg)
	if err != nil {
		l.Panic().Err(err).Msg("credential plugin construction failed")
	}
	if err := plugins.ValidateAll(context.Background(), cred); err != nil {
		l.Panic().Err(err).Msg("plugin validation failed")
	}

	var (
		workerID      = flag.String("id", workerCfg.MayString("ID", hostnameOr("worker-1")), "worker id, used in heartbeat and stats keys")
		concurrency   = flag.Int("concurrency", workerCfg.MayInt("CONCURRENCY", 4), "max concurrent jobs")
		deviceMaxConc = flag.Int("device-max-concurrent", workerCfg.MayInt("DEVICE_MAX_CONCURRENT", 1), "max concurrent sessions per device")
	)
	flag.Parse()

	w := worker.New(worker.Config{
		WorkerID:            *workerID,
		Version:             workerCfg.MayString("VERSION", "dev"),
		Concurrency:         *concurrency,
		PollEvery:           workerCfg.MayDuration("POLL_EVERY", 500*time.Millisecond),
		LeaseFor:            workerCfg.MayDuration("LEASE_FOR", 5*time.Minute),
		DeviceMaxConcurrent: *deviceMaxConc,
		DeviceLeaseTTL:      workerCfg.MayDuration("DEVICE_LEASE_TTL", 120*time.Second),
		DefaultMaxQueueWait: workerCfg.MayDuration("DEFAULT_MAX_QUEUE_WAIT", 300*time.Second),
	}, worker.Deps{
		Redis:       st.RDS,
		Queue:       queue.New(st.RDS),
		Cache:       cache.New(st.RDS, cache.Config{Enabled: workerCfg.MayBool("CACHE_ENABLED", true)}),
		Stats:       stats.New(st.RDS, stats.WithClickhouse(st.CH)),
		Credentials: cred,
		Drivers: map[string]plugins.DriverPort{
			"drivera": drivera.New(),
			"driverb": driverb.New(),
		},
	})

	if err := w.Run(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("worker stopped")
	}
}

func hostnameOr(def string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return def
	}
	return h
}

// registerExplicitPlugins registers the credential plugin(s) that need more
// than the lookup-func factory signature, mirroring cmd/tower-api.
func registerExplicitPlugins() {
	plugins.RegisterCredential("vault", func(lookup func(key, def string) string) (plugins.CredentialPort, error) {
		return vaultcred.New(vaultcred.Config{
			Addr:       lookup("addr", "http://127.0.0.1:8200"),
			Token:      lookup("token", ""),
			RoleID:     lookup("role_id", ""),
			SecretID:   lookup("secret_id", ""),
			MountPath:  lookup("mount_path", "secret"),
			PathPrefix: lookup("path_prefix", "credentials"),
		})
	})
}

func pluginLookup(c config.Conf, name string) func(key, def string) string {
	scoped := c.Prefix("PLUGIN_" + strings.ToUpper(name) + "_")
	return func(key, def string) string { return scoped.MayString(strings.ToUpper(key), def) }
}

func buildCredential(c config.Conf) (plugins.CredentialPort, error) {
	name := c.MayString("CREDENTIAL_PLUGIN", "yaml")
	return plugins.BuildCredential(name, pluginLookup(c, name))
}
