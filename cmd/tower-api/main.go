// @title         Tower API
// @version       0.1.0
// @description   Job-dispatch and fleet-monitoring endpoints for the
// @description   network-automation broker: submit/poll jobs, inspect
// @description   cache and worker state, enumerate inventory and
// @description   credentials.

package main

import (
	"context"
	"os"
	"strings"

	"tower/internal/core/authn"
	"tower/internal/core/cache"
	"tower/internal/core/plugins"
	"tower/internal/core/plugins/credential/vaultcred"
	"tower/internal/core/plugins/inventory/pginv"
	"tower/internal/core/queue"
	"tower/internal/core/stats"
	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	"tower/internal/modkit/repokit"
	"tower/internal/modkit/swaggerkit"
	"tower/internal/platform/config"
	"tower/internal/platform/logger"
	phttp "tower/internal/platform/net/http"
	"tower/internal/platform/store"

	cacheadminmod "tower/internal/services/cacheadmin/module"
	credentialsmod "tower/internal/services/credentials/module"
	dispatchmod "tower/internal/services/dispatch/module"
	inventorymod "tower/internal/services/inventory/module"
	"tower/internal/services/metrics"
	monitoringmod "tower/internal/services/monitoring/module"
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
	apiCfg := root.Prefix("TOM_")

	registerExplicitPlugins()

	st, err := store.Open(
		context.Background(),
		store.Config{
			RDS: store.RedisConfig{
				Enabled: true,
				Addr:    apiCfg.MayString("REDIS_ADDR", "localhost:6379"),
			},
			PG: store.PGConfig{
				Enabled: apiCfg.MayBool("PG_ENABLED", false),
				URL:     apiCfg.MayString("PG_URL", ""),
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

	inv, err := buildInventory(apiCfg, st)
	if err != nil {
		l.Panic().Err(err).Msg("inventory plugin construction failed")
	}
	cred, err := buildCredential(apiCfg)
	if err != nil {
		l.Panic().Err(err).Msg("credential plugin construction failed")
	}
	if err := plugins.ValidateAll(context.Background(), inv, cred); err != nil {
		l.Panic().Err(err).Msg("plugin validation failed")
	}

	q := queue.New(st.RDS)
	cacheMgr := cache.New(st.RDS, cache.Config{
		Enabled:    apiCfg.MayBool("CACHE_ENABLED", true),
		KeyPrefix:  apiCfg.MayString("CACHE_KEY_PREFIX", "cmd_cache"),
		DefaultTTL: apiCfg.MayDuration("CACHE_DEFAULT_TTL", 0),
		MaxTTL:     apiCfg.MayDuration("CACHE_MAX_TTL", 0),
	})
	statsRecorder := stats.New(st.RDS)

	authenticator := authn.New(authn.FromConf(apiCfg.Prefix("AUTH_")))

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()

	// /metrics is mounted outside the /api prefix and outside the auth
	// middleware stack so scraping never needs a principal.
	metrics.New().MountRoutes(r)

	mws := append(httpkit.CommonStack(), httpkit.Auth(authenticator))

	mods := []modkit.Module{
		dispatchmod.New(q, inv, modkit.WithMiddlewares(mws...)),
		cacheadminmod.New(cacheMgr, modkit.WithMiddlewares(mws...)),
		monitoringmod.New(statsRecorder, modkit.WithMiddlewares(mws...)),
		inventorymod.New(inv, modkit.WithMiddlewares(mws...)),
		credentialsmod.New(cred, modkit.WithMiddlewares(mws...)),
	}

	swaggerkit.Mount(r, apiCfg.MayBool("SWAGGER", true))
	phttp.MountProfiler(r, "/debug", apiCfg.MayBool("PROFILER", false))

	for _, m := range mods {
		m.MountRoutes(r)
	}

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

// registerExplicitPlugins registers the plugins whose construction needs
// more than the lookup-func factory signature (postgres inventory needs an
// opened store; vault credentials needs its own typed config), so they are
// wired directly in main rather than via a package init().
func registerExplicitPlugins() {
	// postgres is registered lazily inside buildInventory once the store is
	// open; vault can register eagerly since its config is lookup-derived.
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

func buildInventory(c config.Conf, st *store.Store) (plugins.InventoryPort, error) {
	name := c.MayString("INVENTORY_PLUGIN", "yaml")
	if name == "postgres" {
		plugins.RegisterInventory("postgres", func(func(key, def string) string) (plugins.InventoryPort, error) {
			return pginv.New(st.PG), nil
		})
	}
	return plugins.BuildInventory(name, pluginLookup(c, name))
}

func buildCredential(c config.Conf) (plugins.CredentialPort, error) {
	name := c.MayString("CREDENTIAL_PLUGIN", "yaml")
	return plugins.BuildCredential(name, pluginLookup(c, name))
}
