package bootstrap

import (
	"database/sql"
	"os"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/interfaces"
	"haxquest/internal/pkg"
	"haxquest/internal/pkg/caching"
	"haxquest/internal/pkg/limiter"
	"haxquest/internal/pkg/lock"
	"haxquest/internal/scoring"
	"haxquest/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	LOCAL_LIMITER_SIZE = 4096
	LOCK_PREFIX        = "haxquest:lock:"
)

// OptionalEnvs are read with os.Getenv into the envs map; none is required
// for memory mode.
var OptionalEnvs = []string{
	"API_MODE",
	"API_ORIGINS",
	"DB_DSN",
	"DB_PASSWORD",
	"REDIS_CACHE",
	"CLUSTER_REDIS_CACHE",
	"REDIS_LIMITER",
	"CLUSTER_REDIS_LIMITER",
	"REDIS_MUTEX",
	"CLUSTER_REDIS_MUTEX",
	services.CONFIG_SERVER_MODE,
	services.CONFIG_STORAGE_MODE,
	services.CONFIG_REMOTE_URL,
	services.CONFIG_REMOTE_KEY,
	services.CONFIG_REMOTE_TIMEOUT_SECONDS,
	services.CONFIG_REMOTE_RETRIES,
	services.CONFIG_TABLE_PROGRESS,
	services.CONFIG_TABLE_AUDIT,
	services.CONFIG_TABLE_REPLAY,
	services.CONFIG_TABLE_LEDGER,
	services.CONFIG_FEATURE_COST_CHAT,
	services.CONFIG_FEATURE_COST_RUNNER,
	services.CONFIG_FEATURE_COST_ALERT,
	services.CONFIG_FEATURE_COST_BOT_CREATE,
	services.CONFIG_AUTO_REMEDIATION_ENABLED,
	services.CONFIG_AUTO_REMEDIATION_COOLDOWN_MINUTES,
	services.CONFIG_PAYOUT_PLAN,
	services.CONFIG_REPLAY_TTL_SECONDS,
	services.CONFIG_REPLAY_TTL_MIN_SECONDS,
	services.CONFIG_REPLAY_TTL_MAX_SECONDS,
	services.CONFIG_ADMIN_API_KEY,
	services.CONFIG_ADMIN_BEARER_TOKEN,
	services.CONFIG_CRON_SECRET,
	services.CONFIG_ADMIN_RATE_LIMIT_PER_MINUTE,
	services.CONFIG_LEADERBOARD_CACHE_SECONDS,
}

type storage struct {
	gateway datastore.Gateway
	status  *datastore.Status
}

// NewContainer registers every dependency of the binaries. Redis and
// postgres are optional: without them the in-process cache, limiter, locks
// and memory gateway are used.
func NewContainer(vs map[string]string) *do.Injector {
	injector := do.New()
	for _, key := range OptionalEnvs {
		if _, ok := vs[key]; !ok {
			vs[key] = os.Getenv(key)
		}
	}
	if vs["API_MODE"] == "" {
		vs["API_MODE"] = "production"
	}
	if vs["API_ORIGINS"] == "" {
		vs["API_ORIGINS"] = "*"
	}

	do.ProvideNamedValue(injector, "envs", vs)

	do.Provide(injector, func(i *do.Injector) (*services.Settings, error) {
		return services.LoadSettings(vs), nil
	})

	do.Provide(injector, func(i *do.Injector) (pkg.Clock, error) {
		return pkg.SystemClock{}, nil
	})

	// nil when DB_DSN is unset
	do.Provide(injector, func(i *do.Injector) (*bun.DB, error) {
		if vs["DB_DSN"] == "" {
			return nil, nil
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(vs["DB_DSN"]),
			pgdriver.WithPassword(vs["DB_PASSWORD"]),
		))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	})

	do.ProvideNamed(injector, "redis-cache", func(i *do.Injector) (redis.UniversalClient, error) {
		return openRedis(vs["REDIS_CACHE"], vs["CLUSTER_REDIS_CACHE"])
	})

	do.ProvideNamed(injector, "redis-limiter", func(i *do.Injector) (redis.UniversalClient, error) {
		return openRedis(vs["REDIS_LIMITER"], vs["CLUSTER_REDIS_LIMITER"])
	})

	do.ProvideNamed(injector, "redis-mutex", func(i *do.Injector) (redis.UniversalClient, error) {
		return openRedis(vs["REDIS_MUTEX"], vs["CLUSTER_REDIS_MUTEX"])
	})

	do.Provide(injector, func(i *do.Injector) (*storage, error) {
		settings, err := do.Invoke[*services.Settings](i)
		if err != nil {
			return nil, err
		}
		bunDB, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}

		cfg := settings.DatastoreConfig()
		cfg.DB = bunDB
		gateway, status := datastore.Open(cfg)
		return &storage{gateway, status}, nil
	})

	do.Provide(injector, func(i *do.Injector) (datastore.Gateway, error) {
		s, err := do.Invoke[*storage](i)
		if err != nil {
			return nil, err
		}
		return s.gateway, nil
	})

	do.Provide(injector, func(i *do.Injector) (*datastore.Status, error) {
		s, err := do.Invoke[*storage](i)
		if err != nil {
			return nil, err
		}
		return s.status, nil
	})

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		settings, err := do.Invoke[*services.Settings](i)
		if err != nil {
			return nil, err
		}
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-cache")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, max(settings.LeaderboardCacheTTL, time.Second))
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Limiter, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-limiter")
		if err != nil {
			return nil, err
		}
		if dbRedis == nil {
			return limiter.NewLocalLimiter(LOCAL_LIMITER_SIZE)
		}

		return limiter.NewLimiter(dbRedis)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Locker, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-mutex")
		if err != nil {
			return nil, err
		}
		if dbRedis == nil {
			return lock.NewLocal(), nil
		}

		pool := goredis.NewPool(dbRedis)
		rs := redsync.New(pool)
		return lock.NewDistributed(rs, LOCK_PREFIX), nil
	})

	do.Provide(injector, func(i *do.Injector) (*scoring.Catalog, error) {
		return scoring.DefaultCatalog(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*scoring.QuestRotation, error) {
		catalog, err := do.Invoke[*scoring.Catalog](i)
		if err != nil {
			return nil, err
		}
		return scoring.NewQuestRotation(catalog)
	})

	services.ProvideServices(injector)
	return injector
}

// openRedis returns a nil client when neither url is set.
func openRedis(url, clusterURL string) (redis.UniversalClient, error) {
	if clusterURL != "" {
		clusterOpts, err := redis.ParseClusterURL(clusterURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClusterClient(clusterOpts), nil
	}
	if url == "" {
		return nil, nil
	}
	return db.InitRedis(&db.RedisConfig{
		URL: url,
	})
}
