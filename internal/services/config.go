package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/models"
)

// ConfigurationError reports a malformed option; the option keeps its default.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type Settings struct {
	ServerMode string

	StorageMode   string
	RemoteURL     string
	RemoteKey     string
	RemoteTimeout time.Duration
	RemoteRetries int
	Tables        datastore.TableNames

	FeatureCosts map[models.Feature]int64

	AutoRemediationEnabled  bool
	AutoRemediationCooldown time.Duration

	PayoutPlan map[int]int64

	ReplayTTL    time.Duration
	ReplayTTLMin time.Duration
	ReplayTTLMax time.Duration

	AdminAPIKey      string
	AdminBearerToken string
	CronSecret       string
	AdminRateLimit   int

	LeaderboardCacheTTL time.Duration

	Problems []*ConfigurationError
}

func DefaultSettings() *Settings {
	plan, _ := ParsePayoutPlan(DEFAULT_PAYOUT_PLAN)
	return &Settings{
		ServerMode:    SERVER_MODE_DEVELOPMENT,
		RemoteTimeout: DEFAULT_REMOTE_TIMEOUT_SECONDS * time.Second,
		Tables:        datastore.DefaultTableNames(),
		FeatureCosts: map[models.Feature]int64{
			models.FeatureChat:      1,
			models.FeatureRunner:    2,
			models.FeatureAlert:     3,
			models.FeatureBotCreate: 25,
		},
		AutoRemediationCooldown: DEFAULT_AUTO_REMEDIATION_COOLDOWN,
		PayoutPlan:              plan,
		ReplayTTL:               DEFAULT_REPLAY_TTL,
		ReplayTTLMin:            DEFAULT_REPLAY_TTL_MIN,
		ReplayTTLMax:            DEFAULT_REPLAY_TTL_MAX,
		AdminRateLimit:          DEFAULT_ADMIN_RATE_LIMIT,
		LeaderboardCacheTTL:     CACHE_TTL_5_SECONDS,
	}
}

// LoadSettings never fails: malformed values fall back to their defaults
// and are kept in Problems and logged.
func LoadSettings(vs map[string]string) *Settings {
	s := DefaultSettings()
	p := &settingsParser{vs: vs}

	if v := strings.TrimSpace(vs[CONFIG_SERVER_MODE]); v != "" {
		s.ServerMode = v
	}
	s.StorageMode = strings.TrimSpace(vs[CONFIG_STORAGE_MODE])
	s.RemoteURL = strings.TrimSpace(vs[CONFIG_REMOTE_URL])
	s.RemoteKey = strings.TrimSpace(vs[CONFIG_REMOTE_KEY])
	s.RemoteTimeout = time.Duration(p.intInRange(CONFIG_REMOTE_TIMEOUT_SECONDS, DEFAULT_REMOTE_TIMEOUT_SECONDS, MIN_REMOTE_TIMEOUT_SECONDS, MAX_REMOTE_TIMEOUT_SECONDS)) * time.Second
	s.RemoteRetries = p.intInRange(CONFIG_REMOTE_RETRIES, 0, 0, 5)

	for table, key := range map[datastore.Table]string{
		datastore.TableProgress: CONFIG_TABLE_PROGRESS,
		datastore.TableAudit:    CONFIG_TABLE_AUDIT,
		datastore.TableReplay:   CONFIG_TABLE_REPLAY,
		datastore.TableLedger:   CONFIG_TABLE_LEDGER,
	} {
		if v := strings.TrimSpace(vs[key]); v != "" {
			s.Tables[table] = v
		}
	}

	for feature, key := range map[models.Feature]string{
		models.FeatureChat:      CONFIG_FEATURE_COST_CHAT,
		models.FeatureRunner:    CONFIG_FEATURE_COST_RUNNER,
		models.FeatureAlert:     CONFIG_FEATURE_COST_ALERT,
		models.FeatureBotCreate: CONFIG_FEATURE_COST_BOT_CREATE,
	} {
		s.FeatureCosts[feature] = int64(p.intInRange(key, int(s.FeatureCosts[feature]), 0, 1_000_000))
	}

	s.AutoRemediationEnabled = p.boolean(CONFIG_AUTO_REMEDIATION_ENABLED, false)
	s.AutoRemediationCooldown = time.Duration(p.intInRange(CONFIG_AUTO_REMEDIATION_COOLDOWN_MINUTES, int(DEFAULT_AUTO_REMEDIATION_COOLDOWN/time.Minute), 1, 24*60)) * time.Minute

	if v := strings.TrimSpace(vs[CONFIG_PAYOUT_PLAN]); v != "" {
		plan, err := ParsePayoutPlan(v)
		if err != nil {
			p.problem(CONFIG_PAYOUT_PLAN, v, err)
		} else {
			s.PayoutPlan = plan
		}
	}

	s.ReplayTTLMin = time.Duration(p.intInRange(CONFIG_REPLAY_TTL_MIN_SECONDS, int(DEFAULT_REPLAY_TTL_MIN/time.Second), 1, 3600)) * time.Second
	s.ReplayTTLMax = time.Duration(p.intInRange(CONFIG_REPLAY_TTL_MAX_SECONDS, int(DEFAULT_REPLAY_TTL_MAX/time.Second), 1, 24*3600)) * time.Second
	if s.ReplayTTLMax < s.ReplayTTLMin {
		p.problem(CONFIG_REPLAY_TTL_MAX_SECONDS, vs[CONFIG_REPLAY_TTL_MAX_SECONDS], fmt.Errorf("below %s", CONFIG_REPLAY_TTL_MIN_SECONDS))
		s.ReplayTTLMin, s.ReplayTTLMax = DEFAULT_REPLAY_TTL_MIN, DEFAULT_REPLAY_TTL_MAX
	}
	s.ReplayTTL = time.Duration(p.intInRange(CONFIG_REPLAY_TTL_SECONDS, int(DEFAULT_REPLAY_TTL/time.Second), 1, 24*3600)) * time.Second

	s.AdminAPIKey = vs[CONFIG_ADMIN_API_KEY]
	s.AdminBearerToken = vs[CONFIG_ADMIN_BEARER_TOKEN]
	s.CronSecret = vs[CONFIG_CRON_SECRET]
	s.AdminRateLimit = p.intInRange(CONFIG_ADMIN_RATE_LIMIT_PER_MINUTE, DEFAULT_ADMIN_RATE_LIMIT, 0, 10_000)
	s.LeaderboardCacheTTL = time.Duration(p.intInRange(CONFIG_LEADERBOARD_CACHE_SECONDS, int(CACHE_TTL_5_SECONDS/time.Second), 0, 3600)) * time.Second

	s.Problems = p.problems
	for _, e := range s.Problems {
		slog.Warn("configuration value ignored, using default", "key", e.Key, "value", e.Value, "error", e.Err)
	}
	return s
}

func (s *Settings) DatastoreConfig() datastore.Config {
	return datastore.Config{
		Mode:          s.StorageMode,
		RemoteURL:     s.RemoteURL,
		RemoteKey:     s.RemoteKey,
		RemoteTimeout: s.RemoteTimeout,
		RemoteRetries: s.RemoteRetries,
		Tables:        s.Tables,
	}
}

// ParsePayoutPlan reads "rank:amount" pairs separated by commas.
func ParsePayoutPlan(v string) (map[int]int64, error) {
	plan := make(map[int]int64)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rankStr, amountStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not rank:amount", part)
		}
		rank, err := strconv.Atoi(strings.TrimSpace(rankStr))
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("entry %q has an invalid rank", part)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(amountStr), 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("entry %q has an invalid amount", part)
		}
		if _, dup := plan[rank]; dup {
			return nil, fmt.Errorf("rank %d listed twice", rank)
		}
		plan[rank] = amount
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("empty plan")
	}
	return plan, nil
}

func PlanRanks(plan map[int]int64) []int {
	ranks := make([]int, 0, len(plan))
	for r := range plan {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return ranks
}

type settingsParser struct {
	vs       map[string]string
	problems []*ConfigurationError
}

func (p *settingsParser) problem(key, value string, err error) {
	p.problems = append(p.problems, &ConfigurationError{Key: key, Value: value, Err: err})
}

func (p *settingsParser) intInRange(key string, def, min, max int) int {
	raw := strings.TrimSpace(p.vs[key])
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.problem(key, raw, err)
		return def
	}
	if v < min || v > max {
		p.problem(key, raw, fmt.Errorf("outside [%d, %d]", min, max))
		return def
	}
	return v
}

func (p *settingsParser) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(p.vs[key])
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.problem(key, raw, err)
		return def
	}
	return v
}
