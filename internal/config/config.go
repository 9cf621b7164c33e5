package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
	} `yaml:"server"`
	Discovery struct {
		IntervalSeconds     int      `yaml:"interval_seconds"`
		CycleTimeoutSeconds int      `yaml:"cycle_timeout_seconds"`
		BaseAssets          []string `yaml:"base_assets"`
		MinHops             int      `yaml:"min_hops"`
		MaxHops             int      `yaml:"max_hops"`
		MaxOutDegree        int      `yaml:"max_out_degree_per_node"`
		SourceDiversity     bool     `yaml:"require_source_diversity"`
		ScoreWorkers        int      `yaml:"score_workers"`
	} `yaml:"discovery"`
	Feed struct {
		MaxConcurrency   int          `yaml:"max_concurrency"`
		SourceTimeoutMs  int          `yaml:"source_timeout_ms"`
		SourceRatePerSec float64      `yaml:"source_rate_per_sec"`
		SourceRateBurst  int          `yaml:"source_rate_burst"`
		StalenessTTLMs   int          `yaml:"staleness_ttl_ms"`
		MinLiquidity     float64      `yaml:"min_liquidity"`
		DisabledSources  []string     `yaml:"disabled_sources"`
		HTTPSources      []HTTPSource `yaml:"http_sources"`
		CSVSources       []CSVSource  `yaml:"csv_sources"`
	} `yaml:"feed"`
	Profit struct {
		ImpactModel       string    `yaml:"impact_model"`  // constant_product, linear, none
		ImpactCoef        float64   `yaml:"impact_coef"`   // linear model only
		SizingPolicy      string    `yaml:"sizing_policy"` // sweep or search
		TradeSizes        []float64 `yaml:"trade_sizes"`
		MinSize           float64   `yaml:"min_size"`
		MaxSize           float64   `yaml:"max_size"`
		FixedNetworkCost  float64   `yaml:"fixed_network_cost"`
		MEVProtectionCost float64   `yaml:"mev_protection_cost"`
		LiquidityWeight   float64   `yaml:"liquidity_weight"`
		FreshnessWeight   float64   `yaml:"freshness_weight"`
		DiversityWeight   float64   `yaml:"diversity_weight"`
	} `yaml:"profit"`
	Guard struct {
		MaxSameTokenRepeats int `yaml:"max_same_token_repeats"`
		CooldownSeconds     int `yaml:"cooldown_seconds"`
		OscillationSeconds  int `yaml:"oscillation_seconds"` // 0 = use cooldown
		RetentionSeconds    int `yaml:"retention_seconds"`
		Store               struct {
			Kind   string `yaml:"kind"` // memory, sqlite, redis
			Path   string `yaml:"path"` // sqlite file
			Addr   string `yaml:"addr"` // redis address
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"store"`
	} `yaml:"guard"`
	Ranking struct {
		MinNetProfit  float64 `yaml:"min_net_profit"`
		MinConfidence float64 `yaml:"min_confidence_threshold"`
		MaxEmitted    int     `yaml:"max_emitted"`
	} `yaml:"ranking"`
	Execution struct {
		Enabled bool `yaml:"enabled"`
		Paper   bool `yaml:"paper"`
	} `yaml:"execution"`
}

type HTTPSource struct {
	Name   string  `yaml:"name"`
	URL    string  `yaml:"url"`
	FeeBps float64 `yaml:"fee_bps"`
}

type CSVSource struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Discovery.IntervalSeconds = 5
	c.Discovery.CycleTimeoutSeconds = 4
	c.Discovery.BaseAssets = []string{"SOL", "USDC"}
	c.Discovery.MinHops = 2
	c.Discovery.MaxHops = 3
	c.Discovery.MaxOutDegree = 40
	c.Discovery.SourceDiversity = false
	c.Discovery.ScoreWorkers = 0 // 0 = GOMAXPROCS
	c.Feed.MaxConcurrency = 8
	c.Feed.SourceTimeoutMs = 2500
	c.Feed.SourceRatePerSec = 4
	c.Feed.SourceRateBurst = 2
	c.Feed.StalenessTTLMs = 10000
	c.Feed.MinLiquidity = 1000
	c.Profit.ImpactModel = "constant_product"
	c.Profit.ImpactCoef = 1.0
	c.Profit.SizingPolicy = "sweep"
	c.Profit.TradeSizes = []float64{10, 100, 1000}
	c.Profit.MinSize = 1
	c.Profit.MaxSize = 10000
	c.Profit.FixedNetworkCost = 0.05
	c.Profit.MEVProtectionCost = 0
	c.Profit.LiquidityWeight = 0.5
	c.Profit.FreshnessWeight = 0.3
	c.Profit.DiversityWeight = 0.2
	c.Guard.MaxSameTokenRepeats = 1
	c.Guard.CooldownSeconds = 30
	c.Guard.OscillationSeconds = 0
	c.Guard.RetentionSeconds = 600
	c.Guard.Store.Kind = "memory"
	c.Guard.Store.Prefix = "cyclarb"
	c.Ranking.MinNetProfit = 0.01
	c.Ranking.MinConfidence = 0.3
	c.Ranking.MaxEmitted = 20
	c.Execution.Enabled = false
	c.Execution.Paper = true
	return c
}

func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("CYCLARB_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("CYCLARB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CYCLARB_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("CYCLARB_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CYCLARB_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("CYCLARB_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("CYCLARB_BASE_ASSETS"); v != "" {
		c.Discovery.BaseAssets = splitCSV(v)
	}
	if v := os.Getenv("CYCLARB_MAX_HOPS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Discovery.MaxHops = n
		}
	}
	if v := os.Getenv("CYCLARB_MIN_NET_PROFIT"); v != "" {
		var f float64
		_, _ = fmt.Sscan(v, &f)
		c.Ranking.MinNetProfit = f
	}
	if v := os.Getenv("CYCLARB_MIN_CONFIDENCE"); v != "" {
		var f float64
		_, _ = fmt.Sscan(v, &f)
		c.Ranking.MinConfidence = f
	}
	if v := os.Getenv("CYCLARB_COOLDOWN_SECONDS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Guard.CooldownSeconds = n
		}
	}
	if v := os.Getenv("CYCLARB_EXECUTION_ENABLED"); v == "1" || v == "true" {
		c.Execution.Enabled = true
	}
	if v := os.Getenv("CYCLARB_LEDGER_STORE"); v != "" {
		c.Guard.Store.Kind = v
	}
	if v := os.Getenv("CYCLARB_LEDGER_SQLITE_PATH"); v != "" {
		c.Guard.Store.Path = v
	}
	if v := os.Getenv("CYCLARB_LEDGER_REDIS_ADDR"); v != "" {
		c.Guard.Store.Addr = v
	}
	return c
}

// Validate reports invalid static configuration. These are the only fatal
// startup conditions; everything at runtime degrades to an empty tick.
func (c Config) Validate() error {
	if c.Discovery.MinHops < 2 || c.Discovery.MaxHops > 3 || c.Discovery.MinHops > c.Discovery.MaxHops {
		return fmt.Errorf("discovery: hop bounds [%d,%d] outside supported range [2,3]", c.Discovery.MinHops, c.Discovery.MaxHops)
	}
	if len(c.Discovery.BaseAssets) == 0 {
		return fmt.Errorf("discovery: at least one base asset required")
	}
	if c.Discovery.MaxOutDegree <= 0 {
		return fmt.Errorf("discovery: max_out_degree_per_node must be positive")
	}
	switch c.Profit.ImpactModel {
	case "constant_product", "linear", "none":
	default:
		return fmt.Errorf("profit: unknown impact model %q", c.Profit.ImpactModel)
	}
	switch c.Profit.SizingPolicy {
	case "sweep":
		if len(c.Profit.TradeSizes) == 0 {
			return fmt.Errorf("profit: sweep policy requires a non-empty trade_sizes list")
		}
		for _, s := range c.Profit.TradeSizes {
			if s <= 0 {
				return fmt.Errorf("profit: trade size %v must be positive", s)
			}
		}
	case "search":
		if c.Profit.MinSize <= 0 || c.Profit.MaxSize <= c.Profit.MinSize {
			return fmt.Errorf("profit: search policy requires 0 < min_size < max_size, got [%v,%v]", c.Profit.MinSize, c.Profit.MaxSize)
		}
	default:
		return fmt.Errorf("profit: unknown sizing policy %q", c.Profit.SizingPolicy)
	}
	if c.Profit.LiquidityWeight < 0 || c.Profit.FreshnessWeight < 0 || c.Profit.DiversityWeight < 0 {
		return fmt.Errorf("profit: confidence weights must be non-negative")
	}
	if w := c.Profit.LiquidityWeight + c.Profit.FreshnessWeight + c.Profit.DiversityWeight; w <= 0 {
		return fmt.Errorf("profit: confidence weights must sum to a positive value, got %v", w)
	}
	if c.Guard.MaxSameTokenRepeats < 1 {
		return fmt.Errorf("guard: max_same_token_repeats must be at least 1")
	}
	if c.Guard.CooldownSeconds <= 0 || c.Guard.RetentionSeconds <= 0 {
		return fmt.Errorf("guard: cooldown and retention windows must be positive")
	}
	if c.Guard.RetentionSeconds < c.Guard.CooldownSeconds {
		return fmt.Errorf("guard: retention window shorter than cooldown window")
	}
	switch c.Guard.Store.Kind {
	case "memory":
	case "sqlite":
		if c.Guard.Store.Path == "" {
			return fmt.Errorf("guard: sqlite store requires a path")
		}
	case "redis":
		if c.Guard.Store.Addr == "" {
			return fmt.Errorf("guard: redis store requires an address")
		}
	default:
		return fmt.Errorf("guard: unknown ledger store %q", c.Guard.Store.Kind)
	}
	if c.Feed.MaxConcurrency <= 0 {
		return fmt.Errorf("feed: max_concurrency must be positive")
	}
	return nil
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Discovery.IntervalSeconds) * time.Second
}

func (c Config) CycleTimeout() time.Duration {
	return time.Duration(c.Discovery.CycleTimeoutSeconds) * time.Second
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Feed.SourceTimeoutMs) * time.Millisecond
}

func (c Config) StalenessTTL() time.Duration {
	return time.Duration(c.Feed.StalenessTTLMs) * time.Millisecond
}

func (c Config) CooldownWindow() time.Duration {
	return time.Duration(c.Guard.CooldownSeconds) * time.Second
}

func (c Config) OscillationWindow() time.Duration {
	if c.Guard.OscillationSeconds > 0 {
		return time.Duration(c.Guard.OscillationSeconds) * time.Second
	}
	return c.CooldownWindow()
}

func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.Guard.RetentionSeconds) * time.Second
}

func (c Config) SourceDisabled(name string) bool {
	for _, s := range c.Feed.DisabledSources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
