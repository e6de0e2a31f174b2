package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool

	RedisAddr        string
	DatasetsEnabled  bool
	DatasetKeyPrefix string
	CacheOpTimeout   time.Duration

	SessionMax     int
	ParseCacheSize int
	MaxUploadBytes int64
	CSVMode        string
	CategoryPolicy model.CategoryPolicy

	ClusterResMin int
	ClusterResMax int

	Events EventsCfg
}

const (
	CSVModeSimple  = "simple"
	CSVModeRFC4180 = "rfc4180"
)

func FromEnv() Config {
	minRes := getint("CLUSTER_RES_MIN", 0)
	maxRes := getint("CLUSTER_RES_MAX", 9)
	if minRes < 0 {
		minRes = 0
	}
	if maxRes > 15 {
		maxRes = 15
	}
	if minRes > maxRes {
		minRes, maxRes = 0, 9
	}

	mode := strings.ToLower(getenv("INGEST_CSV_MODE", CSVModeSimple))
	if mode != CSVModeRFC4180 {
		mode = CSVModeSimple
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),

		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		DatasetsEnabled:  getbool("DATASETS_ENABLED", true),
		DatasetKeyPrefix: getenv("DATASET_KEY_PREFIX", "geoinsights"),
		CacheOpTimeout:   getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		SessionMax:     getint("SESSION_MAX", 1024),
		ParseCacheSize: getint("PARSE_CACHE_SIZE", 128),
		MaxUploadBytes: getint64("MAX_UPLOAD_BYTES", 10<<20),
		CSVMode:        mode,
		CategoryPolicy: model.ParseCategoryPolicy(getenv("CATEGORY_EMPTY_POLICY", string(model.CategoryEmptyMatchesAll))),

		ClusterResMin: minRes,
		ClusterResMax: maxRes,

		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "dataset-events"),
			GroupID: getenv("KAFKA_GROUP_ID", "geoinsights"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a list, skipping blanks
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
