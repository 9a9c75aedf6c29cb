package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chainsync/internal/application"
	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"
)

const (
	CheckpointClickhouse = "clickhouse"
	CheckpointMySQL      = "mysql"
	CheckpointSQLite     = "sqlite"
)

type Config struct {
	Chain                domain.Chain
	SyncMode             application.SyncMode
	NodeURL              string
	TronAPIKey           string
	StartBlock           uint64
	MaxTransactions      uint64
	RPCTimeout           time.Duration
	MaxConcurrency       int
	Retry                retry.Policy
	ClickhouseDSN        string
	CheckpointStore      string
	MySQLDSN             string
	SQLitePath           string
	RedisAddr            string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	OtelEndpoint         string
	HTTPAddr             string
	ExchangeRegistryFile string
	LogLevel             string
	LogFormat            string
	LogFile              string
	LogMaxSizeMB         int
	LogMaxBackups        int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// chainKeys names the per-chain variables: node endpoint, start height and
// transaction budget.
var chainKeys = map[domain.Chain][3]string{
	domain.ChainEthereum: {"ETH_RPC_HTTP", "ETH_START_BLOCK", "TOTAL_ETH_TXS"},
	domain.ChainBSC:      {"BSC_RPC_HTTP", "BSC_START_BLOCK", "TOTAL_BSC_TXS"},
	domain.ChainBitcoin:  {"BTC_API_URL", "BTC_START_BLOCK", "TOTAL_BTC_TXS"},
	domain.ChainTron:     {"TRON_RPC_HTTP", "TRON_START_BLOCK", "TOTAL_TRON_TXS"},
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rawMode, ok := source.Lookup("APP_MODE")
	if !ok || strings.TrimSpace(rawMode) == "" {
		return Config{}, errors.New("APP_MODE is required")
	}
	chain, err := domain.ParseChain(rawMode)
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_MODE: %w", err)
	}
	keys := chainKeys[chain]

	rawSync, _ := source.Lookup("SYNC_MODE")
	syncMode, err := application.ParseSyncMode(rawSync)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SYNC_MODE: %w", err)
	}

	nodeURL, ok := source.Lookup(keys[0])
	if !ok || strings.TrimSpace(nodeURL) == "" {
		return Config{}, fmt.Errorf("%s is required", keys[0])
	}
	tronAPIKey, _ := source.Lookup("TRON_API_KEY")

	startBlock, err := parseUintEnv(source, keys[1], 0)
	if err != nil {
		return Config{}, err
	}
	maxTransactions, err := parseUintEnv(source, keys[2], 0)
	if err != nil {
		return Config{}, err
	}

	timeoutSeconds, err := parseUintEnv(source, "RPC_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Config{}, err
	}
	maxConcurrency, err := parseUintEnv(source, "RPC_MAX_CONCURRENCY", 10)
	if err != nil {
		return Config{}, err
	}
	if maxConcurrency == 0 {
		return Config{}, errors.New("RPC_MAX_CONCURRENCY must be at least 1")
	}
	retryAttempts, err := parseUintEnv(source, "RPC_RETRY_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	if retryAttempts == 0 {
		return Config{}, errors.New("RPC_RETRY_ATTEMPTS must be at least 1")
	}
	retryStep, err := parseDurationEnv(source, "RPC_RETRY_STEP", 2*time.Second)
	if err != nil {
		return Config{}, err
	}

	clickhouseDSN, ok := source.Lookup("CLICKHOUSE_DSN")
	if !ok || strings.TrimSpace(clickhouseDSN) == "" {
		clickhouseDSN = "clickhouse://127.0.0.1:9000?database=chainsync"
	}

	checkpointStore := CheckpointClickhouse
	if raw, ok := source.Lookup("CHECKPOINT_STORE"); ok && strings.TrimSpace(raw) != "" {
		checkpointStore = strings.ToLower(strings.TrimSpace(raw))
	}
	mysqlDSN, _ := source.Lookup("MYSQL_DSN")
	sqlitePath, _ := source.Lookup("SQLITE_PATH")
	switch checkpointStore {
	case CheckpointClickhouse:
	case CheckpointMySQL:
		if strings.TrimSpace(mysqlDSN) == "" {
			return Config{}, errors.New("MYSQL_DSN is required when CHECKPOINT_STORE=mysql")
		}
	case CheckpointSQLite:
		if strings.TrimSpace(sqlitePath) == "" {
			sqlitePath = "data/chainsync.db"
		}
	default:
		return Config{}, fmt.Errorf("invalid CHECKPOINT_STORE %q", checkpointStore)
	}

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	kafkaBrokers := parseList(source, "KAFKA_BROKERS")
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "chainsync"
	}
	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	httpAddr, _ := source.Lookup("HTTP_ADDR")
	registryFile, _ := source.Lookup("EXCHANGE_REGISTRY_FILE")

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, _ := source.Lookup("LOG_FORMAT")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 5)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Chain:                chain,
		SyncMode:             syncMode,
		NodeURL:              strings.TrimSpace(nodeURL),
		TronAPIKey:           strings.TrimSpace(tronAPIKey),
		StartBlock:           startBlock,
		MaxTransactions:      maxTransactions,
		RPCTimeout:           time.Duration(timeoutSeconds) * time.Second,
		MaxConcurrency:       int(maxConcurrency),
		Retry:                retry.Policy{MaxAttempts: int(retryAttempts), Step: retryStep},
		ClickhouseDSN:        clickhouseDSN,
		CheckpointStore:      checkpointStore,
		MySQLDSN:             strings.TrimSpace(mysqlDSN),
		SQLitePath:           strings.TrimSpace(sqlitePath),
		RedisAddr:            strings.TrimSpace(redisAddr),
		KafkaBrokers:         kafkaBrokers,
		KafkaTopicPrefix:     kafkaTopicPrefix,
		OtelEndpoint:         strings.TrimSpace(otelEndpoint),
		HTTPAddr:             strings.TrimSpace(httpAddr),
		ExchangeRegistryFile: strings.TrimSpace(registryFile),
		LogLevel:             logLevel,
		LogFormat:            strings.TrimSpace(logFormat),
		LogFile:              strings.TrimSpace(logFile),
		LogMaxSizeMB:         int(logMaxSize),
		LogMaxBackups:        int(logMaxBackups),
	}, nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// parseList splits a comma separated variable. An unset variable yields nil.
func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
