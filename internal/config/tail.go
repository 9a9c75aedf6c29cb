package config

import (
	"errors"
	"fmt"
	"strings"

	"chainsync/internal/domain"
)

// TailConfig configures the stream reader that follows one chain's topic.
type TailConfig struct {
	Chain            domain.Chain
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string
	LogLevel         string
}

func LoadTail(source EnvSource) (TailConfig, error) {
	if source == nil {
		return TailConfig{}, errors.New("env source is required")
	}
	rawMode, _ := source.Lookup("APP_MODE")
	chain, err := domain.ParseChain(rawMode)
	if err != nil {
		return TailConfig{}, fmt.Errorf("invalid APP_MODE: %w", err)
	}
	brokers := parseList(source, "KAFKA_BROKERS")
	if len(brokers) == 0 {
		return TailConfig{}, errors.New("KAFKA_BROKERS is required")
	}
	prefix, _ := source.Lookup("KAFKA_TOPIC_PREFIX")
	if strings.TrimSpace(prefix) == "" {
		prefix = "chainsync"
	}
	groupID, _ := source.Lookup("KAFKA_GROUP_ID")
	if strings.TrimSpace(groupID) == "" {
		groupID = "chainsync-tail-" + chain.String()
	}
	logLevel, _ := source.Lookup("LOG_LEVEL")
	return TailConfig{
		Chain:            chain,
		KafkaBrokers:     brokers,
		KafkaTopicPrefix: strings.TrimSpace(prefix),
		KafkaGroupID:     strings.TrimSpace(groupID),
		LogLevel:         logLevel,
	}, nil
}
