package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"chainsync/internal/domain"

	"gopkg.in/yaml.v3"
)

// ExchangeRegistry lists addresses known to belong to exchanges, per chain.
//
//	exchanges:
//	  - name: binance
//	    addresses:
//	      eth: ["0x28c6c06298d514db089934071355e5743bf21d60"]
//	      btc: ["34xp4vRoCGJym3xR7yCVPFHoCNxv4Twseo"]
type ExchangeRegistry struct {
	Exchanges []Exchange `yaml:"exchanges"`
}

type Exchange struct {
	Name      string              `yaml:"name"`
	Addresses map[string][]string `yaml:"addresses"`
}

func LoadExchangeRegistry(path string) (ExchangeRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return ExchangeRegistry{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExchangeRegistry{}, fmt.Errorf("read exchange registry: %w", err)
	}
	return ParseExchangeRegistry(raw)
}

func ParseExchangeRegistry(raw []byte) (ExchangeRegistry, error) {
	var registry ExchangeRegistry
	if err := yaml.Unmarshal(raw, &registry); err != nil {
		return ExchangeRegistry{}, fmt.Errorf("parse exchange registry: %w", err)
	}
	for i, exchange := range registry.Exchanges {
		if strings.TrimSpace(exchange.Name) == "" {
			return ExchangeRegistry{}, fmt.Errorf("exchange %d has no name", i)
		}
		for chain := range exchange.Addresses {
			if _, err := domain.ParseChain(chain); err != nil {
				return ExchangeRegistry{}, errors.Join(fmt.Errorf("exchange %s", exchange.Name), err)
			}
		}
	}
	return registry, nil
}

// Addresses returns every registered address on chain.
func (r ExchangeRegistry) Addresses(chain domain.Chain) []string {
	var out []string
	for _, exchange := range r.Exchanges {
		for key, addresses := range exchange.Addresses {
			parsed, err := domain.ParseChain(key)
			if err != nil || parsed != chain {
				continue
			}
			out = append(out, addresses...)
		}
	}
	return out
}
