package config

import (
	"bytes"
	"fmt"
	"os"

	domainconfig "github.com/LoadingLlama/relation/domain/config"

	"gopkg.in/yaml.v3"
)

// LoadDomainConfig builds the domain policy for this deployment: the
// environment preset, overlaid by the YAML file and then by REQUEST_KIND.
func LoadDomainConfig(cfg *Config) (*domainconfig.DomainConfig, error) {
	domain := domainconfig.LoadDomainConfig(cfg.Environment)

	if cfg.DomainConfigFile != "" {
		overlaid, err := loadDomainFile(cfg.DomainConfigFile, domain)
		if err != nil {
			return nil, err
		}
		domain = overlaid
	}

	if cfg.RequestKind != "" {
		domain.RequestKind = domainconfig.RequestKindMode(cfg.RequestKind)
	}

	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain config: %w", err)
	}
	return domain, nil
}

// loadDomainFile decodes path over a copy of base. Keys absent from the
// file keep the base value.
func loadDomainFile(path string, base *domainconfig.DomainConfig) (*domainconfig.DomainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain config file: %w", err)
	}

	domain := base.Clone()
	if len(bytes.TrimSpace(data)) == 0 {
		return domain, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(domain); err != nil {
		return nil, fmt.Errorf("failed to parse domain config YAML: %w", err)
	}
	return domain, nil
}
