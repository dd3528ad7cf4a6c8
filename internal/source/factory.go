package source

import (
	"fmt"

	"github.com/ppiankov/varscore/internal/config"
)

// NewClient creates the client of a named source
func NewClient(name string, cfg config.Config, opts Options) (Client, error) {
	switch name {
	case config.SourceMyVariant:
		return NewMyVariant(name, cfg.Endpoints.MyVariant, cfg.Genome, opts), nil

	case config.SourceEnsemblVEP:
		return NewEnsemblVEP(name, cfg.Endpoints.Ensembl, opts), nil

	case config.SourceClinVar:
		return NewClinVar(name, cfg.Endpoints.EUtils, cfg.Genome, cfg.NCBIAPIKey, opts), nil

	case config.SourcePhyloP:
		return NewConservation(name, TrackPhyloP, cfg.Endpoints.UCSC, cfg.Genome, opts), nil

	case config.SourcePhastCons:
		return NewConservation(name, TrackPhastCons, cfg.Endpoints.UCSC, cfg.Genome, opts), nil

	default:
		return nil, fmt.Errorf("unknown source: %s (supported: %v)", name, config.AllSources)
	}
}

// NewClients creates the enabled sources in configured order
func NewClients(cfg config.Config, opts Options) ([]Client, error) {
	clients := make([]Client, 0, len(cfg.EnabledSources))
	for _, name := range cfg.EnabledSources {
		c, err := NewClient(name, cfg, opts)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// OptionsFromConfig maps the request settings of cfg onto Options
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.BaseDelay,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
	}
}
