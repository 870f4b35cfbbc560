package config

import (
	"encoding/hex"
	"posd/crypto"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress  string   `toml:"ListenAddress"`
	RPCAddress     string   `toml:"RPCAddress"`
	AdminAddress   string   `toml:"AdminAddress"`
	DataDir        string   `toml:"DataDir"`
	ValidatorKey   string   `toml:"ValidatorKey"`
	BootstrapPeers []string `toml:"BootstrapPeers"`
	Staking        Staking  `toml:"Staking"`
}

// DefaultStaking returns the genesis-time staking parameters mandated by the
// epoched PoS design: a 2-epoch pipeline, a 21-epoch unbonding/evidence
// horizon, and a single-epoch cubic slashing correlation window.
func DefaultStaking() Staking {
	return Staking{
		PipelineLen:                2,
		UnbondingLen:               21,
		CubicSlashingWindow:        1,
		MaxConsensusValidators:     100,
		MinValidatorStake:         "1000000000000000000",
		MaxCommissionChangeRateBPS: 100,
		RMaxBPS:                    1000,
		RTargetBPS:                 6667,
		EpochsPerYear:              730,
		KPNomBPS:                   12000,
		KDNomBPS:                   12000,
		ProposerBaseBPS:            100,
		ProposerSlopeBPS:           33,
		SetShareBPS:                1000,
		MinSigningFractionBPS:      6700,
		SlashMinRateBPS: map[string]uint32{
			"double_sign": 500,
			"liveness":    1,
		},
	}
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.ValidatorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ValidatorKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":6001",
		RPCAddress:    ":8080",
		AdminAddress:  ":8090",
		DataDir:       "./posd-data",
		ValidatorKey:  hex.EncodeToString(key.Bytes()),
		// Initialize with an empty list of peers by default.
		BootstrapPeers: []string{},
		Staking:        DefaultStaking(),
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
