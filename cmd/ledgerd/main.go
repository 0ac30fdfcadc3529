package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ledgercore/cmd/ledgerd/httpapi"
	"ledgercore/internal/blockchain"
	"ledgercore/internal/broadcast"
	"ledgercore/internal/chain"
	"ledgercore/internal/config"
	"ledgercore/internal/crypto"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd := &cobra.Command{Use: "ledgerd"}
	rootCmd.AddCommand(initCmd(log))
	rootCmd.AddCommand(serveCmd(log))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// services returns the node's registered service set. The core module
// ships with no built-in services; a deployment registers its own by
// extending this slice.
func services() []service.Service {
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Engine {
	case "memory", "":
		return store.NewMemStore(), nil
	case "badger":
		return store.OpenBadgerStore(cfg.Storage.DBPath)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

func decodeSeed(s string) ([32]byte, error) {
	var seed [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, err
	}
	copy(seed[:], raw)
	return seed, nil
}

func buildLedger(cfg *config.Config) (*blockchain.Ledger, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var keyPair crypto.KeyPair
	if cfg.Node.ServiceKeyHex != "" {
		seed, err := decodeSeed(cfg.Node.ServiceKeyHex)
		if err != nil {
			return nil, fmt.Errorf("parse node.service_key_hex: %w", err)
		}
		keyPair = crypto.KeyPairFromSeed(seed)
	} else {
		keyPair, err = crypto.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate node keypair: %w", err)
		}
	}

	sink := broadcast.NewChannelSink(256)

	ledger, err := blockchain.New(st, services(), keyPair, sink)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	return ledger, nil
}

func genesisConfig(cfg *config.Config) (blockchain.GenesisConfig, error) {
	validators := make([]chain.ValidatorKeys, 0, len(cfg.Validators))
	for _, v := range cfg.Validators {
		ck, err := v.ConsensusKeyBytes()
		if err != nil {
			return blockchain.GenesisConfig{}, fmt.Errorf("decode validator consensus key: %w", err)
		}
		sk, err := v.ServiceKeyBytes()
		if err != nil {
			return blockchain.GenesisConfig{}, fmt.Errorf("decode validator service key: %w", err)
		}
		var ckPub, skPub crypto.PublicKey
		copy(ckPub[:], ck)
		copy(skPub[:], sk)
		validators = append(validators, chain.ValidatorKeys{ConsensusKey: ckPub, ServiceKey: skPub})
	}
	return blockchain.GenesisConfig{
		ValidatorKeys: validators,
		Consensus: chain.ConsensusParams{
			RoundTimeoutMS:  cfg.Consensus.RoundTimeoutMS,
			MaxTxsPerBlock:  cfg.Consensus.MaxTxsPerBlock,
			StatusTimeoutMS: cfg.Consensus.StatusTimeoutMS,
		},
	}, nil
}

func initCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "bootstrap the genesis block if the store has none",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			ledger, err := buildLedger(cfg)
			if err != nil {
				return err
			}
			gcfg, err := genesisConfig(cfg)
			if err != nil {
				return err
			}
			if err := ledger.Initialize(gcfg); err != nil {
				return err
			}
			hash, err := ledger.LastHash()
			if err != nil {
				return err
			}
			log.WithField("last_hash", hash.String()).Info("genesis ready")
			return nil
		},
	}
}

func serveCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "bootstrap genesis if needed and serve the read-only HTTP query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
				log.SetLevel(lvl)
			}

			ledger, err := buildLedger(cfg)
			if err != nil {
				return err
			}
			gcfg, err := genesisConfig(cfg)
			if err != nil {
				return err
			}
			if err := ledger.Initialize(gcfg); err != nil {
				return err
			}

			addr := cfg.Node.HTTPAddr
			if addr == "" {
				addr = ":8080"
			}
			srv := httpapi.New(ledger, log)
			log.WithFields(logrus.Fields{"addr": addr, "node": cfg.Node.Name}).Info("serving read-only query API")
			return http.ListenAndServe(addr, srv)
		},
	}
}
