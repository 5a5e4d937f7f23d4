// Command mempoolnode wires the configuration, the blockchain collaborator
// reference store and the mempool together, restores any persisted state,
// and reports the pool contents on an interrupt before shutting down
// cleanly.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"github.com/libcoin-project/libcoin-go/pkg/config"
	"github.com/libcoin-project/libcoin-go/pkg/core/chain"
	"github.com/libcoin-project/libcoin-go/pkg/core/mempool"
)

var log = logger.WithFields(logger.Fields{"prefix": "main"})

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	store, err := chain.Open(cfg.Chain.StoreDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open chain store")
	}
	defer store.Close()

	pool := mempool.New(store, mempool.Config{
		MaxTxBlob:            cfg.Mempool.MaxTxBlob,
		CoinbaseReservedSize: cfg.Mempool.CoinbaseReservedSize,
		MaxAliasPerBlock:     cfg.Mempool.MaxAliasPerBlock,
		NormalTTL:            cfg.Mempool.NormalTTL(),
		KeptByBlockTTL:       cfg.Mempool.KeptByBlockTTL(),
		ReaperInterval:       cfg.Mempool.ReaperInterval(),
		StorageDir:           cfg.Mempool.StorageDir,
	})

	if err := pool.Init(cfg.Mempool.StorageDir); err != nil {
		log.WithError(err).Warn("failed to restore pool state")
	}

	pool.Run()

	log.WithField("count", pool.Count()).Info("mempool node ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	log.Info(pool.PrintPool(true))

	pool.Close()

	if err := pool.Deinit(cfg.Mempool.StorageDir); err != nil {
		log.WithError(err).Error("failed to persist pool state")
	}
}
