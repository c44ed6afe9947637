package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/archive"
	"github.com/97woo/oraclevm/oe/bitvmx"
	"github.com/97woo/oraclevm/oe/chain"
	"github.com/97woo/oraclevm/oe/knobs"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/pool"
	"github.com/97woo/oraclevm/oe/pricefeed"
	"github.com/97woo/oraclevm/oe/settlement"
	"github.com/97woo/oraclevm/oe/task"
	"go.uber.org/zap"
)

type args struct {
	Network      string
	BitcoindHost string
	BitcoindUser string
	BitcoindPass string
	ArchivePath  string
	SpotPrice    uint64
}

func parseArgs() *args {
	a := &args{}
	flag.StringVar(&a.Network, "network", "regtest", "bitcoin network (mainnet, testnet, regtest, signet)")
	flag.StringVar(&a.BitcoindHost, "bitcoind-host", "localhost:18443", "bitcoind RPC host:port")
	flag.StringVar(&a.BitcoindUser, "bitcoind-user", "", "bitcoind RPC username")
	flag.StringVar(&a.BitcoindPass, "bitcoind-pass", "", "bitcoind RPC password")
	flag.StringVar(&a.ArchivePath, "archive", "optiond.db", "path to the settled contract archive")
	flag.Uint64Var(&a.SpotPrice, "spot-price", 0, "static spot price in price units (development only)")
	flag.Parse()
	return a
}

func run() error {
	a := parseArgs()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)
	ctx := logging.InjectLogger(context.Background(), logger)

	network, err := btcnetwork.FromString(a.Network)
	if err != nil {
		return err
	}

	verifierKey, err := keys.ParsePrivateKeyHex(os.Getenv("OPTIOND_VERIFIER_KEY"))
	if err != nil {
		return fmt.Errorf("OPTIOND_VERIFIER_KEY: %w", err)
	}
	poolKey, err := keys.ParsePrivateKeyHex(os.Getenv("OPTIOND_POOL_KEY"))
	if err != nil {
		return fmt.Errorf("OPTIOND_POOL_KEY: %w", err)
	}

	config, err := oe.NewConfig(network, oe.BitcoindConfig{
		Host:     a.BitcoindHost,
		User:     a.BitcoindUser,
		Password: a.BitcoindPass,
	}, verifierKey, poolKey)
	if err != nil {
		return err
	}

	client, err := chain.NewRPCClient(config.Bitcoind)
	if err != nil {
		return fmt.Errorf("failed to connect to bitcoind: %w", err)
	}
	defer client.Shutdown()

	height, err := chain.CurrentHeight(client)
	if err != nil {
		return fmt.Errorf("bitcoind is not reachable: %w", err)
	}

	contractArchive, err := archive.Open(a.ArchivePath)
	if err != nil {
		return err
	}
	defer contractArchive.Close()

	minDepositSats := uint64(config.Knobs.GetValue(knobs.KnobPoolMinDepositSats, float64(config.MinDepositSats)))
	liquidityPool := pool.NewPool(minDepositSats)
	liquidityPool.SetKnobs(config.Knobs)
	registry := option.NewRegistry(
		option.NewMemoryStore(),
		liquidityPool,
		bitvmx.ComputeCommitment,
		settlement.ContractAddressFunc(config),
	)
	engine := settlement.NewEngine(config, registry, liquidityPool)

	feed := pricefeed.NewStaticFeed(a.SpotPrice)
	generator := bitvmx.NewEmulatedGenerator()
	sweeper := task.NewSweeper(config, engine, registry, liquidityPool, feed, generator, client, contractArchive)

	scheduler, err := task.StartScheduler(config, sweeper, config.Knobs)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Shutdown() //nolint:errcheck

	logging.GetLoggerFromContext(ctx).Sugar().Infof(
		"optiond running on %s at height %d, bitcoind at %s", config.Network, height, config.Bitcoind.Host)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Shutting down")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "optiond: %v\n", err)
		os.Exit(1)
	}
}
