package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aurumnet/aurum-node/internal/config"
	"github.com/aurumnet/aurum-node/internal/core"
	"github.com/aurumnet/aurum-node/internal/payment"
)

func main() {
	rootCmd := &cobra.Command{Use: "aurum-node"}
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(identityCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start an Aurum storage node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge on top of the default config (AURUM_ENV)")
	return cmd
}

func identityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "print a freshly generated node identity and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.NewIdentity()
			if err != nil {
				return err
			}
			fmt.Printf("peer id:     %s\n", id.PeerID)
			fmt.Printf("quote addr:  0x%x\n", id.QuoteAddress())
			return nil
		},
	}
}

func runNode(env string) error {
	var cfg *config.Config
	var err error
	if env != "" {
		cfg, err = config.Load(env)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging.Level)

	if zlog, err := zap.NewProduction(); err == nil {
		zap.ReplaceGlobals(zlog)
	}

	nodeCfg := core.NodeConfig{
		ListenAddr:                       cfg.Network.ListenAddr,
		BootstrapPeers:                   cfg.Network.BootstrapPeers,
		DiscoveryTag:                     cfg.Network.DiscoveryTag,
		Local:                            cfg.Network.Local,
		CloseGroupSize:                   cfg.Tunables.CloseGroupSize,
		RequestTimeout:                   cfg.RequestTimeout(),
		ChallengeSkipThreshold:           cfg.Tunables.ChallengeSkipThreshold,
		PeriodicReplicationIntervalMax:   time.Duration(cfg.Tunables.PeriodicReplicationIntervalMaxSecs) * time.Second,
		StoreChallengeIntervalMax:        time.Duration(cfg.Tunables.StoreChallengeIntervalMaxSecs) * time.Second,
		UptimeMetricsUpdateInterval:      time.Duration(cfg.Tunables.UptimeMetricsUpdateIntervalSecs) * time.Second,
		IrrelevantRecordsCleanupInterval: time.Duration(cfg.Tunables.IrrelevantRecordsCleanupSecs) * time.Second,
		QuoteTTL:                         time.Duration(cfg.Payment.QuoteTTLSeconds) * time.Second,
		RewardAddress:                    common.HexToAddress(cfg.Payment.RewardAddressHex),
	}

	profile := payment.ResolveProfile(
		payment.EvmNetwork(cfg.Payment.Network),
		cfg.Payment.RPCURL,
		common.HexToAddress(cfg.Payment.PaymentTokenAddr),
		common.HexToAddress(cfg.Payment.DataPaymentsAddr),
	)
	verifier := payment.NewVerifier(profile, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node, err := core.NewNodeBuilder(nodeCfg, log).
		WithPaymentVerifier(verifier).
		Build(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"peer_id":    node.Identity().PeerID,
		"quote_addr": fmt.Sprintf("0x%x", node.Identity().QuoteAddress()),
	}).Info("aurum node starting")

	return node.Run(ctx)
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
