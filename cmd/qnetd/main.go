// Command qnetd is the QNet node process: it wires C1-C10 together into one
// producer loop and drives it until canceled. It is a reference entrypoint,
// not a production operations surface (peer transport and on-disk storage
// stay external, per spec.md §1 Non-goals).
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qnet-project/qnet-core/internal/activation"
	"github.com/qnet-project/qnet-core/internal/consensus/leader"
	"github.com/qnet-project/qnet-core/internal/consensus/round"
	"github.com/qnet-project/qnet-core/internal/forkchoice"
	"github.com/qnet-project/qnet-core/internal/macroblock"
	"github.com/qnet-project/qnet-core/internal/mempool"
	"github.com/qnet-project/qnet-core/internal/microblock"
	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/internal/rewards"
	"github.com/qnet-project/qnet-core/internal/rotation"
	"github.com/qnet-project/qnet-core/qnet/codec"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/merkle"
	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnconfig"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("qnetd")

// Exit codes per spec.md §6.
const (
	exitClean                  = 0
	exitConfigError            = 1
	exitStorageCorruption      = 2
	exitConsensusUnrecoverable = 3
)

func main() {
	app := &cli.App{
		Name:  "qnetd",
		Usage: "run a QNet node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Usage: "overrides QNET_NETWORK"},
			&cli.StringFlag{Name: "activation-code", Usage: "overrides QNET_ACTIVATION_CODE"},
			&cli.IntFlag{Name: "bootstrap-id", Usage: "overrides QNET_BOOTSTRAP_ID"},
			&cli.IntFlag{Name: "microblock-interval", Usage: "overrides QNET_MICROBLOCK_INTERVAL (seconds)"},
			&cli.Int64Flag{Name: "max-height", Usage: "stop after this many micro-blocks (0 = run until signaled)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		if qerr, ok := err.(*qnerrors.Error); ok {
			switch qerr.Kind {
			case qnerrors.KindStorage:
				os.Exit(exitStorageCorruption)
			case qnerrors.KindConsensus:
				os.Exit(exitConsensusUnrecoverable)
			}
		}
		log.WithError(err).Error("qnetd exited with an error")
		os.Exit(exitConfigError)
	}
	os.Exit(exitClean)
}

func run(c *cli.Context) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Infof(format, args...)
	}))
	if err != nil {
		log.WithError(err).Warn("automaxprocs: could not set GOMAXPROCS, leaving default")
	} else {
		defer undo()
	}

	applyFlagOverrides(c)
	cfg, err := qnconfig.Load()
	if err != nil {
		return err
	}

	metrics.MustRegister(prometheus.NewRegistry())

	node, err := newNode(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	maxHeight := c.Int64("max-height")
	return node.run(ctx, maxHeight)
}

func applyFlagOverrides(c *cli.Context) {
	if v := c.String("network"); v != "" {
		os.Setenv("QNET_NETWORK", v)
	}
	if v := c.String("activation-code"); v != "" {
		os.Setenv("QNET_ACTIVATION_CODE", v)
	}
	if v := c.Int("bootstrap-id"); v != 0 {
		os.Setenv("QNET_BOOTSTRAP_ID", strconv.Itoa(v))
	}
	if v := c.Int("microblock-interval"); v != 0 {
		os.Setenv("QNET_MICROBLOCK_INTERVAL", strconv.Itoa(v))
	}
}

// activeNodes is the ActiveNodeSource a freshly bootstrapped node uses until
// a real peer registry is wired in: the five genesis addresses plus any
// node this process has itself activated.
type activeNodes struct {
	addrs []types.Address
}

func (a *activeNodes) ActiveFullAndSuperNodes() []types.Address { return a.addrs }

// demoRoundNonce seeds every genesis node's commit-reveal pair in this
// single-process reference loop, standing in for the distinct per-node
// secret nonces real, separately-running nodes would each pick.
var demoRoundNonce = []byte("qnetd-reference-round-nonce")

// node bundles every wired C1-C10 component for one producer loop.
type node struct {
	cfg        *qnconfig.Config
	rep        *reputation.Ledger
	active     *activeNodes
	sched      *rotation.Scheduler
	mempool    *mempool.Pool
	signer     *crypto.Ed25519Signer
	builder    *microblock.Builder
	fork       *forkchoice.Tree
	runner     *round.Runner
	finalizer  *macroblock.Finalizer
	rewardsL   *rewards.Ledger
	activation *activation.Registry
	self       types.Address
}

func newNode(cfg *qnconfig.Config) (*node, error) {
	now := time.Now()

	rep := reputation.New()
	genesisAddrs := []types.Address{
		"genesis_node_001", "genesis_node_002", "genesis_node_003",
		"genesis_node_004", "genesis_node_005",
	}
	for _, a := range genesisAddrs {
		rep.RecordSuccess(a)
	}
	active := &activeNodes{addrs: genesisAddrs}
	sched := rotation.New(rep, active)

	signer, err := crypto.NewEd25519Signer()
	if err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindSecurity, "AuthenticationFailed", "failed to generate node signing key", err)
	}

	pool := mempool.New()
	builder := microblock.New(pool, sched, signer, cfg.MicroBlockInterval)

	var self types.Address = "genesis_node_001"
	if cfg.BootstrapID != 0 {
		self = types.Address(genesisBootstrapAddress(cfg.BootstrapID))
	}

	genesis := types.BlockInfo{Hash: types.ZeroHash, Parent: types.ZeroHash, Timestamp: now.Unix()}
	fork := forkchoice.NewWithGenesis(genesis)

	runner := round.NewRunner(rep, round.WithWindows(macroblock.CommitWindow, macroblock.RevealWindow))
	sel := leader.New(rep)
	finalizer := macroblock.New(runner, sel)

	rewardsLedger := rewards.New(now)
	activationRegistry := activation.New()

	if cfg.ActivationCode != "" {
		peerIP := ""
		if cfg.BootstrapID != 0 {
			// A bootstrap node activates itself at startup rather than
			// learning its source address from an inbound peer connection.
			// The genesis whitelist is keyed by the four-digit bootstrap id.
			peerIP, _ = activation.GenesisIPFor("0" + padThree(cfg.BootstrapID))
		}
		if _, err := activationRegistry.Activate(cfg.ActivationCode, self, types.NodeSuper, cfg.Hostname, peerIP, rewardsLedger.Phase()); err != nil {
			return nil, err
		}
		metrics.ActivationsTotal.WithLabelValues(types.NodeSuper.String()).Inc()
	}

	return &node{
		cfg: cfg, rep: rep, active: active, sched: sched, mempool: pool,
		signer: signer, builder: builder, fork: fork, runner: runner, finalizer: finalizer,
		rewardsL: rewardsLedger, activation: activationRegistry, self: self,
	}, nil
}

func genesisBootstrapAddress(id int) string {
	return "genesis_node_" + padThree(id)
}

func padThree(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// run drives the micro/macro-block producer loop until ctx is canceled or
// maxHeight micro-blocks have been produced (0 means unbounded).
func (n *node) run(ctx context.Context, maxHeight int64) error {
	ticker := time.NewTicker(n.cfg.MicroBlockInterval)
	defer ticker.Stop()

	var height uint64
	previous := types.ZeroHash
	var pendingMicroHashes []types.Hash

	if err := n.startMacroRound(uint64(macroblock.DefaultIntervalMicroBlocks)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, stopping cleanly")
			return nil
		case <-ticker.C:
			height++
			n.attemptReveals()

			producer, err := n.builder.ResolveProducer(0, height, 0, 0)
			if err != nil {
				log.WithError(err).Warn("no eligible producer this height, skipping")
				continue
			}

			block, err := n.builder.Assemble(ctx, height, previous, producer)
			if err != nil {
				log.WithError(err).Error("micro-block assembly failed")
				continue
			}

			blockHash := codec.MicroBlockHash(block)
			merkleOK := merkle.Root(merkle.TransactionHashes(block.Transactions)) == block.MerkleRoot
			if !merkleOK {
				return qnerrors.New(qnerrors.KindConsensus, "InvalidBlock", "assembled micro-block failed merkle self-check")
			}

			if err := n.fork.AddBlock(types.BlockInfo{
				Hash: blockHash, Parent: previous, Height: height,
				Timestamp: block.Timestamp, Producer: producer,
				ProducerReputation: n.rep.Get(producer),
				TransactionCount:   len(block.Transactions),
			}); err != nil {
				log.WithError(err).Warn("fork-choice rejected assembled block")
				continue
			}

			for _, tx := range block.Transactions {
				n.rewardsL.OnTransactionApplied(tx.GasLimit, tx.GasPrice)
			}

			previous = blockHash
			pendingMicroHashes = append(pendingMicroHashes, blockHash)

			if height%macroblock.DefaultIntervalMicroBlocks == 0 {
				if err := n.finalizeMacro(height, previous, pendingMicroHashes); err != nil {
					return err
				}
				pendingMicroHashes = nil
			}

			if maxHeight > 0 && int64(height) >= maxHeight {
				log.WithField("height", height).Info("reached configured max height, stopping")
				return nil
			}
		}
	}
}

// startMacroRound opens the next commit-reveal round and immediately
// commits every known active node, standing in for the distinct commit
// messages separate nodes would each broadcast over the transport layer
// this single-process reference entrypoint does not run.
func (n *node) startMacroRound(macroHeight uint64) error {
	if _, err := n.finalizer.StartRound(macroHeight); err != nil {
		return err
	}
	for _, addr := range n.active.addrs {
		commitHash := crypto.DigestConcat([]byte(addr), demoRoundNonce)
		if err := n.runner.AddCommit(addr, commitHash, nil); err != nil {
			log.WithError(err).WithField("node", addr).Warn("commit rejected at round start")
		}
	}
	return nil
}

// attemptReveals retries each active node's reveal every tick; AddReveal
// rejects reveals submitted before the commit window elapses, so this is
// retried rather than scheduled against the round's own deadlines.
func (n *node) attemptReveals() {
	for _, addr := range n.active.addrs {
		reveal := types.Reveal{Value: []byte(addr), Nonce: demoRoundNonce}
		_ = n.runner.AddReveal(addr, reveal)
	}
}

func (n *node) finalizeMacro(height uint64, previous types.Hash, microHashes []types.Hash) error {
	stateRoot := merkle.Root(microHashes)
	res, err := n.finalizer.Finalize(height, previous, microHashes, stateRoot, time.Now().Unix())
	if err != nil {
		return err
	}
	if res.Critical != nil {
		log.WithField("height", height).Error("critical alert raised during macro-block finalization")
	}

	nodes := map[types.Address]rewards.NodeInfo{n.self: {Type: types.NodeSuper}}
	for _, addr := range n.active.addrs {
		nodes[addr] = rewards.NodeInfo{Type: types.NodeSuper}
	}
	n.rewardsL.DistributeWindow(rewards.PoolTransactionFees, nodes)

	if err := n.startMacroRound(height + macroblock.DefaultIntervalMicroBlocks); err != nil {
		return err
	}
	log.WithField("height", height).Info("macro-block finalized")
	return nil
}
