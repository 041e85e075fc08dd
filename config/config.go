// Package config parses the node's CLI flags and config file into a single
// Config struct, the way kaspad's daemon-style subcommands do it with
// jessevdk/go-flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/logger"
)

const (
	defaultConfigFilename  = "xai-sub002.conf"
	defaultLogFilename     = "xai-sub002.log"
	defaultDataDirname     = "data"
	defaultListen          = "0.0.0.0:8333"
	defaultRPCListen       = "127.0.0.1:8334"
	defaultTargetOutbound  = 8
	defaultMaxInbound      = 117
	defaultMinRelayTxFee   = 1000
	defaultMaxOrphanTxs    = 100
	defaultMaxMempoolSize  = 100 * 1024 * 1024
	defaultCheckpointEvery = 1000
	defaultBackupCount     = 5
)

var activeConfig *Config

// ActiveConfig returns the configuration parsed by Parse. It is nil until
// Parse has been called.
func ActiveConfig() *Config {
	return activeConfig
}

// Config holds every tunable the node reads at startup: network selection,
// listen addresses, data directory, and the policy knobs that flow into the
// mempool, connection manager, and persistence layer.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store block and UTXO data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	TestNet bool `long:"testnet" description:"Use the test network"`
	SimNet  bool `long:"simnet" description:"Use the simulation network (for unit/integration tests)"`

	Listen      string `long:"listen" description:"Address to listen for incoming peer connections"`
	RPCListen   string `long:"rpclisten" description:"Address for the JSON gateway to listen on"`
	DisableRPC  bool   `long:"norpc" description:"Disable the JSON API gateway"`
	ConnectPeer []string `short:"c" long:"connect" description:"Add a peer to connect to at startup"`
	AddPeer     []string `short:"a" long:"addpeer" description:"Seed the address book with a peer"`

	TargetOutbound int `long:"maxoutbound" description:"Target number of outbound peer connections"`
	MaxInbound     int `long:"maxinbound" description:"Maximum number of inbound peer connections"`

	MinRelayTxFee   uint64 `long:"minrelaytxfee" description:"Minimum absolute fee for a transaction to be relayed"`
	MaxOrphanTxs    int    `long:"maxorphantx" description:"Maximum number of orphan transactions to keep in the mempool"`
	MaxMempoolSize  uint64 `long:"maxmempoolsize" description:"Maximum aggregate size of the mempool in bytes"`

	MineTo         string `long:"mineto" description:"Address to send mined coinbase outputs to; enables CPU mining when set"`
	MiningThreads  int    `long:"miningthreads" description:"Number of concurrent mining goroutines"`

	CheckpointInterval uint64 `long:"checkpointinterval" description:"Number of connected blocks between UTXO snapshots"`
	BackupCount        int    `long:"backupcount" description:"Number of rotated snapshot backups to retain"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical, or subsystem=level pairs"`

	netParams *chaincfg.Params
}

// NetParams returns the consensus parameters for the selected network.
func (c *Config) NetParams() *chaincfg.Params {
	return c.netParams
}

func defaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(dir, ".xai-sub002", defaultDataDirname)
}

func defaults() *Config {
	return &Config{
		DataDir:            defaultDataDir(),
		Listen:             defaultListen,
		RPCListen:          defaultRPCListen,
		TargetOutbound:     defaultTargetOutbound,
		MaxInbound:         defaultMaxInbound,
		MinRelayTxFee:      defaultMinRelayTxFee,
		MaxOrphanTxs:       defaultMaxOrphanTxs,
		MaxMempoolSize:     defaultMaxMempoolSize,
		CheckpointInterval: defaultCheckpointEvery,
		BackupCount:        defaultBackupCount,
		DebugLevel:         "info",
	}
}

// Parse parses CLI arguments (and, if present, a config file) into the
// active configuration, resolves the selected network's consensus
// parameters, and initializes the log rotator.
func Parse() (*Config, error) {
	cfg := defaults()
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	remaining, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		iniParser := flags.NewIniParser(parser)
		if err := iniParser.ParseFile(cfg.ConfigFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("parsing config file %s: %w", cfg.ConfigFile, err)
			}
		}
	}

	if err := resolveNetwork(cfg); err != nil {
		return nil, err
	}

	if len(remaining) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", remaining)
	}

	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
	}
	logger.InitLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}

	activeConfig = cfg
	return cfg, nil
}

func resolveNetwork(cfg *Config) error {
	count := 0
	if cfg.TestNet {
		count++
	}
	if cfg.SimNet {
		count++
	}
	if count > 1 {
		return fmt.Errorf("testnet and simnet are mutually exclusive")
	}

	switch {
	case cfg.TestNet:
		cfg.netParams = &chaincfg.TestNetParams
	case cfg.SimNet:
		cfg.netParams = &chaincfg.SimNetParams
	default:
		cfg.netParams = &chaincfg.MainNetParams
	}
	return nil
}
