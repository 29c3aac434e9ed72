// walletctl manages an encrypted EVM wallet keyring from the command line.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ogbo/walletcore/config"
	"github.com/ogbo/walletcore/keyring"
	"github.com/ogbo/walletcore/storage"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the keyring and config file",
		Value: config.DefaultDataDir(),
	}
	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "Storage backend (memory, file, bolt, leveldb)",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "Network for new wallets (ethereum, bsc, polygon)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "loglevel",
		Usage: "Log level (debug, info, warn, error)",
	}
	passwordFileFlag = &cli.PathFlag{
		Name:  "password-file",
		Usage: "Read the password from the first line of this file instead of prompting",
	}
)

var app = &cli.App{
	Name:                 "walletctl",
	Usage:                "non-custodial EVM wallet keyring",
	EnableBashCompletion: true,
	Flags:                []cli.Flag{dataDirFlag, backendFlag, networkFlag, logLevelFlag, passwordFileFlag},
	Before:               setup,
	Commands: []*cli.Command{
		createCommand,
		importMnemonicCommand,
		importKeyCommand,
		importKeystoreCommand,
		listCommand,
		useCommand,
		signCommand,
		migrateCommand,
		changePasswordCommand,
		removeCommand,
		resetCommand,
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies command line overrides and installs
// the root logger.
func setup(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	lvl, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)))
	ctx.App.Metadata = map[string]interface{}{"config": cfg}
	return nil
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String(dataDirFlag.Name))
	if err != nil {
		return cfg, err
	}
	if ctx.IsSet(backendFlag.Name) {
		cfg.Backend = ctx.String(backendFlag.Name)
	}
	if ctx.IsSet(networkFlag.Name) {
		cfg.Network = ctx.String(networkFlag.Name)
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = ctx.String(logLevelFlag.Name)
	}
	return cfg, config.ValidateConfig(cfg)
}

func configFrom(ctx *cli.Context) config.Config {
	return ctx.App.Metadata["config"].(config.Config)
}

// openKeyring opens the configured store and builds a keyring over it. The
// caller must Close the keyring.
func openKeyring(cfg config.Config) (*keyring.Keyring, error) {
	params, err := cfg.KDFParams()
	if err != nil {
		return nil, err
	}

	dir := cfg.DataDir
	if cfg.Backend != storage.BackendMemory {
		dir = filepath.Join(cfg.DataDir, "keyring")
	}
	store, err := storage.Open(cfg.Backend, dir)
	if err != nil {
		return nil, err
	}

	kr, err := keyring.New(keyring.Options{
		Store:             store,
		KDF:               params,
		Workers:           cfg.Workers,
		MaxUnlockAttempts: cfg.MaxAttempts,
		Lockout:           cfg.Lockout,
		Logger:            log.Root(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return kr, nil
}
