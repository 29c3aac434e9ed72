package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ogbo/walletcore/keyring"
	"github.com/ogbo/walletcore/registry"
	"github.com/ogbo/walletcore/session"
)

var (
	walletFlag = &cli.StringFlag{
		Name:  "wallet",
		Usage: "Wallet id or address (defaults to the active wallet)",
	}
	indexFlag = &cli.UintFlag{
		Name:  "index",
		Usage: "Account index under m/44'/60'/0'/0",
	}
	newPasswordFileFlag = &cli.PathFlag{
		Name:  "new-password-file",
		Usage: "Read the new password from this file instead of prompting",
	}
	yesFlag = &cli.BoolFlag{
		Name:  "yes",
		Usage: "Do not ask for confirmation",
	}
)

var (
	createCommand = &cli.Command{
		Name:   "create",
		Usage:  "Generate a new mnemonic wallet and make it active",
		Action: createWallet,
	}
	importMnemonicCommand = &cli.Command{
		Name:   "import-mnemonic",
		Usage:  "Import an account from a BIP-39 mnemonic",
		Flags:  []cli.Flag{indexFlag},
		Action: importMnemonic,
	}
	importKeyCommand = &cli.Command{
		Name:   "import-key",
		Usage:  "Import a hex encoded private key",
		Action: importKey,
	}
	importKeystoreCommand = &cli.Command{
		Name:      "import-keystore",
		Usage:     "Import a Web3 Secret Storage (v3) keystore file",
		ArgsUsage: "<keyfile>",
		Action:    importKeystore,
	}
	listCommand = &cli.Command{
		Name:   "list",
		Usage:  "List known wallets",
		Action: listWallets,
	}
	useCommand = &cli.Command{
		Name:      "use",
		Usage:     "Make a wallet active",
		ArgsUsage: "<id|address>",
		Action:    useWallet,
	}
	signCommand = &cli.Command{
		Name:      "sign",
		Usage:     "Unlock a wallet and sign a personal message",
		ArgsUsage: "<message>",
		Flags:     []cli.Flag{walletFlag},
		Action:    signMessage,
	}
	migrateCommand = &cli.Command{
		Name:   "migrate",
		Usage:  "Re-encrypt keystores written with outdated parameters",
		Action: migrateKeystores,
	}
	changePasswordCommand = &cli.Command{
		Name:   "change-password",
		Usage:  "Re-encrypt a wallet under a new password",
		Flags:  []cli.Flag{walletFlag, newPasswordFileFlag},
		Action: changePassword,
	}
	removeCommand = &cli.Command{
		Name:      "remove",
		Usage:     "Forget a wallet",
		ArgsUsage: "<id|address>",
		Flags:     []cli.Flag{yesFlag},
		Action:    removeWallet,
	}
	resetCommand = &cli.Command{
		Name:   "reset",
		Usage:  "Forget every wallet",
		Flags:  []cli.Flag{yesFlag},
		Action: resetKeyring,
	}
)

// withKeyring opens the keyring for one command and closes it afterwards.
func withKeyring(ctx *cli.Context, fn func(kr *keyring.Keyring) error) error {
	kr, err := openKeyring(configFrom(ctx))
	if err != nil {
		return err
	}
	defer func() {
		if err := kr.Close(); err != nil {
			log.Warn("Failed to close keyring", "err", err)
		}
	}()
	return fn(kr)
}

func createWallet(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		pw, err := newPassword(ctx)
		if err != nil {
			return err
		}
		created, err := kr.CreateWallet(ctx.Context, pw, configFrom(ctx).Network)
		if err != nil {
			return err
		}
		out := ctx.App.Writer
		fmt.Fprintf(out, "Created %s (%s)\n", created.Record.Address, created.Record.Name)
		fmt.Fprintf(out, "\nWrite down this recovery phrase. It is not stored and will not be shown again:\n\n  %s\n", created.Mnemonic)
		return nil
	})
}

func importMnemonic(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		mnemonic, err := promptSecret("Mnemonic: ")
		if err != nil {
			return err
		}
		pw, err := newPassword(ctx)
		if err != nil {
			return err
		}
		imp, err := kr.ImportMnemonic(ctx.Context, mnemonic, uint32(ctx.Uint(indexFlag.Name)), pw, configFrom(ctx).Network)
		if err != nil {
			return err
		}
		printImported(ctx.App.Writer, imp)
		return nil
	})
}

func importKey(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		hexKey, err := promptSecret("Private key: ")
		if err != nil {
			return err
		}
		pw, err := newPassword(ctx)
		if err != nil {
			return err
		}
		imp, err := kr.ImportPrivateKey(ctx.Context, hexKey, pw, configFrom(ctx).Network)
		if err != nil {
			return err
		}
		printImported(ctx.App.Writer, imp)
		return nil
	})
}

func importKeystore(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s import-keystore <keyfile>", ctx.App.Name)
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		pw, err := password(ctx, "Keystore password: ")
		if err != nil {
			return err
		}
		imp, err := kr.ImportKeystore(ctx.Context, data, pw, configFrom(ctx).Network)
		if err != nil {
			return err
		}
		printImported(ctx.App.Writer, imp)
		return nil
	})
}

func printImported(w io.Writer, imp *keyring.Imported) {
	if imp.Existing {
		fmt.Fprintf(w, "Already known, switched to %s (%s)\n", imp.Record.Address, imp.Record.Name)
		return
	}
	fmt.Fprintf(w, "Imported %s (%s)\n", imp.Record.Address, imp.Record.Name)
}

func listWallets(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		records, err := kr.Wallets()
		if err != nil {
			return err
		}
		var activeID string
		if active, err := kr.Active(); err == nil {
			activeID = active.ID
		}
		return printWallets(ctx.App.Writer, records, activeID)
	})
}

func printWallets(w io.Writer, records []*registry.Record, activeID string) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No wallets")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tADDRESS\tKIND\tNETWORK")
	for _, rec := range records {
		mark := ""
		if rec.ID == activeID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, rec.ID, rec.Name, rec.Address, rec.Kind, rec.Network)
	}
	return tw.Flush()
}

func useWallet(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		rec, err := resolveWallet(kr.Registry(), ctx.Args().First())
		if err != nil {
			return err
		}
		if err := kr.SetActive(rec.ID); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Active wallet is now %s (%s)\n", rec.Address, rec.Name)
		return nil
	})
}

func signMessage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s sign [--wallet <id|address>] <message>", ctx.App.Name)
	}
	msg := []byte(ctx.Args().First())

	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		rec, err := resolveWallet(kr.Registry(), ctx.String(walletFlag.Name))
		if err != nil {
			return err
		}
		if rec.IsExternal() {
			return fmt.Errorf("wallet %s is held by an external signer", rec.Address)
		}
		pw, err := password(ctx, "Password: ")
		if err != nil {
			return err
		}
		signer, err := kr.Unlock(ctx.Context, rec.ID, pw)
		if err != nil {
			return err
		}
		defer kr.Lock()

		sig, err := sign(ctx.Context, signer, msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Address:   %s\nSignature: %s\n", signer.Address().Hex(), hexutil.Encode(sig))
		return nil
	})
}

// sign signs msg and checks the signature recovers to the signer.
func sign(ctx context.Context, signer session.Signer, msg []byte) ([]byte, error) {
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := session.VerifyMessage(signer.Address(), msg, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func migrateKeystores(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		pw, err := password(ctx, "Password: ")
		if err != nil {
			return err
		}
		report, err := kr.MigrateAll(ctx.Context, pw)
		if err != nil {
			return err
		}
		out := ctx.App.Writer
		fmt.Fprintf(out, "Migrated: %d, already current: %d, failed: %d\n",
			len(report.Migrated), len(report.Current), len(report.Failed))
		for id, ferr := range report.Failed {
			fmt.Fprintf(out, "  %s: %v\n", id, ferr)
		}
		if !report.OK() {
			return errors.New("some keystores were not migrated")
		}
		return nil
	})
}

func changePassword(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		rec, err := resolveWallet(kr.Registry(), ctx.String(walletFlag.Name))
		if err != nil {
			return err
		}
		oldPw, err := password(ctx, "Current password: ")
		if err != nil {
			return err
		}
		var newPw string
		if path := ctx.Path(newPasswordFileFlag.Name); path != "" {
			newPw, err = passwordFromFile(path)
		} else {
			newPw, err = promptNewPassword()
		}
		if err != nil {
			return err
		}
		if err := kr.ChangePassword(ctx.Context, rec.ID, oldPw, newPw); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Password changed for %s\n", rec.Address)
		return nil
	})
}

func removeWallet(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s remove <id|address>", ctx.App.Name)
	}
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		rec, err := resolveWallet(kr.Registry(), ctx.Args().First())
		if err != nil {
			return err
		}
		if !ctx.Bool(yesFlag.Name) && !confirm(fmt.Sprintf("Remove %s (%s)?", rec.Address, rec.Name)) {
			return nil
		}
		if err := kr.RemoveWallet(rec.ID); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Removed %s\n", rec.Address)
		return nil
	})
}

func resetKeyring(ctx *cli.Context) error {
	return withKeyring(ctx, func(kr *keyring.Keyring) error {
		if !ctx.Bool(yesFlag.Name) && !confirm("Remove every wallet? Keys without a backup are lost.") {
			return nil
		}
		return kr.Reset()
	})
}

func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, err := readLine(os.Stdin)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// resolveWallet finds a wallet by id or address. An empty ref selects the
// active wallet.
func resolveWallet(reg *registry.Registry, ref string) (*registry.Record, error) {
	if ref == "" {
		return reg.Active()
	}
	rec, err := reg.Get(ref)
	if errors.Is(err, registry.ErrUnknownWallet) && common.IsHexAddress(ref) {
		return reg.FindByAddress(ref)
	}
	return rec, err
}
