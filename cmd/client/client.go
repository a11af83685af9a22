package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/CamberLoid/tzama/internal/clientlib"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
	"github.com/CamberLoid/tzama/internal/users"
)

const (
	DefaultKeyDirPath  string = "/.config/tzama/"
	DefaultKeyFileName string = "key.json"
	DefaultFaucet      string = "1000"
)

var (
	homedir, _            = os.UserHomeDir()
	DefaultKeyPath string = filepath.Join(homedir, DefaultKeyDirPath, DefaultKeyFileName)
)

// CLI
func main() {
	app := cli.App{
		Name:     "tzama",
		HelpName: "tzama",
		Version:  "0.1.0",
		Usage:    "mint, stake and unstake on the confidential ledger, and decrypt your own balances",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: clientlib.DefaultServerURL, EnvVars: []string{"TZAMA_SERVER"}},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Value: DefaultKeyPath, EnvVars: []string{"TZAMA_KEY"}, Usage: "signing key file, created when missing"},
			&cli.StringFlag{Name: "ledger", Aliases: []string{"address"}, EnvVars: []string{"TZAMA_LEDGER"}, Usage: "ledger contract address, defaults to the one the server reports"},
			&cli.BoolFlag{Name: "json", Usage: "print receipts as JSON"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "dump full receipts"},
		},
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "print the ledger address",
				Action: cmdAddress,
			},
			{
				Name:   "whoami",
				Usage:  "print the account address",
				Action: cmdWhoami,
			},
			{
				Name:  "faucet",
				Usage: "mint test tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "recipient address, defaults to this account"},
					&cli.StringFlag{Name: "amount", Value: DefaultFaucet},
				},
				Action: cmdFaucet,
			},
			{
				Name:   "stake",
				Usage:  "move tokens from the wallet into the staked position",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "value", Required: true}},
				Action: cmdMove(transaction.KindStake),
			},
			{
				Name:   "unstake",
				Usage:  "move tokens from the staked position back to the wallet",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "value", Required: true}},
				Action: cmdMove(transaction.KindUnstake),
			},
			{
				Name:   "balances",
				Usage:  "decrypt wallet, staked and total staked balances",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "user", Usage: "owner address, defaults to this account"}},
				Action: cmdBalances,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadUser 读取签名密钥，不存在时生成一把新的
func loadUser(path string) (*users.User, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		u, err := users.NewUserWithUserName("")
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		if err := u.SaveToFile(path); err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "created new key %s\n", path)
		return u, nil
	}
	return users.LoadFromFile(path)
}

func newClient(c *cli.Context) (*clientlib.Client, error) {
	u, err := loadUser(c.String("key"))
	if err != nil {
		return nil, err
	}
	client, err := clientlib.NewClient(c.String("server"), u)
	if err != nil {
		return nil, err
	}
	if s := c.String("ledger"); s != "" {
		if client.Ledger, err = types.ParsePrincipal(s); err != nil {
			return nil, errors.Wrap(err, "--ledger")
		}
	}
	return client, nil
}

func principalOr(s string, fallback types.Principal) (types.Principal, error) {
	if s == "" {
		return fallback, nil
	}
	return types.ParsePrincipal(s)
}

func printTx(c *cli.Context, tx *transaction.Transaction) error {
	if c.Bool("json") {
		data, err := tx.MarshalToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("%s %s: %s\n", tx.Kind, tx.UUID, tx.ConfirmingPhase)
	if c.Bool("verbose") {
		fmt.Printf("%# v\n", pretty.Formatter(tx))
	}
	return nil
}

func cmdAddress(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ledger, err := client.LedgerAddress(c.Context)
	if err != nil {
		return errors.Wrap(err, "address")
	}
	fmt.Printf("tZama: %s\n", ledger.Hex())
	if c.Bool("verbose") {
		info, err := client.Info(c.Context)
		if err != nil {
			return errors.Wrap(err, "address")
		}
		fmt.Printf("%# v\n", pretty.Formatter(info))
	}
	return nil
}

func cmdWhoami(c *cli.Context) error {
	u, err := loadUser(c.String("key"))
	if err != nil {
		return err
	}
	fmt.Println(u.Address().Hex())
	return nil
}

func cmdFaucet(c *cli.Context) error {
	amount, err := clientlib.ParseAmount(c.String("amount"))
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	to, err := principalOr(c.String("to"), client.MainUser.Address())
	if err != nil {
		return err
	}
	fmt.Printf("minting %d to %s, waiting for the transaction...\n", amount, to.Hex())
	tx, err := client.Faucet(c.Context, to, amount)
	if err != nil {
		return errors.Wrap(err, "faucet")
	}
	return printTx(c, tx)
}

func cmdMove(kind transaction.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		value, err := clientlib.ParseAmount(c.String("value"))
		if err != nil {
			return err
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d, waiting for the transaction...\n", kind, value)
		var tx *transaction.Transaction
		if kind == transaction.KindStake {
			tx, err = client.Stake(c.Context, value)
		} else {
			tx, err = client.Unstake(c.Context, value)
		}
		if err != nil {
			return errors.Wrap(err, string(kind))
		}
		return printTx(c, tx)
	}
}

func cmdBalances(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	owner, err := principalOr(c.String("user"), client.MainUser.Address())
	if err != nil {
		return err
	}
	b, err := client.Balances(c.Context, owner)
	if err != nil {
		return errors.Wrap(err, "balances")
	}
	fmt.Printf("account: %s\n", b.Owner.Hex())
	fmt.Printf("wallet:  %d\n", b.Wallet)
	fmt.Printf("staked:  %d\n", b.Staked)
	if b.TotalKnown {
		fmt.Printf("total:   %d\n", b.Total)
	} else {
		fmt.Println("total:   (not granted to this account)")
	}
	if c.Bool("verbose") {
		fmt.Printf("%# v\n", pretty.Formatter(b))
	}
	return nil
}
