package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/client"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "treasury-client",
		Usage: "Client for the custodial ERC-20 treasury server",
		Description: `Calls a running treasury server and prints its JSON responses.

Transaction commands block until the server reports the transaction confirmed or failed.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"s"},
				Usage:   "Treasury server base URL",
				Value:   "http://localhost:8000",
				EnvVars: []string{"TREASURY_SERVER_URL"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "create-wallet",
				Usage:  "Provision a wallet with a standing permit to the treasury",
				Action: createWalletCommand,
			},
			{
				Name:  "mint",
				Usage: "Mint tokens to a wallet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole token amount, e.g. 10.5",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "wallet",
						Usage:    "Recipient wallet address",
						Required: true,
					},
				},
				Action: mintCommand,
			},
			{
				Name:  "collect",
				Usage: "Sweep the full balance of a provisioned wallet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Provisioned wallet address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Destination address",
						Required: true,
					},
				},
				Action: collectCommand,
			},
			{
				Name:  "burn",
				Usage: "Burn tokens held by the treasury",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole token amount, e.g. 5",
						Required: true,
					},
				},
				Action: burnCommand,
			},
			{
				Name:      "wallet",
				Usage:     "Show a provisioned wallet",
				ArgsUsage: "<address>",
				Action:    walletCommand,
			},
			{
				Name:      "operation",
				Usage:     "Show a journaled operation",
				ArgsUsage: "<operation-id>",
				Action:    operationCommand,
			},
			{
				Name:   "health",
				Usage:  "Show server health",
				Action: healthCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// createClient creates a new treasury client from CLI context
func createClient(c *cli.Context) (*client.TreasuryClient, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return client.NewTreasuryClient(c.String("server-url"), l), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument: %s", name)
	}
	return c.Args().First(), nil
}

func createWalletCommand(c *cli.Context) error {
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.CreateWallet(c.Context)
	if err != nil {
		return fmt.Errorf("create-wallet failed: %w", err)
	}
	return printJSON(resp)
}

func mintCommand(c *cli.Context) error {
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.Mint(c.Context, c.String("amount"), c.String("wallet"))
	if err != nil {
		return fmt.Errorf("mint failed: %w", err)
	}
	return printJSON(resp)
}

func collectCommand(c *cli.Context) error {
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.Collect(c.Context, c.String("from"), c.String("to"))
	if err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}
	return printJSON(resp)
}

func burnCommand(c *cli.Context) error {
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.Burn(c.Context, c.String("amount"))
	if err != nil {
		return fmt.Errorf("burn failed: %w", err)
	}
	return printJSON(resp)
}

func walletCommand(c *cli.Context) error {
	address, err := requireArg(c, "<address>")
	if err != nil {
		return err
	}
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.GetWallet(c.Context, address)
	if err != nil {
		return fmt.Errorf("wallet lookup failed: %w", err)
	}
	return printJSON(resp)
}

func operationCommand(c *cli.Context) error {
	id, err := requireArg(c, "<operation-id>")
	if err != nil {
		return err
	}
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.GetOperation(c.Context, id)
	if err != nil {
		return fmt.Errorf("operation lookup failed: %w", err)
	}
	return printJSON(resp)
}

func healthCommand(c *cli.Context) error {
	tc, err := createClient(c)
	if err != nil {
		return err
	}
	resp, err := tc.Health(c.Context)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return printJSON(resp)
}
