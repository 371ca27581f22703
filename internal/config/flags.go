// Package config defines the node's unified CLI surface (spec.md §6):
// every flag is also readable from its identically-named environment
// variable, mirroring the original args.rs's #[arg(long, env)] style
// through urfave/cli/v2's altsrc-free env-var support.
package config

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/rollups-dave/node/signer"
)

const (
	defaultWeb3RPCURL    = "http://127.0.0.1:8545"
	defaultWeb3ChainID   = 31337
	defaultSleepDuration = 30
)

var Flags = []cli.Flag{
	&cli.StringFlag{Name: "app-address", EnvVars: []string{"APP_ADDRESS"}, Required: true, Usage: "address of the application contract"},
	&cli.StringFlag{Name: "machine-path", EnvVars: []string{"MACHINE_PATH"}, Required: true, Usage: "path to the machine template image"},
	&cli.StringFlag{Name: "web3-rpc-url", EnvVars: []string{"WEB3_RPC_URL"}, Value: defaultWeb3RPCURL, Usage: "blockchain gateway endpoint url"},
	&cli.Uint64Flag{Name: "web3-chain-id", EnvVars: []string{"WEB3_CHAIN_ID"}, Value: defaultWeb3ChainID, Usage: "blockchain chain id"},
	&cli.Uint64Flag{Name: "sleep-duration-seconds", EnvVars: []string{"SLEEP_DURATION_SECONDS"}, Value: defaultSleepDuration, Usage: "polling sleep interval"},
	&cli.StringFlag{Name: "state-dir", EnvVars: []string{"STATE_DIR"}, Value: os.TempDir(), Usage: "persisted state directory"},

	&cli.StringFlag{Name: "signer", EnvVars: []string{"SIGNER"}, Value: "pk", Usage: "signer kind: pk or aws-kms"},
	&cli.StringFlag{Name: "web3-private-key", EnvVars: []string{"WEB3_PRIVATE_KEY"}, Usage: "raw hex private key (signer=pk)"},
	&cli.StringFlag{Name: "web3-private-key-file", EnvVars: []string{"WEB3_PRIVATE_KEY_FILE"}, Usage: "path to a hex private key file (signer=pk)"},
	&cli.StringFlag{Name: "aws-kms-key-id", EnvVars: []string{"AWS_KMS_KEY_ID"}, Usage: "AWS KMS key id (signer=aws-kms)"},
	&cli.StringFlag{Name: "aws-kms-key-id-file", EnvVars: []string{"AWS_KMS_KEY_ID_FILE"}, Usage: "path to a file containing the AWS KMS key id (signer=aws-kms)"},
	&cli.StringFlag{Name: "aws-region", EnvVars: []string{"AWS_REGION"}, Value: "us-east-1", Usage: "AWS region for the KMS signer"},
	&cli.StringFlag{Name: "aws-endpoint-url", EnvVars: []string{"AWS_ENDPOINT_URL"}, Usage: "AWS endpoint override, for local KMS testing"},
}

// Config is the resolved, validated form of the CLI flags: PRTConfig's
// Go counterpart, minus the fields (address_book, provider) that are
// only resolvable once a chain connection exists.
type Config struct {
	AppAddress    common.Address
	MachinePath   string
	Web3RPCURL    string
	Web3ChainID   uint64
	SleepDuration time.Duration
	StateDir      string
	Signer        signer.Signer
}

// FromContext validates and resolves a urfave/cli Context into a
// Config, constructing whichever Signer the --signer flag selects.
func FromContext(ctx context.Context, c *cli.Context) (*Config, error) {
	appAddress := c.String("app-address")
	if !common.IsHexAddress(appAddress) {
		return nil, errors.Newf("config: invalid --app-address %q", appAddress)
	}

	s, err := resolveSigner(ctx, c)
	if err != nil {
		return nil, err
	}

	return &Config{
		AppAddress:    common.HexToAddress(appAddress),
		MachinePath:   c.String("machine-path"),
		Web3RPCURL:    c.String("web3-rpc-url"),
		Web3ChainID:   c.Uint64("web3-chain-id"),
		SleepDuration: time.Duration(c.Uint64("sleep-duration-seconds")) * time.Second,
		StateDir:      c.String("state-dir"),
		Signer:        s,
	}, nil
}

func resolveSigner(ctx context.Context, c *cli.Context) (signer.Signer, error) {
	switch c.String("signer") {
	case "pk":
		if key := c.String("web3-private-key"); key != "" {
			return signer.NewPrivateKeySigner(key)
		}
		if path := c.String("web3-private-key-file"); path != "" {
			return signer.NewPrivateKeySignerFromFile(path)
		}
		return nil, errors.New("config: signer=pk requires --web3-private-key or --web3-private-key-file")
	case "aws-kms":
		region := c.String("aws-region")
		endpoint := c.String("aws-endpoint-url")
		if keyID := c.String("aws-kms-key-id"); keyID != "" {
			return signer.NewKMSSigner(ctx, keyID, region, endpoint)
		}
		if path := c.String("aws-kms-key-id-file"); path != "" {
			return signer.NewKMSSignerFromKeyIDFile(ctx, path, region, endpoint)
		}
		return nil, errors.New("config: signer=aws-kms requires --aws-kms-key-id or --aws-kms-key-id-file")
	default:
		return nil, errors.Newf("config: unknown --signer %q, want pk or aws-kms", c.String("signer"))
	}
}
