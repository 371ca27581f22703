package config

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestCliContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		require.NoError(t, f.Apply(set))
	}
	for name, value := range args {
		require.NoError(t, set.Set(name, value))
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestFromContextRejectsInvalidAppAddress(t *testing.T) {
	c := newTestCliContext(t, map[string]string{
		"app-address":      "not-an-address",
		"machine-path":     "/tmp/machine",
		"signer":           "pk",
		"web3-private-key": "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	})
	_, err := FromContext(context.Background(), c)
	require.Error(t, err)
}

func TestFromContextResolvesPrivateKeySigner(t *testing.T) {
	c := newTestCliContext(t, map[string]string{
		"app-address":      "0x0000000000000000000000000000000000000001",
		"machine-path":     "/tmp/machine",
		"signer":           "pk",
		"web3-private-key": "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	})
	cfg, err := FromContext(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, cfg.Signer)
}

func TestFromContextRejectsUnknownSigner(t *testing.T) {
	c := newTestCliContext(t, map[string]string{
		"app-address":  "0x0000000000000000000000000000000000000001",
		"machine-path": "/tmp/machine",
		"signer":       "carrier-pigeon",
	})
	_, err := FromContext(context.Background(), c)
	require.Error(t, err)
}
