package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"math/big"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// secp256k1N is the order of the secp256k1 base point; KMS returns
// high-S signatures half the time, and Ethereum requires the
// EIP-2 canonical low-S form.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
var secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

// KMSSigner signs by calling out to an AWS KMS asymmetric ECDSA key,
// mirroring SignerArgs::AwsKms in the original args.rs. The private
// key never leaves KMS; this type only ever sees digests and
// DER-encoded signatures.
type KMSSigner struct {
	client  *kms.Client
	keyID   string
	address common.Address
	pubKey  *ecdsa.PublicKey
}

// NewKMSSigner resolves keyID's public key against region (and,
// for local testing, an optional non-empty endpointURL) and derives
// the Ethereum address it signs for.
func NewKMSSigner(ctx context.Context, keyID, region, endpointURL string) (*KMSSigner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "signer: load aws config")
	}
	client := kms.NewFromConfig(cfg, func(o *kms.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})

	s := &KMSSigner{client: client, keyID: keyID}
	if err := s.resolvePublicKey(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewKMSSignerFromKeyIDFile reads keyID from a file, mirroring
// --aws-kms-key-id-file.
func NewKMSSignerFromKeyIDFile(ctx context.Context, path, region, endpointURL string) (*KMSSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "signer: read kms key id file")
	}
	return NewKMSSigner(ctx, strings.TrimSpace(string(data)), region, endpointURL)
}

func (s *KMSSigner) Address() common.Address { return s.address }

func (s *KMSSigner) resolvePublicKey(ctx context.Context) error {
	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(s.keyID)})
	if err != nil {
		return errors.Wrap(err, "signer: kms get public key")
	}
	pubKey, err := parseKMSPublicKey(out.PublicKey)
	if err != nil {
		return err
	}
	s.pubKey = pubKey
	s.address = crypto.PubkeyToAddress(*pubKey)
	return nil
}

func (s *KMSSigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	signerFn := func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if addr != s.address {
			return nil, errors.Newf("signer: kms signer bound to %s, asked to sign for %s", s.address, addr)
		}
		txSigner := types.LatestSignerForChainID(chainID)
		hash := txSigner.Hash(tx)

		sig, err := s.sign(ctx, hash)
		if err != nil {
			return nil, err
		}
		return tx.WithSignature(txSigner, sig)
	}
	return &bind.TransactOpts{From: s.address, Signer: signerFn, Context: ctx}, nil
}

func (s *KMSSigner) sign(ctx context.Context, hash common.Hash) ([]byte, error) {
	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          hash[:],
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, errors.Wrap(err, "signer: kms sign")
	}

	r, sVal, err := parseDERSignature(out.Signature)
	if err != nil {
		return nil, err
	}
	sVal = normalizeS(sVal)

	return recoverableSignature(hash, r, sVal, s.pubKey)
}

type subjectPublicKeyInfo struct {
	Algorithm asn1.RawValue
	PublicKey asn1.BitString
}

func parseKMSPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, errors.Wrap(err, "signer: parse kms public key")
	}
	pub, err := crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "signer: unmarshal secp256k1 public key")
	}
	return pub, nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

func parseDERSignature(der []byte) (r, s *big.Int, err error) {
	var sig ecdsaSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, nil, errors.Wrap(err, "signer: parse kms signature")
	}
	return sig.R, sig.S, nil
}

func normalizeS(s *big.Int) *big.Int {
	if s.Cmp(secp256k1HalfN) > 0 {
		return new(big.Int).Sub(secp256k1N, s)
	}
	return s
}

// recoverableSignature tries both recovery ids and returns the
// 65-byte [R|S|V] signature that recovers to pubKey: KMS doesn't
// report which one is correct, go-ethereum's signature format needs it.
func recoverableSignature(hash common.Hash, r, s *big.Int, pubKey *ecdsa.PublicKey) ([]byte, error) {
	rBytes := make([]byte, 32)
	sBytes := make([]byte, 32)
	r.FillBytes(rBytes)
	s.FillBytes(sBytes)
	wantAddress := crypto.PubkeyToAddress(*pubKey)

	for v := byte(0); v < 2; v++ {
		candidate := append(append(append([]byte{}, rBytes...), sBytes...), v)
		recovered, err := crypto.SigToPub(hash[:], candidate)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*recovered) == wantAddress {
			return candidate, nil
		}
	}
	return nil, errors.New("signer: kms signature did not recover to the expected address")
}
