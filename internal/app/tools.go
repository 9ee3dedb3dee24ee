package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	s3blob "github.com/alanyoungcy/marketengine/internal/blob/s3"
	"github.com/alanyoungcy/marketengine/internal/config"
	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
)

// DumpArchive writes archived events to w as JSON lines. A key ending in
// "/" is treated as a prefix and every object under it is dumped in key
// order.
func DumpArchive(ctx context.Context, cfg *config.Config, key string, w io.Writer) (int, error) {
	client, err := s3blob.New(ctx, s3ClientConfig(cfg))
	if err != nil {
		return 0, fmt.Errorf("app: dump archive: %w", err)
	}
	bucket := s3blob.NewBucket(client)

	keys := []string{key}
	if strings.HasSuffix(key, "/") {
		objs, err := bucket.List(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("app: dump archive: %w", err)
		}
		keys = keys[:0]
		for _, o := range objs {
			keys = append(keys, o.Key)
		}
	}

	enc := json.NewEncoder(w)
	total := 0
	for _, k := range keys {
		n, err := dumpObject(ctx, bucket, k, enc)
		total += n
		if err != nil {
			return total, fmt.Errorf("app: dump archive %s: %w", k, err)
		}
	}
	return total, nil
}

func dumpObject(ctx context.Context, store domain.ObjectStore, key string, enc *json.Encoder) (int, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	events, err := s3blob.DecodeEvents(body)
	if err != nil {
		return 0, err
	}
	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// SealWalletKey encrypts the configured raw wallet seed with the wallet
// password and writes it to path, returning the key's public half.
func SealWalletKey(cfg *config.Config, path string) (string, error) {
	if cfg.Wallet.Seed == "" {
		return "", errors.New("app: seal key: wallet.seed is not set")
	}
	seed, err := hexutil.Decode(cfg.Wallet.Seed)
	if err != nil {
		return "", fmt.Errorf("app: seal key: %w", err)
	}
	signer, err := crypto.NewSigner(seed)
	if err != nil {
		return "", fmt.Errorf("app: seal key: %w", err)
	}
	blob, err := crypto.SealSeed(seed, cfg.Wallet.KeyPassword)
	if err != nil {
		return "", fmt.Errorf("app: seal key: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return "", fmt.Errorf("app: seal key: %w", err)
	}
	return signer.PublicKey().String(), nil
}
