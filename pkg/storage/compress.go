package storage

import (
	"context"
	"encoding/base64"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// WithCompression wraps an adapter so values are run-length encoded over
// their UTF-8 bytes and Base64 wrapped before they reach the inner
// adapter, and reversed on load. Values already stored uncompressed read
// back unchanged, so the wrapper can be added to an existing store.
func WithCompression(inner Adapter) Adapter {
	return &compressed{inner: inner}
}

type compressed struct {
	inner Adapter
}

func (c *compressed) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := c.inner.GetItem(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return decompress(value), true, nil
}

// GetItemSync implements SyncAdapter when the inner adapter does;
// otherwise it always misses.
func (c *compressed) GetItemSync(key string) (string, bool) {
	sync, ok := c.inner.(SyncAdapter)
	if !ok {
		return "", false
	}
	value, ok := sync.GetItemSync(key)
	if !ok {
		return "", false
	}
	return decompress(value), true
}

func (c *compressed) SetItem(ctx context.Context, key, value string) error {
	if err := c.inner.SetItem(ctx, key, compress(value)); err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (c *compressed) RemoveItem(ctx context.Context, key string) error {
	return c.inner.RemoveItem(ctx, key)
}

func (c *compressed) Clear(ctx context.Context) error {
	return c.inner.Clear(ctx)
}

// compress run-length encodes the UTF-8 bytes as (count, byte) pairs and
// Base64 wraps the result. JSON rarely has long runs, so this can expand
// short values; the persisted record format documents that trade-off.
func compress(s string) string {
	raw := []byte(s)
	if len(raw) == 0 {
		return ""
	}

	packed := make([]byte, 0, len(raw)*2)
	run := byte(1)
	for i := 1; i <= len(raw); i++ {
		if i < len(raw) && raw[i] == raw[i-1] && run < 255 {
			run++
			continue
		}
		packed = append(packed, run, raw[i-1])
		run = 1
	}

	return base64.StdEncoding.EncodeToString(packed)
}

// decompress reverses compress. Values that do not parse as compressed
// data are returned as-is (pre-compression records).
func decompress(s string) string {
	if s == "" {
		return ""
	}

	packed, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(packed)%2 != 0 || len(packed) == 0 {
		return s
	}

	var size int
	for i := 0; i < len(packed); i += 2 {
		if packed[i] == 0 {
			return s
		}
		size += int(packed[i])
	}

	out := make([]byte, 0, size)
	for i := 0; i < len(packed); i += 2 {
		count, b := int(packed[i]), packed[i+1]
		for j := 0; j < count; j++ {
			out = append(out, b)
		}
	}
	return string(out)
}

var _ SyncAdapter = (*compressed)(nil)
