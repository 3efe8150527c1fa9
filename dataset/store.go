package dataset

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hupe1980/pimeans/blobstore"
	"github.com/hupe1980/pimeans/numeric"
)

// Upload encodes points and writes them to the store under name.
func Upload[F numeric.Feature](ctx context.Context, store blobstore.Store, name string, points []F, dim int, codec Codec) error {
	var buf bytes.Buffer
	if err := Encode(&buf, points, dim, codec); err != nil {
		return err
	}
	if err := store.Put(ctx, name, &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("put %q: %w", name, err)
	}
	return nil
}

// Fetch reads a dataset previously written with Upload.
func Fetch[F numeric.Feature](ctx context.Context, store blobstore.Store, name string) ([]F, int, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, 0, fmt.Errorf("open %q: %w", name, err)
	}
	defer rc.Close()

	return Decode[F](rc)
}
