// Package fetch downloads project files and asset packs from go-getter
// URLs: plain http(s), git:: subdirectory syntax, s3, or local paths.
package fetch

import (
	"context"
	"fmt"

	getter "github.com/hashicorp/go-getter"
)

// File downloads a single file from src into dst.
func File(ctx context.Context, dst, src string) error {
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("fetch file %s: %w", src, err)
	}
	return nil
}

// Dir downloads a directory tree from src into dst.
func Dir(ctx context.Context, dst, src string) error {
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("fetch dir %s: %w", src, err)
	}
	return nil
}
