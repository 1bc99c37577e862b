// Package blockstore implements zault's content-addressed filesystem
// persistence: shard directories, atomic tmp-then-rename writes, and
// recursive enumeration. Ported from the teacher's node.BlockStore
// (node/blockstore.go) — same shard-path convention and atomic-write
// discipline — generalized from height-indexed/canonical-chain tracking
// down to pure content addressing (no index file; no chain concept, since
// §1 excludes version-chain traversal beyond storing prev_hash).
package blockstore

import (
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattneel/zault/block"
	"github.com/mattneel/zault/zaulterr"
)

const blocksDirName = "blocks"

// maxOnDiskSize bounds a single block file read, matching block.MaxDataSize
// plus the fixed-width header/signature/hash overhead with generous
// headroom.
const maxOnDiskSize = block.MaxDataSize + 8192

// BlockStore is a content-addressed directory of serialized blocks.
type BlockStore struct {
	basePath  string
	blocksDir string
}

// Open ensures basePath and basePath/blocks exist (idempotent, ported from
// node.OpenBlockStore) and returns a handle to the store.
func Open(basePath string) (*BlockStore, error) {
	blocksDir := filepath.Join(basePath, blocksDirName)
	if err := os.MkdirAll(blocksDir, 0o755); err != nil {
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, "blockstore.Open", err)
	}
	return &BlockStore{basePath: basePath, blocksDir: blocksDir}, nil
}

func (s *BlockStore) pathFor(hash [32]byte) string {
	hexHash := hex.EncodeToString(hash[:])
	return filepath.Join(s.blocksDir, hexHash[:2], hexHash)
}

// Put persists a block atomically: serialize, write to a .tmp sibling in
// the shard directory, then rename into place. A second Put with the same
// hash overwrites — safe because the hash covers every signed field, so
// equal hashes imply equal blocks.
func (s *BlockStore) Put(hash [32]byte, b *block.Block) error {
	const op = "blockstore.Put"
	finalPath := s.pathFor(hash)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}

	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, b.Serialize(), 0o644); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	return nil
}

// Get reads and deserializes the block stored under hash.
func (s *BlockStore) Get(hash [32]byte) (*block.Block, error) {
	const op = "blockstore.Get"
	path := s.pathFor(hash)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zaulterr.Wrap(zaulterr.NotFound, op, err)
		}
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	if !info.Mode().IsRegular() {
		return nil, zaulterr.New(zaulterr.NotFound, op, "not a regular file")
	}
	if info.Size() > maxOnDiskSize {
		return nil, zaulterr.New(zaulterr.InvalidBlock, op, "block file exceeds maximum size")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxOnDiskSize+1))
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	if int64(len(raw)) > maxOnDiskSize {
		return nil, zaulterr.New(zaulterr.InvalidBlock, op, "block file exceeds maximum size")
	}

	b, err := block.Deserialize(raw)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.InvalidBlock, op, err)
	}
	return b, nil
}

// Has reports whether hash's block path exists as a regular file.
func (s *BlockStore) Has(hash [32]byte) bool {
	info, err := os.Stat(s.pathFor(hash))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Enumerate walks blocks/ recursively, skipping any basename ending in
// .tmp or whose length is not 64, and yields the hashes parsed from the
// remaining filenames.
func (s *BlockStore) Enumerate() ([][32]byte, error) {
	const op = "blockstore.Enumerate"
	var hashes [][32]byte

	err := filepath.WalkDir(s.blocksDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if len(name) != 64 {
			return nil
		}
		raw, decErr := hex.DecodeString(name)
		if decErr != nil || len(raw) != 32 {
			return nil
		}
		var h [32]byte
		copy(h[:], raw)
		hashes = append(hashes, h)
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	return hashes, nil
}
