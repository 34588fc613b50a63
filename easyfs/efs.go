package easyfs

import (
	"fmt"
	"sync"

	"rvcore/blkcache"
)

// FileSystem is the in-memory handle onto an easy-fs volume: the
// super-block geometry, the two bitmaps, and the shared block cache and
// disk the whole volume is read and written through — spec.md section
// 4.5.
type FileSystem struct {
	mu sync.Mutex

	disk  blkcache.Disk
	cache *blkcache.Cache

	sb SuperBlock

	inodeBitmap *Bitmap
	dataBitmap  *Bitmap

	inodeAreaStart uint64
	dataAreaStart  uint64
}

func zeroBlock(cache *blkcache.Cache, disk blkcache.Disk, id uint64) {
	h := cache.Get(id, disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		for i := range buf {
			buf[i] = 0
		}
	})
}

// Create formats a fresh volume of totalBlocks blocks with
// inodeBitmapBlocks blocks reserved for the inode bitmap, computing
// inodeAreaBlocks = ceil(inodeCount*DiskInodeEncodedSize/512) and
// dataBitmapBlocks = ceil(dataTotal/4097) (one bit per data block, plus
// the bitmap block itself), per spec.md section 4.5. It zeros every
// block, writes the super block, and allocates inode 0 as the root
// directory.
func Create(disk blkcache.Disk, cache *blkcache.Cache, totalBlocks, inodeBitmapBlocks uint32) *FileSystem {
	inodeBitmap := NewBitmap(1, inodeBitmapBlocks)
	inodeCount := inodeBitmap.MaxBits()
	inodeAreaBlocks := uint32((inodeCount*DiskInodeEncodedSize + blkcache.BlockSize - 1) / blkcache.BlockSize)

	inodeTotalBlocks := inodeBitmapBlocks + inodeAreaBlocks
	dataTotalBlocks := totalBlocks - 1 - inodeTotalBlocks
	dataBitmapBlocks := (dataTotalBlocks + 4096) / 4097
	dataAreaBlocks := dataTotalBlocks - dataBitmapBlocks

	dataBitmapStart := uint64(1 + inodeTotalBlocks)
	dataBitmap := NewBitmap(dataBitmapStart, dataBitmapBlocks)

	for i := uint32(0); i < totalBlocks; i++ {
		zeroBlock(cache, disk, uint64(i))
	}

	sb := SuperBlock{
		Magic:             Magic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataAreaBlocks,
	}
	h := cache.Get(0, disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) { sb.Encode(buf) })
	cache.Sync()

	fs := &FileSystem{
		disk:           disk,
		cache:          cache,
		sb:             sb,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     dataBitmap,
		inodeAreaStart: uint64(1 + inodeBitmapBlocks),
		dataAreaStart:  dataBitmapStart + uint64(dataBitmapBlocks),
	}

	rootID := fs.allocInode()
	if rootID != 0 {
		panic("easyfs: root inode must be inode 0")
	}
	blockID, offset := fs.getDiskInodePos(rootID)
	hi := cache.Get(blockID, disk)
	hi.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		root := DiskInode{Type: TypeDir}
		root.Encode(buf, offset)
	})
	cache.Sync()
	return fs
}

// Open reconstructs the in-memory layout from block 0 of disk, asserting
// the magic — spec.md section 4.5.
func Open(disk blkcache.Disk, cache *blkcache.Cache) *FileSystem {
	var sb SuperBlock
	h := cache.Get(0, disk)
	h.Read(func(buf *[blkcache.BlockSize]byte) { sb.Decode(buf) })
	if !sb.Valid() {
		panic(fmt.Sprintf("easyfs: bad magic %#x", sb.Magic))
	}

	inodeBitmap := NewBitmap(1, sb.InodeBitmapBlocks)
	dataBitmapStart := uint64(1 + sb.InodeBitmapBlocks + sb.InodeAreaBlocks)
	dataBitmap := NewBitmap(dataBitmapStart, sb.DataBitmapBlocks)

	return &FileSystem{
		disk:           disk,
		cache:          cache,
		sb:             sb,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     dataBitmap,
		inodeAreaStart: uint64(1 + sb.InodeBitmapBlocks),
		dataAreaStart:  dataBitmapStart + uint64(sb.DataBitmapBlocks),
	}
}

// getDiskInodePos returns (blockID, byteOffsetWithinBlock) for inodeID.
func (fs *FileSystem) getDiskInodePos(inodeID uint32) (uint64, int) {
	perBlock := uint32(InodesPerBlock)
	blk := fs.inodeAreaStart + uint64(inodeID/perBlock)
	off := int(inodeID%perBlock) * DiskInodeEncodedSize
	return blk, off
}

func (fs *FileSystem) allocInode() uint32 {
	idx := fs.inodeBitmap.Alloc(fs.cache, fs.disk)
	if idx < 0 {
		panic("easyfs: out of inodes")
	}
	return uint32(idx)
}

func (fs *FileSystem) allocDataBlock() uint32 {
	idx := fs.dataBitmap.Alloc(fs.cache, fs.disk)
	if idx < 0 {
		panic("easyfs: out of data blocks")
	}
	return uint32(fs.dataAreaStart) + uint32(idx)
}

// deallocDataBlock zeros the data block then clears its bit; the bit
// must already be set (spec.md section 4.5).
func (fs *FileSystem) deallocDataBlock(blockID uint32) {
	zeroBlock(fs.cache, fs.disk, uint64(blockID))
	fs.dataBitmap.Dealloc(fs.cache, fs.disk, int64(blockID)-int64(fs.dataAreaStart))
}

// allocBlocksFor returns n freshly allocated data block ids, for use as
// the newBlocks argument to DiskInode.IncreaseSize.
func (fs *FileSystem) allocBlocksFor(n uint32) []uint32 {
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = fs.allocDataBlock()
	}
	return ids
}

// Lock/Unlock expose the filesystem-wide mutex the VFS layer serializes
// structural mutation through (allocating inodes/blocks, growing
// directories) — spec.md section 4.5's "VFS Inode ... locks the
// filesystem, grow if needed, then delegate to the disk inode".
func (fs *FileSystem) Lock()   { fs.mu.Lock() }
func (fs *FileSystem) Unlock() { fs.mu.Unlock() }

// Sync flushes the block cache to disk.
func (fs *FileSystem) Sync() { fs.cache.Sync() }
