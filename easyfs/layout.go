// Package easyfs implements the on-disk "easy" filesystem: super-block,
// two bitmaps, inode area, and data area, with direct/single-indirect/
// double-indirect block addressing — spec.md section 3/4.5. Grounded on
// rcore-os's original_source/easy-fs/src/{layout,bitmap,efs,vfs}.rs for
// exact on-disk geometry, expressed in biscuit's idiom of small typed
// views over a fixed-size byte buffer (fs.Superblock_t's fieldr/fieldw
// accessors in fs/super.go).
package easyfs

import (
	"encoding/binary"

	"rvcore/blkcache"
)

// Magic identifies a valid easy-fs super block.
const Magic uint32 = 0xDEADBEEF

// DirectCount is the number of direct block pointers a DiskInode carries.
const DirectCount = 28

// IndirectEntries is the number of u32 block ids packed into one
// indirect block.
const IndirectEntries = blkcache.BlockSize / 4

// MaxFileBlocks is the largest number of data blocks one inode can own:
// 28 direct + 128 single-indirect + 128*128 double-indirect.
const MaxFileBlocks = DirectCount + IndirectEntries + IndirectEntries*IndirectEntries

// MaxFileSize is MaxFileBlocks expressed in bytes.
const MaxFileSize = MaxFileBlocks * blkcache.BlockSize

// InodeType distinguishes a file inode from a directory inode.
type InodeType uint32

const (
	TypeFile InodeType = 0
	TypeDir  InodeType = 1
)

// SuperBlock is the in-memory view of block 0.
type SuperBlock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
}

const superBlockEncodedSize = 4 * 6

// Encode writes sb into a 512-byte block buffer.
func (sb *SuperBlock) Encode(buf *[blkcache.BlockSize]byte) {
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[8:12], sb.InodeBitmapBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], sb.InodeAreaBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], sb.DataBitmapBlocks)
	binary.LittleEndian.PutUint32(buf[20:24], sb.DataAreaBlocks)
}

// Decode reads sb from a 512-byte block buffer.
func (sb *SuperBlock) Decode(buf *[blkcache.BlockSize]byte) {
	sb.Magic = binary.LittleEndian.Uint32(buf[0:4])
	sb.TotalBlocks = binary.LittleEndian.Uint32(buf[4:8])
	sb.InodeBitmapBlocks = binary.LittleEndian.Uint32(buf[8:12])
	sb.InodeAreaBlocks = binary.LittleEndian.Uint32(buf[12:16])
	sb.DataBitmapBlocks = binary.LittleEndian.Uint32(buf[16:20])
	sb.DataAreaBlocks = binary.LittleEndian.Uint32(buf[20:24])
}

// Valid reports whether the decoded magic matches.
func (sb *SuperBlock) Valid() bool { return sb.Magic == Magic }

// DiskInode is the on-disk inode layout. It is designed to fit evenly in
// 512 bytes: size(4) + type(4) + 28 direct ids(4 each) + indirect1(4) +
// indirect2(4) = 4+4+112+4+4 = 128 bytes; four inodes per block.
type DiskInode struct {
	Size      uint32
	Direct    [DirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      InodeType
}

// DiskInodeEncodedSize is the fixed on-disk size of one DiskInode.
const DiskInodeEncodedSize = 4 + DirectCount*4 + 4 + 4 + 4

// InodesPerBlock is how many DiskInode records fit in one block.
const InodesPerBlock = blkcache.BlockSize / DiskInodeEncodedSize

// Encode writes the inode into dst at the given byte offset within a
// block buffer.
func (d *DiskInode) Encode(block *[blkcache.BlockSize]byte, offset int) {
	b := block[offset : offset+DiskInodeEncodedSize]
	binary.LittleEndian.PutUint32(b[0:4], d.Size)
	for i, id := range d.Direct {
		binary.LittleEndian.PutUint32(b[4+i*4:8+i*4], id)
	}
	o := 4 + DirectCount*4
	binary.LittleEndian.PutUint32(b[o:o+4], d.Indirect1)
	binary.LittleEndian.PutUint32(b[o+4:o+8], d.Indirect2)
	binary.LittleEndian.PutUint32(b[o+8:o+12], uint32(d.Type))
}

// Decode reads the inode from block at the given byte offset.
func (d *DiskInode) Decode(block *[blkcache.BlockSize]byte, offset int) {
	b := block[offset : offset+DiskInodeEncodedSize]
	d.Size = binary.LittleEndian.Uint32(b[0:4])
	for i := range d.Direct {
		d.Direct[i] = binary.LittleEndian.Uint32(b[4+i*4 : 8+i*4])
	}
	o := 4 + DirectCount*4
	d.Indirect1 = binary.LittleEndian.Uint32(b[o : o+4])
	d.Indirect2 = binary.LittleEndian.Uint32(b[o+4 : o+8])
	d.Type = InodeType(binary.LittleEndian.Uint32(b[o+8 : o+12]))
}

// IsDir reports whether this inode is a directory.
func (d *DiskInode) IsDir() bool { return d.Type == TypeDir }

// IsFile reports whether this inode is a regular file.
func (d *DiskInode) IsFile() bool { return d.Type == TypeFile }

// DirEntrySize is the fixed size of one packed directory entry: a 28-byte
// NUL-padded name field plus a u32 inode id. A name that fills all 28
// bytes is stored without a terminating NUL.
const DirEntrySize = 32
const dirEntryNameLen = 28

// DirEntry is one entry of a directory's packed array body.
type DirEntry struct {
	Name    string
	InodeID uint32
}

// Encode writes the entry into a 32-byte buffer.
func (e DirEntry) Encode() [DirEntrySize]byte {
	var buf [DirEntrySize]byte
	n := copy(buf[:dirEntryNameLen], e.Name)
	_ = n
	binary.LittleEndian.PutUint32(buf[dirEntryNameLen:], e.InodeID)
	return buf
}

// DecodeDirEntry reads one entry out of a 32-byte buffer.
func DecodeDirEntry(buf [DirEntrySize]byte) DirEntry {
	nameEnd := 0
	for nameEnd < dirEntryNameLen && buf[nameEnd] != 0 {
		nameEnd++
	}
	return DirEntry{
		Name:    string(buf[:nameEnd]),
		InodeID: binary.LittleEndian.Uint32(buf[dirEntryNameLen:]),
	}
}

// blocksNumNeeded returns how many data blocks an inode of size bytes
// needs, given the direct/indirect1/indirect2 addressing scheme.
func blocksNumNeeded(size uint32) uint32 {
	return (size + blkcache.BlockSize - 1) / blkcache.BlockSize
}

// totalBlocksNeeded adds in the indirect index blocks themselves (not
// just the data blocks they point at) so callers know how many physical
// blocks to allocate in total when growing a file — used by Inode.growTo
// to size the block list it hands to IncreaseSize.
func totalBlocksNeeded(size uint32) uint32 {
	dataBlocks := blocksNumNeeded(size)
	total := dataBlocks
	if dataBlocks > DirectCount {
		total++ // indirect1 block itself
	}
	if dataBlocks > DirectCount+IndirectEntries {
		total++ // indirect2 block itself
		// inner indirect1 blocks used by the double-indirect range
		used := dataBlocks - DirectCount - IndirectEntries
		inner := (used + IndirectEntries - 1) / IndirectEntries
		total += inner
	}
	return total
}
