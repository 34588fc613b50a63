package blkcache

import (
	"fmt"
	"os"
)

// RAMDisk is an in-memory Disk backing store, useful for tests and for
// the batch-mode harness that never needs the image to outlive the
// process. Grounded on biscuit's ufs test harness, which boots filesystem
// tests against an in-memory image rather than a real AHCI device.
type RAMDisk struct {
	blocks [][BlockSize]byte
}

// NewRAMDisk creates a RAMDisk with room for the given number of blocks.
func NewRAMDisk(numBlocks int) *RAMDisk {
	return &RAMDisk{blocks: make([][BlockSize]byte, numBlocks)}
}

func (d *RAMDisk) ReadBlock(id uint64, buf *[BlockSize]byte) {
	if int(id) >= len(d.blocks) {
		panic(fmt.Sprintf("ramdisk: read of out-of-range block %d", id))
	}
	*buf = d.blocks[id]
}

func (d *RAMDisk) WriteBlock(id uint64, buf *[BlockSize]byte) {
	if int(id) >= len(d.blocks) {
		panic(fmt.Sprintf("ramdisk: write of out-of-range block %d", id))
	}
	d.blocks[id] = *buf
}

// FileDisk is a Disk backed by a host file, the file-backed shim named
// in spec.md's design notes as interchangeable with a RAM disk or a real
// virtio-blk driver. Grounded on biscuit's ufs.ahci_disk_t, which wraps
// an os.File the same way for its host-side test and mkfs tooling.
type FileDisk struct {
	f *os.File
}

// OpenFileDisk opens path for read/write use as a block device backing
// store.
func OpenFileDisk(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &FileDisk{f: f}, nil
}

// CreateFileDisk creates path, sized to hold numBlocks blocks, for use as
// a fresh block device backing store.
func CreateFileDisk(path string, numBlocks int) (*FileDisk, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(numBlocks) * BlockSize); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDisk{f: f}, nil
}

func (d *FileDisk) ReadBlock(id uint64, buf *[BlockSize]byte) {
	if _, err := d.f.ReadAt(buf[:], int64(id)*BlockSize); err != nil {
		panic(fmt.Sprintf("filedisk: read block %d: %v", id, err))
	}
}

func (d *FileDisk) WriteBlock(id uint64, buf *[BlockSize]byte) {
	if _, err := d.f.WriteAt(buf[:], int64(id)*BlockSize); err != nil {
		panic(fmt.Sprintf("filedisk: write block %d: %v", id, err))
	}
}

// Close closes the backing file.
func (d *FileDisk) Close() error { return d.f.Close() }
