package easyfs

import (
	"encoding/binary"

	"rvcore/blkcache"
)

func readIndirectEntry(cache *blkcache.Cache, disk blkcache.Disk, indirectBlock uint32, slot int) uint32 {
	var v uint32
	h := cache.Get(uint64(indirectBlock), disk)
	h.Read(func(buf *[blkcache.BlockSize]byte) {
		v = binary.LittleEndian.Uint32(buf[slot*4 : slot*4+4])
	})
	return v
}

func writeIndirectEntry(cache *blkcache.Cache, disk blkcache.Disk, indirectBlock uint32, slot int, value uint32) {
	h := cache.Get(uint64(indirectBlock), disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		binary.LittleEndian.PutUint32(buf[slot*4:slot*4+4], value)
	})
}

// blockIDAt resolves logical block index n within this inode to an
// absolute on-disk block id, per spec.md section 4.5's addressing rules:
// n<28 direct; 28<=n<156 single-indirect; otherwise double-indirect.
func (d *DiskInode) blockIDAt(n uint32, cache *blkcache.Cache, disk blkcache.Disk) uint32 {
	switch {
	case n < DirectCount:
		return d.Direct[n]
	case n < DirectCount+IndirectEntries:
		return readIndirectEntry(cache, disk, d.Indirect1, int(n-DirectCount))
	default:
		n2 := n - DirectCount - IndirectEntries
		inner := readIndirectEntry(cache, disk, d.Indirect2, int(n2/IndirectEntries))
		return readIndirectEntry(cache, disk, inner, int(n2%IndirectEntries))
	}
}

// IncreaseSize grows the inode to newSize bytes, consuming newBlocks (of
// length exactly blocksNumNeeded(newSize)-blocksNumNeeded(oldSize) plus
// whatever index blocks are newly required) to fill in direct pointers,
// allocate indirect1 on first crossing 28, indirect2 on first crossing
// 156, and new inner indirect1 blocks whenever the double-indirect
// region crosses a 128-entry boundary — spec.md section 4.5.
// Precondition: newSize >= d.Size.
func (d *DiskInode) IncreaseSize(newSize uint32, newBlocks []uint32, cache *blkcache.Cache, disk blkcache.Disk) {
	if newSize < d.Size {
		panic("easyfs: IncreaseSize called with a smaller size")
	}
	oldBlocks := blocksNumNeeded(d.Size)
	totalBlocks := blocksNumNeeded(newSize)
	d.Size = newSize

	next := 0
	take := func() uint32 {
		if next >= len(newBlocks) {
			panic("easyfs: IncreaseSize ran out of preallocated blocks")
		}
		v := newBlocks[next]
		next++
		return v
	}

	for n := oldBlocks; n < totalBlocks; n++ {
		switch {
		case n < DirectCount:
			d.Direct[n] = take()
		case n < DirectCount+IndirectEntries:
			if n == DirectCount {
				d.Indirect1 = take()
			}
			writeIndirectEntry(cache, disk, d.Indirect1, int(n-DirectCount), take())
		default:
			if n == DirectCount+IndirectEntries {
				d.Indirect2 = take()
			}
			n2 := n - DirectCount - IndirectEntries
			outer := int(n2 / IndirectEntries)
			inner := int(n2 % IndirectEntries)
			if inner == 0 {
				innerBlock := take()
				writeIndirectEntry(cache, disk, d.Indirect2, outer, innerBlock)
			}
			innerBlock := readIndirectEntry(cache, disk, d.Indirect2, outer)
			writeIndirectEntry(cache, disk, innerBlock, inner, take())
		}
	}
}

// ClearSize returns every data block id this inode owns (direct, then
// indirect1 itself and its entries, then indirect2 itself, then each
// owned inner indirect1 block and its entries), resets size and all
// block pointers to zero. The caller is responsible for deallocating
// every returned id through the data bitmap — spec.md section 4.5.
func (d *DiskInode) ClearSize(cache *blkcache.Cache, disk blkcache.Disk) []uint32 {
	total := blocksNumNeeded(d.Size)
	var ids []uint32

	directN := total
	if directN > DirectCount {
		directN = DirectCount
	}
	for i := uint32(0); i < directN; i++ {
		ids = append(ids, d.Direct[i])
		d.Direct[i] = 0
	}

	if total > DirectCount {
		ids = append(ids, d.Indirect1)
		n1 := total - DirectCount
		if n1 > IndirectEntries {
			n1 = IndirectEntries
		}
		for i := uint32(0); i < n1; i++ {
			ids = append(ids, readIndirectEntry(cache, disk, d.Indirect1, int(i)))
		}
		d.Indirect1 = 0
	}

	if total > DirectCount+IndirectEntries {
		ids = append(ids, d.Indirect2)
		remaining := total - DirectCount - IndirectEntries
		outerCount := (remaining + IndirectEntries - 1) / IndirectEntries
		for outer := uint32(0); outer < outerCount; outer++ {
			innerBlock := readIndirectEntry(cache, disk, d.Indirect2, int(outer))
			ids = append(ids, innerBlock)
			innerN := remaining - outer*IndirectEntries
			if innerN > IndirectEntries {
				innerN = IndirectEntries
			}
			for i := uint32(0); i < innerN; i++ {
				ids = append(ids, readIndirectEntry(cache, disk, innerBlock, int(i)))
			}
		}
		d.Indirect2 = 0
	}

	d.Size = 0
	return ids
}

// ReadAt copies bytes [offset, offset+len(buf)) clipped to d.Size into
// buf, block by block, through the block cache. It returns the number of
// bytes actually copied.
func (d *DiskInode) ReadAt(offset int, buf []byte, cache *blkcache.Cache, disk blkcache.Disk) int {
	end := offset + len(buf)
	if uint32(end) > d.Size {
		end = int(d.Size)
	}
	if offset >= end {
		return 0
	}
	copied := 0
	for start := offset; start < end; {
		blockEnd := (start/blkcache.BlockSize + 1) * blkcache.BlockSize
		if blockEnd > end {
			blockEnd = end
		}
		blockID := d.blockIDAt(uint32(start/blkcache.BlockSize), cache, disk)
		inBlockOff := start % blkcache.BlockSize
		n := blockEnd - start
		h := cache.Get(uint64(blockID), disk)
		h.Read(func(b *[blkcache.BlockSize]byte) {
			copy(buf[copied:copied+n], b[inBlockOff:inBlockOff+n])
		})
		copied += n
		start = blockEnd
	}
	return copied
}

// WriteAt copies buf into [offset, offset+len(buf)), clipped to d.Size;
// it does not extend the file — callers must IncreaseSize first, per
// spec.md section 4.5.
func (d *DiskInode) WriteAt(offset int, buf []byte, cache *blkcache.Cache, disk blkcache.Disk) int {
	end := offset + len(buf)
	if uint32(end) > d.Size {
		end = int(d.Size)
	}
	if offset >= end {
		return 0
	}
	written := 0
	for start := offset; start < end; {
		blockEnd := (start/blkcache.BlockSize + 1) * blkcache.BlockSize
		if blockEnd > end {
			blockEnd = end
		}
		blockID := d.blockIDAt(uint32(start/blkcache.BlockSize), cache, disk)
		inBlockOff := start % blkcache.BlockSize
		n := blockEnd - start
		h := cache.Get(uint64(blockID), disk)
		h.ReadMut(func(b *[blkcache.BlockSize]byte) {
			copy(b[inBlockOff:inBlockOff+n], buf[written:written+n])
		})
		written += n
		start = blockEnd
	}
	return written
}
