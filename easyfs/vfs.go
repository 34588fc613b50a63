package easyfs

import (
	"golang.org/x/text/unicode/norm"

	"rvcore/blkcache"
)

// normalizeName puts a directory entry name into NFC before it is ever
// compared or stored, so "café" spelled with a combining accent and
// "café" spelled with the precomposed character collide on this
// filesystem exactly as they would on one mount point of a real
// filesystem that normalizes names — rather than silently coexisting as
// two distinct, visually identical entries. Grounded on the teacher
// pack's reference to golang.org/x/text for this exact normalization
// concern.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// Inode is a VFS handle identifying one on-disk inode by its (block id,
// byte offset within block) position, plus the filesystem and disk it
// belongs to — spec.md section 4.5.
type Inode struct {
	blockID uint64
	offset  int
	fs      *FileSystem
	disk    blkcache.Disk
}

// RootInode returns a handle to inode 0, the root directory.
func RootInode(fs *FileSystem) *Inode {
	blk, off := fs.getDiskInodePos(0)
	return &Inode{blockID: blk, offset: off, fs: fs, disk: fs.disk}
}

func (ino *Inode) withDisk(fn func(d *DiskInode)) {
	h := ino.fs.cache.Get(ino.blockID, ino.disk)
	h.Read(func(buf *[blkcache.BlockSize]byte) {
		var d DiskInode
		d.Decode(buf, ino.offset)
		fn(&d)
	})
}

func (ino *Inode) withDiskMut(fn func(d *DiskInode)) {
	h := ino.fs.cache.Get(ino.blockID, ino.disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		var d DiskInode
		d.Decode(buf, ino.offset)
		fn(&d)
		d.Encode(buf, ino.offset)
	})
}

// IsDir reports whether the inode is a directory.
func (ino *Inode) IsDir() bool {
	var isDir bool
	ino.withDisk(func(d *DiskInode) { isDir = d.IsDir() })
	return isDir
}

// Size reports the inode's current byte size.
func (ino *Inode) Size() uint32 {
	var sz uint32
	ino.withDisk(func(d *DiskInode) { sz = d.Size })
	return sz
}

func (ino *Inode) entryCount() int {
	return int(ino.Size()) / DirEntrySize
}

func (ino *Inode) readEntry(i int) DirEntry {
	var buf [DirEntrySize]byte
	ino.withDisk(func(d *DiskInode) {
		d.ReadAt(i*DirEntrySize, buf[:], ino.fs.cache, ino.disk)
	})
	return DecodeDirEntry(buf)
}

// Find scans this directory's entries for name and returns a handle to
// the matching inode, or nil if not found — spec.md section 4.5.
func (ino *Inode) Find(name string) *Inode {
	if !ino.IsDir() {
		return nil
	}
	name = normalizeName(name)
	for i := 0; i < ino.entryCount(); i++ {
		e := ino.readEntry(i)
		if e.Name == name {
			blk, off := ino.fs.getDiskInodePos(e.InodeID)
			return &Inode{blockID: blk, offset: off, fs: ino.fs, disk: ino.disk}
		}
	}
	return nil
}

// DirListing is one (name, inode) pair returned by Ls.
type DirListing struct {
	Name  string
	Inode *Inode
}

// Ls returns every (name, Inode) pair in this directory.
func (ino *Inode) Ls() []DirListing {
	if !ino.IsDir() {
		return nil
	}
	out := make([]DirListing, 0, ino.entryCount())
	for i := 0; i < ino.entryCount(); i++ {
		e := ino.readEntry(i)
		blk, off := ino.fs.getDiskInodePos(e.InodeID)
		out = append(out, DirListing{Name: e.Name, Inode: &Inode{blockID: blk, offset: off, fs: ino.fs, disk: ino.disk}})
	}
	return out
}

func (ino *Inode) growTo(newSize uint32) {
	ino.withDiskMut(func(d *DiskInode) {
		if newSize <= d.Size {
			return
		}
		need := totalBlocksNeeded(newSize) - totalBlocksNeeded(d.Size)
		blocks := ino.fs.allocBlocksFor(need)
		d.IncreaseSize(newSize, blocks, ino.fs.cache, ino.disk)
	})
}

func (ino *Inode) appendDirEntry(e DirEntry) {
	n := ino.entryCount()
	newSize := uint32((n + 1) * DirEntrySize)
	ino.growTo(newSize)
	buf := e.Encode()
	ino.withDiskMut(func(d *DiskInode) {
		d.WriteAt(n*DirEntrySize, buf[:], ino.fs.cache, ino.disk)
	})
}

// Create allocates a new file inode named name in this directory. It
// fails (returns nil) if the name already exists — spec.md section 4.5.
func (ino *Inode) Create(name string) *Inode {
	ino.fs.Lock()
	defer ino.fs.Unlock()
	name = normalizeName(name)

	if !ino.IsDir() {
		panic("easyfs: Create on a non-directory inode")
	}
	if existing := ino.Find(name); existing != nil {
		return nil
	}

	newID := ino.fs.allocInode()
	blk, off := ino.fs.getDiskInodePos(newID)
	newInode := &Inode{blockID: blk, offset: off, fs: ino.fs, disk: ino.disk}
	h := ino.fs.cache.Get(blk, ino.disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		d := DiskInode{Type: TypeFile}
		d.Encode(buf, off)
	})

	ino.appendDirEntry(DirEntry{Name: name, InodeID: newID})
	return newInode
}

// MkDir allocates a new directory inode named name in this directory.
func (ino *Inode) MkDir(name string) *Inode {
	ino.fs.Lock()
	defer ino.fs.Unlock()
	name = normalizeName(name)

	if !ino.IsDir() {
		panic("easyfs: MkDir on a non-directory inode")
	}
	if existing := ino.Find(name); existing != nil {
		return nil
	}

	newID := ino.fs.allocInode()
	blk, off := ino.fs.getDiskInodePos(newID)
	newInode := &Inode{blockID: blk, offset: off, fs: ino.fs, disk: ino.disk}
	h := ino.fs.cache.Get(blk, ino.disk)
	h.ReadMut(func(buf *[blkcache.BlockSize]byte) {
		d := DiskInode{Type: TypeDir}
		d.Encode(buf, off)
	})

	ino.appendDirEntry(DirEntry{Name: name, InodeID: newID})
	return newInode
}

// Clear frees every data block owned by this inode and resets its size
// to zero — spec.md section 4.5. It does not remove the directory entry
// pointing at this inode; callers that want to unlink must do that
// separately.
func (ino *Inode) Clear() {
	ino.fs.Lock()
	defer ino.fs.Unlock()
	var owned []uint32
	ino.withDiskMut(func(d *DiskInode) {
		owned = d.ClearSize(ino.fs.cache, ino.disk)
	})
	for _, id := range owned {
		ino.fs.deallocDataBlock(id)
	}
}

// ReadAt reads into buf starting at offset, growing nothing, clipped to
// the inode's current size; it locks the filesystem for the duration of
// the read, per spec.md section 4.5.
func (ino *Inode) ReadAt(offset int, buf []byte) int {
	ino.fs.Lock()
	defer ino.fs.Unlock()
	var n int
	ino.withDisk(func(d *DiskInode) {
		n = d.ReadAt(offset, buf, ino.fs.cache, ino.disk)
	})
	return n
}

// WriteAt writes buf at offset, growing the inode first if the write
// extends past the current size, per spec.md section 4.5.
func (ino *Inode) WriteAt(offset int, buf []byte) int {
	ino.fs.Lock()
	defer ino.fs.Unlock()

	end := uint32(offset + len(buf))
	ino.growTo(end)

	var n int
	ino.withDiskMut(func(d *DiskInode) {
		n = d.WriteAt(offset, buf, ino.fs.cache, ino.disk)
	})
	return n
}

// RemoveDirEntry removes the entry named name from this directory by
// compacting the trailing entry into its slot and shrinking the
// directory's size by one entry. It is the caller's responsibility to
// have already Clear()'d the target inode if it should be freed. Neither
// the target's inode nor any directory data block is freed here: a block
// the shrunken directory no longer needs stays allocated to it.
func (ino *Inode) RemoveDirEntry(name string) bool {
	ino.fs.Lock()
	defer ino.fs.Unlock()
	name = normalizeName(name)

	n := ino.entryCount()
	target := -1
	for i := 0; i < n; i++ {
		if ino.readEntry(i).Name == name {
			target = i
			break
		}
	}
	if target < 0 {
		return false
	}
	last := ino.readEntry(n - 1)
	if target != n-1 {
		buf := last.Encode()
		ino.withDiskMut(func(d *DiskInode) {
			d.WriteAt(target*DirEntrySize, buf[:], ino.fs.cache, ino.disk)
		})
	}
	ino.withDiskMut(func(d *DiskInode) {
		d.Size -= DirEntrySize
	})
	return true
}
