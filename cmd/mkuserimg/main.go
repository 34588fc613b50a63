// Command mkuserimg packs a set of host files into a fresh easy-fs disk
// image, the disk-image-building analogue of biscuit's mkfs.go (which
// walks a skeleton directory tree and copies it file-by-file into a
// ufs.Ufs_t image via Append/MkFile). Unlike biscuit's skeleton-directory
// walk, this tool is driven by an explicit YAML manifest naming exactly
// which host files land at which in-image path — grounded on
// tinyrange-cc's YAML-configured build manifests — and reports progress
// the same way tinyrange-cc does for its own long-running host-side
// packing step.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"rvcore/blkcache"
	"rvcore/easyfs"
)

// Manifest is the decoded shape of userimg.yaml: one entry per file to
// pack into the image.
type Manifest struct {
	Entries []struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"entries"`
}

func main() {
	manifestPath := flag.String("manifest", "userimg.yaml", "YAML manifest listing files to pack")
	outPath := flag.String("out", "fs.img", "output disk image path")
	totalBlocks := flag.Uint("blocks", 8192, "total 512-byte blocks in the image")
	inodeBitmapBlocks := flag.Uint("inode-bitmap-blocks", 4, "blocks reserved for the inode bitmap")
	flag.Parse()

	manifest, err := loadManifest(*manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkuserimg: %v\n", err)
		os.Exit(1)
	}

	disk, err := blkcache.CreateFileDisk(*outPath, int(*totalBlocks))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkuserimg: %v\n", err)
		os.Exit(1)
	}
	defer disk.Close()

	cache := blkcache.NewCache(64)
	fs := easyfs.Create(disk, cache, uint32(*totalBlocks), uint32(*inodeBitmapBlocks))
	root := easyfs.RootInode(fs)

	bar := progressbar.Default(int64(len(manifest.Entries)), "packing "+*outPath)
	for _, e := range manifest.Entries {
		if err := packFile(root, e.Name, e.Path); err != nil {
			fmt.Fprintf(os.Stderr, "mkuserimg: %s: %v\n", e.Name, err)
			os.Exit(1)
		}
		bar.Add(1)
	}
	fs.Sync()
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// packFile creates name in root and writes hostPath's bytes into it. The
// bytes are opaque to this kernel (there is no RISC-V instruction decoder
// anywhere in this module — see userlib's package doc comment): what
// matters is that the name exists in the image for internal/appimage's
// Lookup to find.
func packFile(root *easyfs.Inode, name, hostPath string) error {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return err
	}
	ino := root.Create(name)
	if ino == nil {
		return fmt.Errorf("duplicate name %q", name)
	}
	ino.WriteAt(0, data)
	return nil
}
