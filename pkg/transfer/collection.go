package transfer

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// PackCollection walks the directory r resolves to and returns it as a
// tar stream (spec.md §4.7's collection transfer, `is_collection=true`
// on a remote_posix_path/remote_resource descriptor). Used on both the
// initiator side (pkg/remote.Client.Push/Pull) and the acceptor side
// (the path-kind transferors' AcceptTransfer) whenever a resource
// crossing the wire names a directory rather than a single file.
func PackCollection(r *types.Resource) ([]byte, error) {
	root := resolvePath(r)
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnpackCollection materialises a tar stream produced by PackCollection
// under r's resolved path. It unpacks into a sibling staging directory
// first and renames it into place only once every entry has landed, so
// a crash mid-unpack never leaves a partially materialised collection
// where r's path is expected (spec.md §4.7's "temp-path-then-rename").
func UnpackCollection(r *types.Resource, data []byte) error {
	dest := resolvePath(r)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	staging := dest + ".norns-tmp"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			os.RemoveAll(staging)
			return err
		}

		target := filepath.Join(staging, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700)
		case tar.TypeReg:
			err = writeTarEntry(target, tr, os.FileMode(hdr.Mode))
		default:
			continue
		}
		if err != nil {
			os.RemoveAll(staging)
			return err
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return err
	}
	return os.Rename(staging, dest)
}

func writeTarEntry(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
