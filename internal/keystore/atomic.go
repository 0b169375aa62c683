package keystore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/teaxyz/teabase/internal/errors"
)

// writePair stages both files next to their destination and renames them
// into place, private key first. If the public rename fails the private key
// that was there before is put back (or the new one removed when there was
// none), so a failed write never leaves an unpaired private key.
func (s *Store) writePair(pair KeyPair, m Material) error {
	prev, err := os.ReadFile(pair.PrivatePath)
	if err != nil && !os.IsNotExist(err) {
		return writeErr(pair.PrivatePath, err)
	}

	privTmp, err := stage(pair.PrivatePath, m.Private, 0o600)
	if err != nil {
		return err
	}
	pubTmp, err := stage(pair.PublicPath, m.Public, 0o644)
	if err != nil {
		os.Remove(privTmp)
		return err
	}

	if err := s.rename(privTmp, pair.PrivatePath); err != nil {
		os.Remove(privTmp)
		os.Remove(pubTmp)
		return writeErr(pair.PrivatePath, err)
	}
	if err := s.rename(pubTmp, pair.PublicPath); err != nil {
		os.Remove(pubTmp)
		s.rollbackPrivate(pair.PrivatePath, prev)
		return writeErr(pair.PublicPath, err)
	}
	return nil
}

// rollbackPrivate restores prev at path, or removes path when prev is nil.
func (s *Store) rollbackPrivate(path string, prev []byte) {
	if prev == nil {
		os.Remove(path)
		return
	}
	if err := s.writeAtomic(path, prev, 0o600); err != nil {
		s.log.Warn("couldn't restore previous private key %s: %v", path, err)
	}
}

// writeAtomic replaces a single file.
func (s *Store) writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := stage(path, data, perm)
	if err != nil {
		return err
	}
	if err := s.rename(tmp, path); err != nil {
		os.Remove(tmp)
		return writeErr(path, err)
	}
	return nil
}

// stage writes data to a synced temp file in path's directory.
func stage(path string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", writeErr(path, err)
	}
	name := f.Name()

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(name)
		return "", writeErr(path, err)
	}

	if err := f.Chmod(perm); err != nil {
		return fail(err)
	}
	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", writeErr(path, err)
	}
	return name, nil
}

func writeErr(path string, err error) error {
	return errors.WrapWithCode(err, errors.ErrGeneration,
		fmt.Sprintf("Failed to write %s", path),
		"Check disk space and permissions on the key directory")
}
