package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type failingOps struct {
	osImpl
	err error
}

func (f *failingOps) Stat(string) (os.FileInfo, error) { return nil, f.err }
func (f *failingOps) Remove(string) error             { return f.err }

type StorageTestSuite struct {
	suite.Suite
	dir string
	s   *Storage
}

func (s *StorageTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.s = &Storage{os: &osImpl{}}
}

func (s *StorageTestSuite) TestEnsureParentDirectoryExists() {
	name := filepath.Join(s.dir, "a", "b", "data.db")
	s.NoError(s.s.EnsureParentDirectoryExists(name, 0o755))

	info, err := os.Stat(filepath.Dir(name))
	s.NoError(err)
	s.True(info.IsDir())
}

func (s *StorageTestSuite) TestExists() {
	name := filepath.Join(s.dir, "file")
	ok, err := s.s.Exists(name)
	s.NoError(err)
	s.False(ok)

	s.NoError(os.WriteFile(name, []byte("x"), 0o644))
	ok, err = s.s.Exists(name)
	s.NoError(err)
	s.True(ok)

	s.NoError(s.s.Remove(name))
	s.NoError(s.s.Remove(name))
	ok, err = s.s.Exists(name)
	s.NoError(err)
	s.False(ok)
}

func (s *StorageTestSuite) TestErrors() {
	boom := errors.New("boom")
	st := &Storage{os: &failingOps{err: boom}}
	_, err := st.Exists("x")
	s.ErrorIs(err, boom)
	s.ErrorIs(st.Remove("x"), boom)
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}
