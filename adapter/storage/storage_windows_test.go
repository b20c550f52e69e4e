//go:build windows

package storage

func (s *StorageTestSuite) TestVolumeRoot() {
	s.True(isVolumeRoot(`C:\`))
	s.False(isVolumeRoot(`C:\data`))
	s.NoError(s.s.EnsureParentDirectoryExists(`C:\bucket.db`, 0o755))
}
