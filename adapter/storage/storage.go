// Package storage contains the default [domain.Storage] implementation used
// around the data file of a bucket.
package storage

import (
	"os"
	"path/filepath"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

var osSpecificEnsureDir = func(o osOps, dir string, mode os.FileMode) error {
	return o.MkdirAll(dir, mode)
}

// Storage implements domain.Storage.
type Storage struct {
	os osOps
}

// NewStorage returns a new implementation of domain.Storage.
func NewStorage() domain.Storage {
	return &Storage{os: &osImpl{}}
}

// EnsureParentDirectoryExists implements domain.Storage.
func (d *Storage) EnsureParentDirectoryExists(filename string, mode os.FileMode) error {
	parsedDir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return err
	}
	return osSpecificEnsureDir(d.os, parsedDir, mode)
}

// Exists implements domain.Storage.
func (d *Storage) Exists(filename string) (bool, error) {
	_, err := d.os.Stat(filename)
	if err != nil {
		if d.os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove implements domain.Storage. Removing a missing file is not an error.
func (d *Storage) Remove(filename string) error {
	if err := d.os.Remove(filename); err != nil && !d.os.IsNotExist(err) {
		return err
	}
	return nil
}
