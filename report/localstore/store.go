// Package localstore archives run reports on the local filesystem with
// two-phase writes: content lands in an ingesting area first and only a
// commit publishes it under its ref.
package localstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrAlreadyExists returns the content exists.
var ErrAlreadyExists = errors.New("already exists")

// Store is a filesystem-like key/value storage.
//
// Each key/value has committed and ingesting status. When OpenWriter returns
// ingestion transaction, the Store opens rootDir/ingesting/$random file to
// receive value data. Once all the data is written, the Commit(ref) moves the
// file into rootDir/committed/ref.
type Store struct {
	sync.Mutex

	ingestingDir string
	committedDir string
}

// NewStore returns new instance of Store.
func NewStore(rootDir string) (*Store, error) {
	ingestingDir := filepath.Join(rootDir, "ingesting")
	committedDir := filepath.Join(rootDir, "committed")
	for _, dir := range []string{ingestingDir, committedDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to ensure dir %s: %w", dir, err)
		}
	}

	return &Store{
		ingestingDir: ingestingDir,
		committedDir: committedDir,
	}, nil
}

// OpenWriter is to initiate a writing operation, ingestion transaction. A
// single ingestion transaction is to open temporary file and allow caller to
// write data into the temporary file. Once all the data is written, the caller
// should call Commit to complete ingestion transaction.
func (s *Store) OpenWriter() (Writer, error) {
	f, err := os.CreateTemp(s.ingestingDir, "ingest*")
	if err != nil {
		return nil, fmt.Errorf("failed to create ingesting file: %w", err)
	}

	return &writer{
		s:    s,
		name: f.Name(),
		f:    f,
	}, nil
}

// OpenReader is to open committed content named by ref.
func (s *Store) OpenReader(ref string) (Reader, error) {
	target := filepath.Join(s.committedDir, ref)

	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &sizeReadCloser{
		File: f,
		size: info.Size(),
	}, nil
}

// List returns committed refs in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.committedDir)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		refs = append(refs, entry.Name())
	}
	sort.Strings(refs)
	return refs, nil
}

// Delete is to delete committed content named by ref.
func (s *Store) Delete(ref string) error {
	s.Lock()
	defer s.Unlock()

	return os.RemoveAll(filepath.Join(s.committedDir, ref))
}

// Writer handles writing of content into local store
type Writer interface {
	// Close closes the writer.
	//
	// If the writer has not been committed, this allows aborting.
	// Calling Close on a closed writer will not error.
	io.WriteCloser

	// Commit commits data as file named by ref.
	//
	// Commit always close Writer. If ref already exists, it will return
	// error.
	Commit(ref string) error
}

type Reader interface {
	io.ReaderAt
	io.Closer
	Size() int64
}
