package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmcleod/certflux/csr"
)

// ErrNoCSRFiles is returned when a scan directory holds no CSR files.
var ErrNoCSRFiles = errors.New("no CSR files found")

// CSRFile is a signing request discovered on disk.
type CSRFile struct {
	Path string
	Name string
}

// FindCSRFiles scans dir (one level deep) for *.csr and *.csr.pem
// files, sorted by name.
func FindCSRFiles(dir string) ([]CSRFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var files []CSRFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var stem string
		switch {
		case strings.HasSuffix(name, ".csr.pem"):
			stem = strings.TrimSuffix(name, ".csr.pem")
		case strings.HasSuffix(name, ".csr"):
			stem = strings.TrimSuffix(name, ".csr")
		default:
			continue
		}
		files = append(files, CSRFile{Path: filepath.Join(dir, name), Name: stem})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoCSRFiles)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FilterCSRFiles keeps files whose name contains pattern.
func FilterCSRFiles(files []CSRFile, pattern string) []CSRFile {
	if pattern == "" {
		return files
	}
	var out []CSRFile
	for _, f := range files {
		if strings.Contains(f.Name, pattern) {
			out = append(out, f)
		}
	}
	return out
}

// JobsFromCSRFiles loads each discovered CSR and builds signing jobs
// for it. Files that fail to parse become failed jobs at run time
// rather than aborting the scan, so one bad CSR cannot block a batch.
func JobsFromCSRFiles(files []CSRFile) []Job {
	jobs := make([]Job, len(files))
	for i, f := range files {
		req, err := csr.LoadPEM(f.Path)
		if err != nil {
			// Leave Request nil but mark the job so Run reports the
			// parse failure under this identifier.
			jobs[i] = Job{Name: f.Name, loadErr: err}
			continue
		}
		jobs[i] = Job{Name: f.Name, Request: req}
	}
	return jobs
}
