// Worker pool that reads each input file's MRT captures, applies the
// configured filters, formats the passing ones and writes them to the
// dump output. Mirrors the teacher's dumpFile/worker/MultiWriteFile
// shape in cmd/gobgpdump/gobgpdump.go, generalized onto
// fileutil.Capture instead of *mrt.MrtBufferStack.
package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CSUNetSec/bgpcore/filter"
	"github.com/CSUNetSec/bgpcore/fileutil"
	"github.com/CSUNetSec/bgpcore/mrt"
)

// fileSource hands out input file paths one at a time to however many
// worker goroutines are running; Next is safe for concurrent use.
type fileSource struct {
	mux   sync.Mutex
	paths []string
	pos   int
}

func newFileSource(paths []string) *fileSource {
	return &fileSource{paths: paths}
}

// Next returns the next path, or io.EOF once every path has been
// handed out.
func (fs *fileSource) Next() (string, error) {
	fs.mux.Lock()
	defer fs.mux.Unlock()
	if fs.pos >= len(fs.paths) {
		return "", io.EOF
	}
	p := fs.paths[fs.pos]
	fs.pos++
	return p, nil
}

// MultiWriteFile is a mutex-guarded *os.File, since dump/log/stat
// output is shared across worker goroutines. A nil underlying file
// discards everything written to it, so a CLI flag of "" can mean
// "don't bother opening this output".
type MultiWriteFile struct {
	base *os.File
	mx   sync.Mutex
}

func NewMultiWriteFile(fd *os.File) *MultiWriteFile {
	return &MultiWriteFile{base: fd}
}

func (mwf *MultiWriteFile) WriteString(s string) (int, error) {
	mwf.mx.Lock()
	defer mwf.mx.Unlock()
	if mwf.base == nil {
		return 0, nil
	}
	return mwf.base.WriteString(s)
}

func (mwf *MultiWriteFile) Close() error {
	if mwf.base == nil {
		return nil
	}
	return mwf.base.Close()
}

// runConfig bundles everything a worker needs to process files: the
// shared input queue, the filter/format pipeline, the rebuild policy
// for RIB dump entries, and the three shared output sinks.
type runConfig struct {
	workers int
	source  *fileSource
	fmtr    Formatter
	filters []filter.Filter
	rebuild mrt.RebuildFlags
	dump    *MultiWriteFile
	log     *MultiWriteFile
	stat    *MultiWriteFile
	logger  *zap.SugaredLogger
}

// run launches rc.workers goroutines pulling from rc.source until it's
// drained, then summarizes the formatter.
func run(rc *runConfig) {
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < rc.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(rc)
		}()
	}
	wg.Wait()
	rc.fmtr.summarize()
	rc.stat.WriteString(fmt.Sprintf("total time: %s\n", time.Since(start)))
}

func worker(rc *runConfig) {
	for {
		name, err := rc.source.Next()
		if err != nil {
			if err != io.EOF {
				rc.logger.Errorw("file source error", "error", err)
			}
			return
		}
		dumpFile(name, rc)
	}
}

// dumpFile scans one MRT file end to end, writing every capture that
// passes rc.filters through rc.fmtr to rc.dump, and a one-line summary
// to rc.stat.
func dumpFile(name string, rc *runConfig) {
	r, err := fileutil.NewMrtFileReader(name, rc.filters, rc.rebuild)
	if err != nil {
		rc.log.WriteString(fmt.Sprintf("opening %s: %v\n", name, err))
		rc.logger.Errorw("failed to open input file", "file", name, "error", err)
		return
	}
	defer r.Close()

	start := time.Now()
	entryCt, passedCt := 0, 0
	for r.Scan() {
		entryCt++
		c, err := r.GetCapture()
		if err != nil {
			rc.log.WriteString(fmt.Sprintf("%s [%d]: %v\n", name, entryCt, err))
			continue
		}
		passedCt++
		out, err := rc.fmtr.format(c)
		if err != nil {
			rc.log.WriteString(fmt.Sprintf("%s [%d]: format: %v\n", name, entryCt, err))
			continue
		}
		if out != "" {
			rc.dump.WriteString(out)
		}
	}
	if err := r.Err(); err != nil {
		rc.log.WriteString(fmt.Sprintf("%s: scanner error: %v\n", name, err))
		rc.logger.Errorw("scanner error", "file", name, "error", err)
		return
	}

	dt := time.Since(start)
	rc.stat.WriteString(fmt.Sprintf("%s: %d entries, %d passed filters, %v\n", name, entryCt, passedCt, dt))
	rc.logger.Infow("dumped file", "file", name, "entries", entryCt, "passed", passedCt, "elapsed", dt)
}
