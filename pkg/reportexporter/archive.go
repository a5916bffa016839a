package reportexporter

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
)

// writeArchive streams dir as tar.gz into dst and returns the number of
// compressed bytes written.
func writeArchive(ctx context.Context, dir string, dst io.Writer, total datasize.ByteSize, opts *UploadOptions) (int64, error) {
	pr, pw := io.Pipe()
	go func() {
		if err := compressTarGz(dir, pw); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	defer pr.Close()

	var written atomic.Int64
	progressCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reportProgress(progressCtx, opts.ReportPeriod, &written, total)

	bufSize := opts.BufferSize.Bytes()
	if bufSize == 0 {
		bufSize = 32 * 1024
	}
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(dst, newReaderWithBytesCounter(pr, &written), buf); err != nil {
		return written.Load(), fmt.Errorf("failed to write archive: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"source":     dir,
		"dir-size":   total.HumanReadable(),
		"compressed": datasize.ByteSize(written.Load()).HumanReadable(),
	}).Debug("archive written")
	return written.Load(), nil
}
