// Package entrystream feeds performance entry batches written as JSON lines
// to a file or FIFO into a perfmon Dispatcher.
package entrystream

import (
	"context"
	"strings"
	"syscall"

	"github.com/containerd/fifo"
	"github.com/nxadm/tail"
	log "github.com/sirupsen/logrus"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

type Stream struct {
	tail    *tail.Tail
	Batches chan *Batch
}

// Open follows path. When createFifo is set a named pipe is created at path
// first.
func Open(path string, createFifo bool) (*Stream, error) {
	if createFifo {
		f, err := fifo.OpenFifo(context.Background(), path, syscall.O_CREAT|syscall.O_RDONLY|syscall.O_NONBLOCK, 0655)
		if err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		ReOpen: true,
		Pipe:   true,
		Follow: true,
		Logger: tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	return &Stream{
		tail:    t,
		Batches: make(chan *Batch),
	}, nil
}

func (s *Stream) Stop() error {
	return s.tail.Stop()
}

// Start parses lines into Batches until the stream is stopped, then closes
// Batches. Blank lines are skipped.
func (s *Stream) Start() {
	defer close(s.Batches)
	for line := range s.tail.Lines {
		if line.Err != nil {
			s.Batches <- &Batch{Err: line.Err}
			continue
		}

		if strings.TrimSpace(line.Text) != "" {
			batch, err := Decode([]byte(line.Text))
			if err != nil {
				s.Batches <- &Batch{Err: err}
			} else {
				s.Batches <- batch
			}
		}
	}
}

// Feed applies every batch to dispatcher and env until Batches is closed and
// returns the number of batches applied.
func (s *Stream) Feed(dispatcher *perfmon.Dispatcher, env *perfmon.HostEnvironment) int {
	applied := 0
	for batch := range s.Batches {
		if batch.Err != nil {
			log.Warnf("error reading entry stream: %v", batch.Err)
			continue
		}

		n, err := Apply(batch, dispatcher, env)
		if err != nil {
			log.WithField("type", batch.Type).Warnf("skipping entry batch: %v", err)
			continue
		}
		log.WithFields(map[string]interface{}{
			"type":      batch.Type,
			"entries":   len(batch.Entries),
			"observers": n,
		}).Trace("applied entry batch")
		applied++
	}
	return applied
}
