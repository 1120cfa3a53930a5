// Package printerservice implements the "dumb" shared printer: a
// stateless external collaborator that accepts any well-formed
// PrintRequest, simulates a print, and confirms. It never participates
// in mutual exclusion and never advances its own Lamport clock; it
// just echoes the request's timestamp back.
package printerservice

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ricart-agrawala/printmutex/internal/wire"
)

// DefaultMinDelay and DefaultMaxDelay bound the simulated print time,
// matching original_source's 2-3 second range.
const (
	DefaultMinDelay = 2 * time.Second
	DefaultMaxDelay = 3 * time.Second
)

// Printer implements wire.PrinterServer.
type Printer struct {
	MinDelay, MaxDelay time.Duration

	log   *logrus.Entry
	count int64
}

// New constructs a Printer using the default simulated-delay range.
// log may be nil.
func New(log *logrus.Entry) *Printer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Printer{
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
		log:      log,
	}
}

// JobCount returns the number of print jobs completed so far.
func (p *Printer) JobCount() int64 {
	return atomic.LoadInt64(&p.count)
}

// SendToPrinter implements wire.PrinterServer.
func (p *Printer) SendToPrinter(ctx context.Context, req *wire.PrintRequest) (*wire.PrintResponse, error) {
	jobNum := atomic.AddInt64(&p.count, 1)

	p.log.WithFields(logrus.Fields{
		"client_id":      req.ClientID,
		"timestamp":      req.LamportTimestamp,
		"request_number": req.RequestNumber,
		"job_number":     jobNum,
	}).Infof("printing: %s", req.MessageContent)

	delay := p.simulatedDelay()
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.log.WithField("job_number", jobNum).Info("print job complete")

	return &wire.PrintResponse{
		Success:             true,
		ConfirmationMessage: fmt.Sprintf("job #%d completed", jobNum),
		LamportTimestamp:    req.LamportTimestamp,
	}, nil
}

func (p *Printer) simulatedDelay() time.Duration {
	minDelay, maxDelay := p.MinDelay, p.MaxDelay
	if maxDelay <= minDelay {
		return minDelay
	}
	span := maxDelay - minDelay
	return minDelay + time.Duration(rand.Int63n(int64(span)))
}
