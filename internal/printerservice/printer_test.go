package printerservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricart-agrawala/printmutex/internal/printerservice"
	"github.com/ricart-agrawala/printmutex/internal/wire"
)

func TestSendToPrinterEchoesTimestampAndConfirms(t *testing.T) {
	p := printerservice.New(nil)
	p.MinDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond

	resp, err := p.SendToPrinter(context.Background(), &wire.PrintRequest{
		ClientID:         1,
		MessageContent:   "hello",
		LamportTimestamp: 42,
		RequestNumber:    1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 42, resp.LamportTimestamp)
	assert.NotEmpty(t, resp.ConfirmationMessage)
	assert.EqualValues(t, 1, p.JobCount())
}

func TestSendToPrinterCountsJobs(t *testing.T) {
	p := printerservice.New(nil)
	p.MinDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond

	for i := 0; i < 3; i++ {
		_, err := p.SendToPrinter(context.Background(), &wire.PrintRequest{ClientID: 1, MessageContent: "x"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, p.JobCount())
}

func TestSendToPrinterRespectsContextCancellation(t *testing.T) {
	p := printerservice.New(nil)
	p.MinDelay = time.Second
	p.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.SendToPrinter(ctx, &wire.PrintRequest{ClientID: 1, MessageContent: "x"})
	require.Error(t, err)
}
