// Package target answers register reads from interrupt context and hands
// completed register writes to a goroutine.
//
// Reads have to be answered while the master holds the bus, so the Handler
// runs inside HandleInterrupt. Writes are copied out of the controller and
// queued; the Writer and Events consumers run on the worker goroutine.
package target

import (
	"context"
	"sync/atomic"
	"time"

	"f0hal-go/i2cslave"
	"f0hal-go/internal/critical"
	"f0hal-go/x/conv"
)

// Handler supplies register contents for a read. It runs in interrupt
// context: it must not block or allocate. It returns the count of bytes
// placed in p.
type Handler interface {
	Read(reg uint8, p []byte) int
}

// Writer applies a completed register write on the worker goroutine.
type Writer interface {
	Write(reg uint8, data []byte)
}

// Write is a completed register write.
type Write struct {
	Register uint8
	Len      uint8
	Data     [i2cslave.BufferSize]byte
	TS       time.Time // stamped by the worker
}

// Bytes returns the written payload.
func (w *Write) Bytes() []byte { return w.Data[:w.Len] }

// Controller is the part of *i2cslave.Controller a Worker drives.
type Controller interface {
	Interrupt() (i2cslave.Event, bool)
	SetTransmitBuffer(p []byte) error
	ReceivedData() []byte
}

type Worker struct {
	ctl Controller
	h   Handler
	wr  Writer

	// Written by ISR; MUST NOT block the ISR:
	isrQ chan Write
	// Consumed by the application:
	outQ    chan Write
	stopped chan struct{}

	Verbose bool // log every write

	drops   uint32 // ISR queue full
	outDrop uint32 // Events consumer too slow
	reads   uint32
}

// New returns a worker serving ctl. wr may be nil when only Events is
// consumed.
func New(ctl Controller, h Handler, wr Writer, isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 8
	}
	if outBuf <= 0 {
		outBuf = 8
	}
	return &Worker{
		ctl:     ctl,
		h:       h,
		wr:      wr,
		isrQ:    make(chan Write, isrBuf),
		outQ:    make(chan Write, outBuf),
		stopped: make(chan struct{}),
	}
}

// HandleInterrupt is the I²C interrupt handler body.
func (w *Worker) HandleInterrupt() {
	s := critical.Enter()
	ev, ok := w.ctl.Interrupt()
	if ok {
		switch ev.Kind {
		case i2cslave.DataRequested:
			var buf [i2cslave.BufferSize]byte
			n := w.h.Read(ev.Register, buf[:])
			// Cannot fail: n fits and no byte has gone out yet.
			_ = w.ctl.SetTransmitBuffer(buf[:n])
			atomic.AddUint32(&w.reads, 1)
		case i2cslave.DataReceived:
			wr := Write{Register: ev.Register}
			wr.Len = uint8(copy(wr.Data[:], w.ctl.ReceivedData()))
			select {
			case w.isrQ <- wr:
			default:
				atomic.AddUint32(&w.drops, 1) // protect ISR path
			}
		}
	}
	critical.Exit(s)
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handle(ev)
			}
		}
	}()
}

func (w *Worker) handle(ev Write) {
	ev.TS = time.Now()
	if w.wr != nil {
		w.wr.Write(ev.Register, ev.Bytes())
	}
	if w.Verbose {
		var line [3*i2cslave.BufferSize + 16]byte
		b := append(line[:0], "reg "...)
		b = conv.AppendHex8(b, ev.Register)
		b = append(b, " <- "...)
		b = conv.AppendHex(b, ev.Bytes())
		println("[target]", string(b))
	}
	select {
	case w.outQ <- ev:
	default:
		atomic.AddUint32(&w.outDrop, 1) // drop to protect system if consumer is slow
	}
}

// Events delivers every applied write.
func (w *Worker) Events() <-chan Write { return w.outQ }

// Stopped is closed when the worker goroutine exits.
func (w *Worker) Stopped() <-chan struct{} { return w.stopped }

// ISRDrops counts writes lost because the worker fell behind.
func (w *Worker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }

// EventDrops counts writes applied but not delivered on Events.
func (w *Worker) EventDrops() uint32 { return atomic.LoadUint32(&w.outDrop) }

// Reads counts register reads served.
func (w *Worker) Reads() uint32 { return atomic.LoadUint32(&w.reads) }
