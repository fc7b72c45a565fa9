// Package uart is an interrupt-driven serial port driver. The device side
// queues received bytes and raises the RX line; the handler marks the port
// readable and wakes blocked readers.
package uart

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"pados/kernel"
)

const defaultFIFO = 64

var ErrNoTransmitter = errors.New("no transmitter")

type Config struct {
	Name string
	IRQ  int
	FIFO int
}

// Stats counts traffic since Open.
type Stats struct {
	RxBytes  uint64
	TxBytes  uint64
	Overruns uint64
	Spurious uint64
	Buffered int
	IRQ      int
}

// Port is one UART. Reads and writes must come from kernel threads.
type Port struct {
	kernel.IONode

	k     *kernel.Kernel
	cfg   Config
	rx    fifo
	tx    io.Writer
	rlock *kernel.Mutex
	wlock *kernel.Mutex
	irq   kernel.IRQHandle

	rxBytes  atomic.Uint64
	txBytes  atomic.Uint64
	overruns atomic.Uint64
	spurious atomic.Uint64
}

// Open registers the RX interrupt handler and returns the port. Transmitted
// bytes go to tx.
func Open(k *kernel.Kernel, cfg Config, tx io.Writer) (*Port, error) {
	if cfg.Name == "" {
		cfg.Name = "uart"
	}
	if cfg.FIFO <= 0 {
		cfg.FIFO = defaultFIFO
	}
	p := &Port{
		k:     k,
		cfg:   cfg,
		tx:    tx,
		rlock: k.NewMutex(cfg.Name+".rx", kernel.MutexRaiseError),
		wlock: k.NewMutex(cfg.Name+".tx", kernel.MutexRaiseError),
	}
	p.rx.init(cfg.FIFO)
	p.IONode.Init(k, cfg.Name)
	h, res := k.IRQ().Register(cfg.IRQ, cfg.Name+"-rx", p.rxInterrupt, nil)
	if res != kernel.Success {
		return nil, fmt.Errorf("uart %s: register irq %d: %w", cfg.Name, cfg.IRQ, res.Err())
	}
	p.irq = h
	p.SetWritable(k.InterruptContext(), tx != nil)
	return p, nil
}

func (p *Port) Name() string { return p.cfg.Name }

// Receive is the device side of the wire: it queues b and raises the RX
// interrupt. Only one goroutine may feed a port. Bytes beyond the FIFO
// capacity are counted as overruns and lost. It returns how many bytes were
// queued.
func (p *Port) Receive(b []byte) int {
	n := 0
	for _, c := range b {
		if !p.rx.push(c) {
			p.overruns.Add(uint64(len(b) - n))
			break
		}
		n++
	}
	if n > 0 {
		p.k.IRQ().Raise(p.cfg.IRQ)
	}
	return n
}

func (p *Port) rxInterrupt(ctx *kernel.Context, _ int, _ any) kernel.IRQResult {
	if p.rx.len() == 0 {
		p.spurious.Add(1)
		return kernel.IRQNotHandled
	}
	p.SetReadable(ctx, true)
	return kernel.IRQHandled
}

// Read blocks until at least one byte is available and returns what is
// buffered, up to len(buf).
func (p *Port) Read(ctx *kernel.Context, buf []byte) (int, kernel.Result) {
	return p.ReadDeadline(ctx, buf, kernel.Forever)
}

func (p *Port) ReadTimeout(ctx *kernel.Context, buf []byte, d time.Duration) (int, kernel.Result) {
	deadline := kernel.Forever
	if now := ctx.Now(); d < kernel.Forever-now {
		deadline = now + d
	}
	return p.ReadDeadline(ctx, buf, deadline)
}

func (p *Port) ReadDeadline(ctx *kernel.Context, buf []byte, deadline time.Duration) (int, kernel.Result) {
	if len(buf) == 0 {
		return 0, kernel.Success
	}
	if res := p.rlock.LockDeadline(ctx, deadline); res != kernel.Success {
		return 0, res
	}
	for {
		if n := p.rx.read(buf); n > 0 {
			p.rxBytes.Add(uint64(n))
			p.rlock.Unlock(ctx)
			return n, kernel.Success
		}
		// Clear before the final check: a byte pushed after the check raises
		// the line and sets the flag again.
		p.SetReadable(ctx, false)
		if p.rx.len() > 0 {
			continue
		}
		if res := p.WaitDeadline(ctx, kernel.WaitRead, deadline); res != kernel.Success {
			p.rlock.Unlock(ctx)
			return 0, res
		}
	}
}

// Write transmits b. Concurrent writers do not interleave. Lock failures
// are returned as kernel.Result values.
func (p *Port) Write(ctx *kernel.Context, b []byte) (int, error) {
	if p.tx == nil {
		return 0, fmt.Errorf("uart %s: %w", p.cfg.Name, ErrNoTransmitter)
	}
	if res := p.wlock.Lock(ctx); res != kernel.Success {
		return 0, res
	}
	n, err := p.tx.Write(b)
	p.txBytes.Add(uint64(n))
	p.wlock.Unlock(ctx)
	if err != nil {
		return n, fmt.Errorf("uart %s: write: %w", p.cfg.Name, err)
	}
	return n, nil
}

// Close unregisters the interrupt handler and fails every blocked reader
// with ErrDeleted.
func (p *Port) Close(ctx *kernel.Context) {
	p.k.IRQ().Unregister(p.irq)
	p.Destroy(ctx)
}

func (p *Port) Stats() Stats {
	return Stats{
		RxBytes:  p.rxBytes.Load(),
		TxBytes:  p.txBytes.Load(),
		Overruns: p.overruns.Load(),
		Spurious: p.spurious.Load(),
		Buffered: p.rx.len(),
		IRQ:      p.cfg.IRQ,
	}
}
