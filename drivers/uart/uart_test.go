package uart

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"pados/kernel"
)

func newKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	k := kernel.New(kernel.DefaultConfig())
	t.Cleanup(k.Halt)
	return k
}

func waitIdle(t *testing.T, k *kernel.Kernel) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !k.Idle() {
		if time.Now().After(deadline) {
			t.Fatalf("kernel never went idle: %+v", k.Snapshot())
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func openPort(t *testing.T, k *kernel.Kernel, fifo int, tx io.Writer) *Port {
	t.Helper()
	p, err := Open(k, Config{Name: "usart2", IRQ: 38, FIFO: fifo}, tx)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return p
}

func TestReadBlocksUntilReceive(t *testing.T) {
	k := newKernel(t)
	p := openPort(t, k, 16, nil)
	var (
		got []byte
		res kernel.Result
	)
	th, _ := k.Spawn(kernel.ThreadSpec{Name: "reader", Priority: 1, Entry: func(ctx *kernel.Context) {
		buf := make([]byte, 8)
		var n int
		n, res = p.Read(ctx, buf)
		got = buf[:n]
	}})
	k.Start()
	waitIdle(t, k)
	if st := th.State(); st != kernel.ThreadBlocked {
		t.Fatalf("reader State() = %v, want %v", st, kernel.ThreadBlocked)
	}
	if n := p.Receive([]byte("hi")); n != 2 {
		t.Fatalf("Receive() = %d, want 2", n)
	}
	waitIdle(t, k)
	if res != kernel.Success || string(got) != "hi" {
		t.Fatalf("Read() = %q, %v; want %q, %v", got, res, "hi", kernel.Success)
	}
	st := p.Stats()
	if st.RxBytes != 2 || st.Buffered != 0 {
		t.Fatalf("Stats() = %+v", st)
	}
}

func TestReceiveOverrun(t *testing.T) {
	k := newKernel(t)
	p := openPort(t, k, 4, nil)
	if n := p.Receive([]byte("abcdef")); n != 4 {
		t.Fatalf("Receive() = %d, want 4", n)
	}
	if st := p.Stats(); st.Overruns != 2 || st.Buffered != 4 {
		t.Fatalf("Stats() = %+v, want 2 overruns, 4 buffered", st)
	}
	if !p.Ready(kernel.WaitRead) {
		t.Fatal("port not readable after Receive")
	}
}

func TestReadTimeout(t *testing.T) {
	k := newKernel(t)
	p := openPort(t, k, 16, nil)
	var res kernel.Result
	th, _ := k.Spawn(kernel.ThreadSpec{Name: "reader", Priority: 1, Entry: func(ctx *kernel.Context) {
		_, res = p.ReadTimeout(ctx, make([]byte, 1), 2*time.Millisecond)
	}})
	k.Start()
	for i := 0; i < 5 && th.State() != kernel.ThreadZombie; i++ {
		waitIdle(t, k)
		k.Tick()
	}
	waitIdle(t, k)
	if res != kernel.ErrTimeout {
		t.Fatalf("ReadTimeout() = %v, want %v", res, kernel.ErrTimeout)
	}
}

func TestWrite(t *testing.T) {
	k := newKernel(t)
	var out bytes.Buffer
	p := openPort(t, k, 16, &out)
	silent := openPortNamed(t, k, "usart3", 39)
	var errs []error
	k.Spawn(kernel.ThreadSpec{Name: "writer", Priority: 1, Entry: func(ctx *kernel.Context) {
		_, err := p.Write(ctx, []byte("ok\r\n"))
		errs = append(errs, err)
		_, err = silent.Write(ctx, []byte("x"))
		errs = append(errs, err)
	}})
	k.Start()
	waitIdle(t, k)
	if errs[0] != nil || out.String() != "ok\r\n" {
		t.Fatalf("Write() = %v, output %q", errs[0], out.String())
	}
	if !errors.Is(errs[1], ErrNoTransmitter) {
		t.Fatalf("Write() without transmitter = %v, want %v", errs[1], ErrNoTransmitter)
	}
	if p.Stats().TxBytes != 4 || !p.Ready(kernel.WaitWrite) || silent.Ready(kernel.WaitWrite) {
		t.Fatalf("Stats() = %+v", p.Stats())
	}
}

func openPortNamed(t *testing.T, k *kernel.Kernel, name string, irq int) *Port {
	t.Helper()
	p, err := Open(k, Config{Name: name, IRQ: irq}, nil)
	if err != nil {
		t.Fatalf("Open(%s) = %v", name, err)
	}
	return p
}

func TestCloseFailsReaders(t *testing.T) {
	k := newKernel(t)
	p := openPort(t, k, 16, nil)
	var res kernel.Result
	k.Spawn(kernel.ThreadSpec{Name: "reader", Priority: 1, Entry: func(ctx *kernel.Context) {
		_, res = p.Read(ctx, make([]byte, 1))
	}})
	k.Start()
	waitIdle(t, k)
	p.Close(k.InterruptContext())
	waitIdle(t, k)
	if res != kernel.ErrDeleted {
		t.Fatalf("Read() after Close = %v, want %v", res, kernel.ErrDeleted)
	}
	if st, _ := k.IRQ().Stats(38); len(st.Handlers) != 0 {
		t.Fatalf("handlers after Close = %v", st.Handlers)
	}
}

func TestSpuriousInterrupt(t *testing.T) {
	k := newKernel(t)
	p := openPort(t, k, 16, nil)
	k.IRQ().Raise(38)
	if st := p.Stats(); st.Spurious != 1 {
		t.Fatalf("Spurious = %d, want 1", st.Spurious)
	}
}

func TestOpenBadLine(t *testing.T) {
	k := newKernel(t)
	_, err := Open(k, Config{Name: "bad", IRQ: 1000}, nil)
	if !errors.Is(err, kernel.ErrInvalidArg) {
		t.Fatalf("Open(irq 1000) = %v, want %v", err, kernel.ErrInvalidArg)
	}
}
