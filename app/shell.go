package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"pados/kernel"
	"pados/monitor"
)

const (
	shellPriority = 3
	maxLine       = 128
	prompt        = "pad> "
)

// shell is a line-editing command interpreter on the console UART.
type shell struct {
	s    *System
	ctx  *kernel.Context
	line []byte
}

func (s *System) shell(ctx *kernel.Context) {
	sh := &shell{s: s, ctx: ctx}
	sh.println(s.banner())
	sh.print(prompt)
	buf := make([]byte, 32)
	for {
		n, res := s.console.Read(ctx, buf)
		switch res {
		case kernel.Success:
		case kernel.ErrInterrupted:
			continue
		default:
			return
		}
		for _, c := range buf[:n] {
			sh.input(c)
		}
	}
}

func (sh *shell) print(s string) {
	sh.s.console.Write(sh.ctx, []byte(s))
}

func (sh *shell) println(s string) {
	sh.print(s + "\r\n")
}

func (sh *shell) input(c byte) {
	switch {
	case c == '\r' || c == '\n':
		sh.print("\r\n")
		line := string(sh.line)
		sh.line = sh.line[:0]
		sh.run(line)
		sh.print(prompt)
	case c == 0x7F || c == 0x08:
		if len(sh.line) > 0 {
			sh.line = sh.line[:len(sh.line)-1]
			sh.print("\b \b")
		}
	case c == 0x03:
		sh.line = sh.line[:0]
		sh.print("^C\r\n" + prompt)
	case c >= 0x20 && c < 0x7F:
		if len(sh.line) < maxLine {
			sh.line = append(sh.line, c)
			sh.print(string(c))
		}
	}
}

type command struct {
	name string
	help string
	run  func(sh *shell, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"help", "list commands", (*shell).help},
		{"ps", "show threads", (*shell).ps},
		{"kill", "kill [-SIG] TID: signal a thread", (*shell).kill},
		{"uptime", "show kernel time", (*shell).uptime},
		{"irq", "show interrupt lines", (*shell).irq},
		{"deadlocks", "look for wait-for cycles", (*shell).deadlocks},
		{"demo", "show demo counters", (*shell).demoStats},
		{"halt", "halt the kernel", (*shell).halt},
	}
}

func (sh *shell) run(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		sh.println("parse: " + err.Error())
		return
	}
	if len(args) == 0 {
		return
	}
	for _, c := range commands {
		if c.name == args[0] {
			if err := c.run(sh, args[1:]); err != nil {
				sh.println(c.name + ": " + err.Error())
			}
			return
		}
	}
	sh.println("unknown command: " + args[0])
}

func (sh *shell) help([]string) error {
	for _, c := range commands {
		sh.println(fmt.Sprintf("%-10s %s", c.name, c.help))
	}
	return nil
}

func (sh *shell) ps([]string) error {
	for _, l := range monitor.Lines(sh.s.k.Snapshot(), "", 80, 256) {
		sh.println(l)
	}
	return nil
}

func (sh *shell) kill(args []string) error {
	sig := kernel.SIGTERM
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		var ok bool
		if sig, ok = kernel.ParseSignal(args[0][1:]); !ok {
			return fmt.Errorf("bad signal %q", args[0][1:])
		}
		args = args[1:]
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: kill [-SIG] TID")
	}
	tid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad thread id %q", args[0])
	}
	return sh.ctx.ThreadKill(kernel.ThreadID(tid), sig).Err()
}

func (sh *shell) uptime([]string) error {
	sh.println(fmt.Sprintf("up %v, %d ticks", sh.s.k.Now(), sh.s.k.Ticks()))
	return nil
}

func (sh *shell) irq([]string) error {
	d := sh.s.k.IRQ()
	for line := 0; line < d.Lines(); line++ {
		st, _ := d.Stats(line)
		if len(st.Handlers) == 0 && st.Count == 0 {
			continue
		}
		sh.println(fmt.Sprintf("%3d %-8s count=%d unhandled=%d enabled=%t",
			st.Line, strings.Join(st.Handlers, ","), st.Count, st.Unhandled, st.Enabled))
	}
	return nil
}

func (sh *shell) deadlocks([]string) error {
	cycles := sh.s.k.DetectDeadlocks()
	orphans := sh.s.k.OrphanedLocks()
	if len(cycles) == 0 && len(orphans) == 0 {
		sh.println("none")
	}
	for _, c := range cycles {
		sh.println(c.String())
	}
	for _, o := range orphans {
		sh.println(fmt.Sprintf("orphaned %s: owner tid %d gone, %d waiting", o.Name, o.Owner, o.Waiters))
	}
	return nil
}

func (sh *shell) demoStats([]string) error {
	if sh.s.demo == nil {
		return fmt.Errorf("demo not running")
	}
	sh.println(sh.s.demo.String())
	return nil
}

func (sh *shell) halt([]string) error {
	sh.println("halting")
	sh.s.k.Halt()
	return nil
}
