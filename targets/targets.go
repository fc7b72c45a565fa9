// Package targets holds the board profiles padsim can boot.
package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"pados/kernel"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var ErrTargetNotFound = errors.New("target not found")

// All returns every embedded board profile.
func All() Targets {
	return targets
}

type Targets []TargetInfo

type TargetInfo struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	Aliases            []string `yaml:"aliases"`
	Cores              int      `yaml:"cores"`
	Priorities         int      `yaml:"priorities"`
	QuantumTicks       int      `yaml:"quantumTicks"`
	TickHz             int      `yaml:"tickHz"`
	IRQLines           int      `yaml:"irqLines"`
	UserMemBase        uint32   `yaml:"userMemBase"`
	UserMemSize        int      `yaml:"userMemSize"`
	DeadlockCheckTicks int      `yaml:"deadlockCheckTicks"`
	UART               UARTInfo `yaml:"uart"`
	Display            Size     `yaml:"display"`
}

type UARTInfo struct {
	Name string `yaml:"name"`
	IRQ  int    `yaml:"irq"`
	FIFO int    `yaml:"fifo"`
}

type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TickPeriod returns the SysTick period.
func (t TargetInfo) TickPeriod() time.Duration {
	if t.TickHz <= 0 {
		return time.Millisecond
	}
	return time.Second / time.Duration(t.TickHz)
}

// KernelConfig returns the kernel configuration for the board.
func (t TargetInfo) KernelConfig() kernel.Config {
	return kernel.Config{
		Cores:              t.Cores,
		NumPriorities:      t.Priorities,
		QuantumTicks:       t.QuantumTicks,
		TickPeriod:         t.TickPeriod(),
		IRQLines:           t.IRQLines,
		UserMemBase:        kernel.UserAddr(t.UserMemBase),
		UserMemSize:        t.UserMemSize,
		DeadlockCheckTicks: t.DeadlockCheckTicks,
	}
}

func (t TargetInfo) validate() error {
	switch {
	case t.Name == "":
		return errors.New("missing name")
	case t.Cores <= 0 || t.Cores > kernel.MaxCores:
		return fmt.Errorf("%s: cores %d out of range 1..%d", t.Name, t.Cores, kernel.MaxCores)
	case t.Priorities <= 0 || t.Priorities > kernel.MaxPriorities:
		return fmt.Errorf("%s: priorities %d out of range 1..%d", t.Name, t.Priorities, kernel.MaxPriorities)
	case t.UART.IRQ < 0 || t.UART.IRQ >= t.IRQLines:
		return fmt.Errorf("%s: uart irq %d outside %d lines", t.Name, t.UART.IRQ, t.IRQLines)
	}
	return nil
}

// Find looks a board up by name or alias, ignoring case.
func (t Targets) Find(name string) (TargetInfo, error) {
	name = strings.ToLower(name)
	i := slices.IndexFunc(t, func(ti TargetInfo) bool {
		return ti.Name == name || slices.Contains(ti.Aliases, name)
	})
	if i < 0 {
		return TargetInfo{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}
	return t[i], nil
}

// Names returns the board names in sorted order.
func (t Targets) Names() []string {
	names := make([]string, len(t))
	for i, ti := range t {
		names[i] = ti.Name
	}
	slices.Sort(names)
	return names
}

// Parse decodes a targets document.
func Parse(raw []byte) (Targets, error) {
	var doc struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	for _, t := range doc.Elements {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("parse targets: %w", err)
		}
	}
	return doc.Elements, nil
}

func init() {
	t, err := Parse(rawTargets)
	if err != nil {
		panic(err)
	}
	targets = t
}
