// Package console is a line-oriented command interpreter for driving soft
// UARTs by hand (simulator prompt, pty side channel).
//
//	open <index> <baud> <rx> <tx>
//	close <index>
//	send <index> <text...>      transmit; \r \n \xHH escapes (single-quote them)
//	read <index> [max]          drain up to max (1..64) buffered bytes
//	stats <index>
//	overflow <index>
//	clear <index>
//	inject <pin> <text...>      drive a frame sequence onto a pin (if wired)
//	help
package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"softuart-go/errcode"
	"softuart-go/services/softuart"
	"softuart-go/x/conv"
	"softuart-go/x/logx"
	"softuart-go/x/mathx"
	"softuart-go/x/shmring"
)

var ErrQuit = errors.New("console: quit")

// Console executes commands against a registry and writes replies to Out.
type Console struct {
	Reg *softuart.Registry
	Out io.Writer

	// Inject, when set, backs the inject command.
	Inject func(pin int, data []byte) error
	// AfterTX runs after every send (the simulator delivers edges here).
	AfterTX func()
}

type command struct {
	args  int // minimum argument count
	usage string
	run   func(c *Console, argv []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"open":     {4, "open <index> <baud> <rx> <tx>", (*Console).open},
		"close":    {1, "close <index>", (*Console).close},
		"send":     {2, "send <index> <text...>", (*Console).send},
		"read":     {1, "read <index> [max]", (*Console).read},
		"stats":    {1, "stats <index>", (*Console).stats},
		"overflow": {1, "overflow <index>", (*Console).overflow},
		"clear":    {1, "clear <index>", (*Console).clear},
		"inject":   {2, "inject <pin> <text...>", (*Console).inject},
		"help":     {0, "help", (*Console).help},
		"quit":     {0, "quit", func(*Console, []string) error { return ErrQuit }},
	}
}

// Exec runs one command line. Blank lines and # comments are ignored.
func (c *Console) Exec(line string) error {
	argv, err := shlex.Split(line)
	if err != nil {
		return errcode.New(errcode.InvalidParams, "console", err.Error())
	}
	if len(argv) == 0 {
		return nil
	}
	cmd, ok := commands[argv[0]]
	if !ok {
		return errcode.New(errcode.Unsupported, "console", "unknown command "+strconv.Quote(argv[0]))
	}
	if len(argv)-1 < cmd.args {
		return errcode.New(errcode.InvalidParams, "console", "usage: "+cmd.usage)
	}
	logx.Debug(logx.ComponentConsole, "exec", "cmd", argv[0], "argc", len(argv)-1)
	return cmd.run(c, argv[1:])
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func atoi(s, what string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errcode.New(errcode.InvalidParams, "console", "bad "+what+" "+strconv.Quote(s))
	}
	return n, nil
}

func (c *Console) open(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	baud, err := strconv.ParseFloat(argv[1], 64)
	if err != nil {
		return errcode.New(errcode.InvalidBaud, "console", "bad baud "+strconv.Quote(argv[1]))
	}
	rx, err := atoi(argv[2], "rx")
	if err != nil {
		return err
	}
	tx, err := atoi(argv[3], "tx")
	if err != nil {
		return err
	}
	if err := c.Reg.Open(idx, baud, rx, tx); err != nil {
		return err
	}
	c.printf("uart%d open %g baud rx=%d tx=%d bit=%dus\n", idx, baud, rx, tx, c.Reg.BitPeriod(idx))
	return nil
}

func (c *Console) close(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	if err := c.Reg.Close(idx); err != nil {
		return err
	}
	c.printf("uart%d closed\n", idx)
	return nil
}

// Unescape expands \r, \n, \t, \\ and \xHH.
func Unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'r':
			out = append(out, '\r')
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+3 > len(s) {
				return nil, errcode.New(errcode.InvalidParams, "console", "short \\x escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, errcode.New(errcode.InvalidParams, "console", "bad \\x escape")
			}
			out = append(out, byte(v))
			i += 2
		default:
			out = append(out, '\\', s[i])
		}
	}
	return out, nil
}

func (c *Console) send(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	data, err := Unescape(strings.Join(argv[1:], " "))
	if err != nil {
		return err
	}
	n, err := c.Reg.Write(idx, data)
	if c.AfterTX != nil {
		c.AfterTX()
	}
	if err != nil {
		return err
	}
	c.printf("uart%d sent %d bytes\n", idx, n)
	return nil
}

func (c *Console) read(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	max := shmring.Size
	if len(argv) > 1 {
		if max, err = atoi(argv[1], "max"); err != nil {
			return err
		}
	}
	buf := make([]byte, mathx.Clamp(max, 1, shmring.Size))
	n, err := c.Reg.Read(idx, buf)
	if err != nil {
		return err
	}
	var line []byte
	for _, b := range buf[:n] {
		line = conv.RxLine(line[:0], b)
		c.printf("%s\n", line)
	}
	if n == 0 {
		c.printf("uart%d empty\n", idx)
	}
	return nil
}

func (c *Console) stats(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	st, err := c.Reg.Stats(idx)
	if err != nil {
		return err
	}
	c.printf("uart%d active=%t buffered=%d frames=%d overruns=%d ignored=%d sent=%d\n",
		idx, c.Reg.IsActive(idx), c.Reg.Available(idx), st.Frames, st.Overruns, st.Ignored, st.Sent)
	return nil
}

func (c *Console) overflow(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	c.printf("uart%d overflow=%t policy=%s\n", idx, c.Reg.Overflow(idx), c.Reg.Policy())
	return nil
}

func (c *Console) clear(argv []string) error {
	idx, err := atoi(argv[0], "index")
	if err != nil {
		return err
	}
	was, err := c.Reg.ClearOverflow(idx)
	if err != nil {
		return err
	}
	c.printf("uart%d overflow cleared (was %t)\n", idx, was)
	return nil
}

func (c *Console) inject(argv []string) error {
	if c.Inject == nil {
		return errcode.New(errcode.Unsupported, "console", "inject needs a simulated bench")
	}
	pin, err := atoi(argv[0], "pin")
	if err != nil {
		return err
	}
	data, err := Unescape(strings.Join(argv[1:], " "))
	if err != nil {
		return err
	}
	if err := c.Inject(pin, data); err != nil {
		return err
	}
	c.printf("pin %d injected %d bytes\n", pin, len(data))
	return nil
}

func (c *Console) help([]string) error {
	for _, name := range []string{"open", "close", "send", "read", "stats", "overflow", "clear", "inject", "help", "quit"} {
		c.printf("  %s\n", commands[name].usage)
	}
	return nil
}
