//go:build linux

// Package ptybridge exposes a soft UART as a pseudo-terminal so ordinary
// serial tools (minicom, picocom, gpsd) can talk to it.
package ptybridge

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"softuart-go/errcode"
	"softuart-go/services/hal"
	"softuart-go/x/logx"
)

const chunk = 64

// Bridge copies bytes between a pty master and a UART port.
type Bridge struct {
	port   hal.UARTPort
	master *os.File
	slave  *os.File

	// AfterTX, when set, runs after each chunk written to the port.
	AfterTX func()

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open allocates a pty pair and puts the slave side in raw mode.
func Open(port hal.UARTPort) (*Bridge, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "pty", Msg: "open", Err: err}
	}
	if err := MakeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	return &Bridge{port: port, master: master, slave: slave}, nil
}

// MakeRaw disables line discipline processing on fd: no echo, no canonical
// mode, no CR/LF translation, 8-bit characters.
func MakeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "pty", Msg: "get termios", Err: err}
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return &errcode.E{C: errcode.Error, Op: "pty", Msg: "set termios", Err: err}
	}
	return nil
}

// SlavePath is the device path terminal programs should open.
func (b *Bridge) SlavePath() string { return b.slave.Name() }

// Slave returns the slave end, mainly for tests.
func (b *Bridge) Slave() *os.File { return b.slave }

// Start runs both copy directions until ctx ends or Close is called.
func (b *Bridge) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		defer cancel()
		b.toPort()
	}()
	go func() {
		defer b.wg.Done()
		b.fromPort(ctx)
	}()
	logx.Info(logx.ComponentBridge, "pty ready", "path", b.SlavePath())
}

// toPort forwards what terminal programs write into the UART transmitter.
func (b *Bridge) toPort() {
	buf := make([]byte, chunk)
	for {
		n, err := b.master.Read(buf)
		if n > 0 {
			if _, werr := b.port.Write(buf[:n]); werr != nil {
				logx.Warn(logx.ComponentBridge, "uart write failed", "err", werr)
			}
			if b.AfterTX != nil {
				b.AfterTX()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logx.Debug(logx.ComponentBridge, "master read ended", "err", err)
			}
			return
		}
	}
}

// fromPort forwards received bytes to the terminal.
func (b *Bridge) fromPort(ctx context.Context) {
	buf := make([]byte, chunk)
	for {
		n, err := b.port.RecvSomeContext(ctx, buf)
		if err != nil {
			if ctx.Err() == nil {
				logx.Warn(logx.ComponentBridge, "uart read failed", "err", err)
			}
			return
		}
		if _, err := b.master.Write(buf[:n]); err != nil {
			return
		}
	}
}

// Close tears down the pty and waits for both copiers. Safe to call twice.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.master.Close()
		b.slave.Close()
	})
	b.wg.Wait()
	return err
}
