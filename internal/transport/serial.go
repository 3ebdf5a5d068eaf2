//go:build unix

package transport

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// DialSerial opens a serial device (the hardware ZX Next bridge) in raw
// mode at the given baud rate and returns a ready Transport.
func DialSerial(device string, baud int) (Transport, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, dzrperr.Transport("SERIAL_OPEN_FAILED", err.Error())
	}
	if err := setRawMode(f, baud); err != nil {
		f.Close()
		return nil, dzrperr.Transport("SERIAL_CONFIG_FAILED", err.Error())
	}
	return newDuplex(f), nil
}

// setRawMode disables echo, canonical mode, and signal generation, and
// selects the requested baud rate if it is 9600, 57600, 115200 or 230400;
// any other rate is set to 115200. The remote frames its own
// messages (spec §4.1), so the serial line only needs to be raw and
// binary-transparent.
func setRawMode(f *os.File, baud int) error {
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	rate := baudConstant(baud)
	t.Ispeed = rate
	t.Ospeed = rate

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func baudConstant(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B115200
	}
}
