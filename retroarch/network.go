package retroarch

import (
	"fmt"
	"net"
	"strings"
	"time"

	"romm-autosync/constants"
)

// Notifier talks to RetroArch's UDP command interface on localhost.
type Notifier struct {
	Addr string
}

// NewNotifier targets the default command port.
func NewNotifier() *Notifier {
	return &Notifier{Addr: fmt.Sprintf("%s:%d", constants.UDPHost, constants.UDPPort)}
}

// ShowMessage displays text on the emulator's OSD. Fire-and-forget: errors
// mean RetroArch is not listening, which is not a failure for us.
func (n *Notifier) ShowMessage(text string) {
	conn, err := net.DialTimeout("udp", n.Addr, constants.UDPTimeout)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(constants.UDPTimeout))
	fmt.Fprintf(conn, "%s %s", constants.CmdShowMessage, text)
}

// GetStatus sends GET_STATUS and returns the raw reply. An error means the
// command port is not answering.
func (n *Notifier) GetStatus() (string, error) {
	conn, err := net.DialTimeout("udp", n.Addr, constants.UDPTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(constants.UDPTimeout))
	if _, err := fmt.Fprint(conn, constants.CmdGetStatus); err != nil {
		return "", err
	}

	buf := make([]byte, 4096)
	size, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:size])), nil
}

// ContentLoaded interprets a GET_STATUS reply: content is loaded when the
// reply is non-empty, not the literal N/A, and mentions neither CONTENTLESS
// nor MENU.
func ContentLoaded(reply string) bool {
	if reply == "" || reply == "N/A" {
		return false
	}
	if strings.Contains(reply, "CONTENTLESS") || strings.Contains(reply, "MENU") {
		return false
	}
	return true
}
