package assert

import (
	"fmt"

	"github.com/bloeys/lumen/consts"
	"github.com/bloeys/lumen/logging"
)

// T panics with the formatted message if check is false.
// In release builds (-tags release) it does nothing.
func T(check bool, msg string, args ...any) {

	if !consts.Debug || check {
		return
	}

	formatted := fmt.Sprintf(msg, args...)
	logging.ErrLog.Errorf("Assert failed: %s", formatted)
	panic("Assert failed: " + formatted)
}
