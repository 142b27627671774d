package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Disabled is the LED name that selects the no-op controller.
const Disabled = "none"

// boardLEDs maps device tree model substrings to the sysfs name of a LED
// that is safe to repurpose.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a controller for the named LED under /sys/class/leds. An empty
// name picks the LED for the detected board; "none" or an unknown board
// yields a no-op controller.
func New(name string, logger *slog.Logger) Controller {
	if name == Disabled {
		return newNoop(logger)
	}
	if name == "" {
		model := detectBoard(deviceTreeModelPath)
		name = ledForBoard(model)
		if name == "" {
			logger.Info("No status LED known for board, LED control disabled", "board_model", model)
			return newNoop(logger)
		}
		logger.Info("Detected board for status LED", "board_model", model, "led", name)
	}
	return newSysfs(sysfsLEDPath, name)
}

func ledForBoard(model string) string {
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			return b.led
		}
	}
	return ""
}

// detectBoard reads the device tree model, or "unknown".
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
