// Package config loads the shutdown button directive from an INI file:
//
//	[GPIO]
//	Button = holdrelease,3
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/gcfg"

	"github.com/sweeney/gpio-shutdown/internal/logic"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/gpio-shutdown.conf"

// DefaultHoldTime applies when the directive has no hold time.
const DefaultHoldTime = 2 * time.Second

var (
	ErrAccess          = errors.New("config file inaccessible")
	ErrSyntax          = errors.New("config file malformed")
	ErrMissingButton   = errors.New("missing [GPIO] Button directive")
	ErrInvalidGesture  = errors.New("invalid gesture")
	ErrInvalidHoldTime = errors.New("invalid hold time")
)

// Config is the validated button directive.
type Config struct {
	Gesture  logic.Gesture
	HoldTime time.Duration
}

// file mirrors the INI layout. Section and key names match case-insensitively.
type file struct {
	GPIO struct {
		Button string
	}
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrAccess, err)
	}
	return Read(string(data))
}

// Read validates config file contents.
func Read(contents string) (Config, error) {
	section, err := buttonSection(contents)
	if err != nil {
		return Config{}, err
	}
	var f file
	if err := gcfg.FatalOnly(gcfg.ReadStringInto(&f, section)); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if strings.TrimSpace(f.GPIO.Button) == "" {
		return Config{}, ErrMissingButton
	}
	return Parse(f.GPIO.Button)
}

// buttonSection reduces contents to the [GPIO] header and its Button
// entries. Other sections and keys are ignored whatever characters they use,
// and "key: value" is accepted alongside "key = value". Line numbers are kept
// so gcfg errors still point into the original file.
func buttonSection(contents string) (string, error) {
	lines := strings.Split(contents, "\n")
	out := make([]string, len(lines))
	inGPIO := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			end := strings.IndexByte(trimmed, ']')
			if end < 0 {
				return "", fmt.Errorf("%w: line %d: unterminated section header", ErrSyntax, i+1)
			}
			inGPIO = strings.EqualFold(strings.TrimSpace(trimmed[1:end]), "GPIO")
			if inGPIO {
				out[i] = "[GPIO]"
			}
			continue
		}
		if !inGPIO || line != strings.TrimLeft(line, " \t") {
			// Indented lines continue the previous value; Button never spans lines.
			continue
		}
		sep := strings.IndexAny(trimmed, "=:")
		if sep < 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(trimmed[:sep]), "Button") {
			out[i] = "Button =" + trimmed[sep+1:]
		}
	}
	return strings.Join(out, "\n"), nil
}

// Parse validates a "gesture[,holdtime]" directive. Hold time is in seconds.
func Parse(directive string) (Config, error) {
	fields := strings.Split(directive, ",")
	if len(fields) > 2 {
		return Config{}, fmt.Errorf("%w: %q has more than two fields", ErrInvalidHoldTime, directive)
	}

	gesture, err := logic.ParseGesture(fields[0])
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidGesture, err)
	}

	cfg := Config{Gesture: gesture, HoldTime: DefaultHoldTime}
	if len(fields) == 2 {
		cfg.HoldTime, err = parseHoldTime(fields[1])
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// maxHoldSeconds keeps the conversion to time.Duration in range. Also rejects +Inf.
const maxHoldSeconds = float64(math.MaxInt64 / int64(time.Second))

func parseHoldTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number of seconds", ErrInvalidHoldTime, s)
	}
	if math.IsNaN(secs) || secs <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive number of seconds", ErrInvalidHoldTime, s)
	}
	if secs > maxHoldSeconds {
		return 0, fmt.Errorf("%w: %q is too long", ErrInvalidHoldTime, s)
	}
	d := time.Duration(secs * float64(time.Second))
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q is below the clock resolution", ErrInvalidHoldTime, s)
	}
	return d, nil
}

// String renders the directive back in config form.
func (c Config) String() string {
	return fmt.Sprintf("%s,%s", c.Gesture, strconv.FormatFloat(c.HoldTime.Seconds(), 'f', -1, 64))
}
