package env

import (
	"fmt"
	"log/slog"
	"strings"
)

type Mode string

const (
	Test  Mode = "test"
	Local Mode = "local"
	Dev   Mode = "dev"
	Prod  Mode = "prod"
)

// ParseMode accepts a mode name in any letter case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Validate() {
		return "", fmt.Errorf("invalid mode %q: want one of test, local, dev, prod", s)
	}
	return m, nil
}

func (e Mode) String() string {
	return string(e)
}

func (e Mode) Validate() bool {
	switch e {
	case Local, Test, Dev, Prod:
		return true
	default:
		return false
	}
}

// ExposesDebugRoutes reports whether development-only endpoints may be mounted.
func (e Mode) ExposesDebugRoutes() bool {
	return e == Local || e == Dev || e == Test
}

func (e Mode) SlogLevel() slog.Level {
	if e == Prod {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
