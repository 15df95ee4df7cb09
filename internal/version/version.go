// Package version хранит сведения о сборке бинарника.
// Значения подставляются линкером через -ldflags при сборке релиза;
// значения по умолчанию означают локальную dev-сборку.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает одну собранную версию бинарника.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Info возвращает сведения о текущей сборке.
func Info() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// String форматирует сведения о сборке для стартового лога.
func String() string {
	b := Info()
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}
