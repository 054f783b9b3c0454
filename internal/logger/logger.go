package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger for the application
func Init(appName, level string) error {
	return InitWithWriter(os.Stdout, appName, level)
}

// InitWithWriter is Init with an explicit destination
func InitWithWriter(out io.Writer, appName, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		parts := strings.Split(file, "/")
		return parts[len(parts)-1] + ":" + strconv.Itoa(line)
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "02-01-2006 15:04:05.000",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%-6s", i))
		},
		FieldsExclude: []string{"app"},
	}).With().Timestamp().Caller().Str("app", appName).Logger()

	return nil
}

// ParseLevel maps a configured level name onto a zerolog level
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO":
		return zerolog.InfoLevel, nil
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "FATAL":
		return zerolog.FatalLevel, nil
	case "DISABLED":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("incorrect log level %q", level)
	}
}
