package main

import (
	"bufio"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/uni-helper/internal/model"
)

// logSink is an opened log destination.
type logSink struct {
	w     io.Writer
	color bool
	close func()
}

// openSink opens the named destination: stderr, stdout, or a file path
// that is appended to.
func openSink(name string) (logSink, error) {
	switch name {
	case "stderr", "":
		return logSink{w: os.Stderr, color: runtime.GOOS != "windows", close: func() {}}, nil
	case "stdout":
		return logSink{w: os.Stdout, color: runtime.GOOS != "windows", close: func() {}}, nil
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return logSink{}, err
	}
	bw := bufio.NewWriter(f)
	return logSink{
		w: bw,
		close: func() {
			_ = bw.Flush()
			_ = f.Close()
		},
	}, nil
}

// setupLogging points the global logger at logfile using the level from
// cfg. The returned func flushes and closes a file sink.
func setupLogging(cfg *model.AppConfig, logfile string, json bool) (func(), error) {
	level, err := model.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	sink, err := openSink(logfile)
	if err != nil {
		return nil, err
	}

	out := zerolog.SyncWriter(sink.w)
	if !json {
		out = zerolog.ConsoleWriter{Out: out, NoColor: !sink.color}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", "unihelper").Logger()
	return sink.close, nil
}
