package logger

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kmehta2012/ladder-trading/src/utils"
)

// Init configures the process-wide logrus instance: text output with full
// timestamps to stdout, plus a size-rotated log file. Level comes from
// LOG_LEVEL (default info).
func Init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	level, err := log.ParseLevel(utils.GetEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}

	log.SetLevel(level)

	logFile := &lumberjack.Logger{
		Filename:   utils.GetEnvOrDefault("LOG_FILE_PATH", "ladder-engine.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
}
