package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	convFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: VOICEDESK_LOG_PATH environment variable
	envPath := os.Getenv("VOICEDESK_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	convPath := filepath.Join(dir, "conversation_log.txt")
	convFile, err = os.OpenFile(convPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if convFile != nil {
		convFile.Close()
		convFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// ConversationLine appends one flat-format turn ("User: ..." / "AI: ...") to the
// conversation log. Utterance text goes here and only here; diagnostic events
// carry durations and counts, never transcript content.
func ConversationLine(line string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if convFile == nil {
		return
	}
	fmt.Fprintf(convFile, "%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, line)
}

func SessionStart(sttProvider, model string, sampleRate int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("stt", sttProvider).
		Str("model", model).
		Int("sample_rate", sampleRate).
		Msg("session_start")
}

func SessionEnd(turns int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("turns", turns).
		Msg("session_end")
}

type TurnMetricsData struct {
	ListenMs int64
	InferMs  int64
	SynthMs  int64
	AudioMs  int64 // duration of the synthesized reply
	PlayMs   int64
	Chunks   int
	Interim  int
}

func TurnMetrics(m TurnMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("listen_ms", m.ListenMs).
		Int64("infer_ms", m.InferMs).
		Int64("synth_ms", m.SynthMs).
		Int64("audio_ms", m.AudioMs).
		Int64("play_ms", m.PlayMs).
		Int("chunks", m.Chunks).
		Int("interim", m.Interim).
		Msg("turn")
}
