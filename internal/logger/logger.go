package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Level はログレベルを表す
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Logger は各コンポーネントに注入されるログ出力先
type Logger interface {
	// Info は情報ログを出力する
	Info(msg string)

	// Infof は書式付きの情報ログを出力する
	Infof(format string, args ...any)

	// Error はエラーログを出力する
	Error(msg string)

	// Errorf は書式付きのエラーログを出力する
	Errorf(format string, args ...any)

	// DeviceError はデバイス層から返されたエラーを出力する
	DeviceError(err error)
}

// TimestampLogger は経過時間付きのLogger実装
type TimestampLogger struct {
	out   *log.Logger
	begin time.Time
	now   func() time.Time
}

// New は指定した出力先に書き込むTimestampLoggerを作成する
func New(w io.Writer) *TimestampLogger {
	return NewWithClock(w, time.Now)
}

// NewStdout は標準出力に書き込むTimestampLoggerを作成する
func NewStdout() *TimestampLogger {
	return New(os.Stdout)
}

// NewWithClock は時計を差し替えたTimestampLoggerを作成する（テスト用）
func NewWithClock(w io.Writer, now func() time.Time) *TimestampLogger {
	return &TimestampLogger{
		out:   log.New(w, "", 0),
		begin: now(),
		now:   now,
	}
}

// Elapsed はロガー作成からの経過時間をミリ秒で返す
func (l *TimestampLogger) Elapsed() int64 {
	return l.now().Sub(l.begin).Milliseconds()
}

// Info は情報ログを出力する
func (l *TimestampLogger) Info(msg string) {
	l.write(LevelInfo, msg)
}

// Infof は書式付きの情報ログを出力する
func (l *TimestampLogger) Infof(format string, args ...any) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

// Error はエラーログを出力する
func (l *TimestampLogger) Error(msg string) {
	l.write(LevelError, msg)
}

// Errorf は書式付きのエラーログを出力する
func (l *TimestampLogger) Errorf(format string, args ...any) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}

// DeviceError はデバイスエラーを "device: <説明>" の形で出力する
func (l *TimestampLogger) DeviceError(err error) {
	if err == nil {
		return
	}
	l.write(LevelError, "device: "+err.Error())
}

func (l *TimestampLogger) write(level Level, msg string) {
	// log.Loggerは1回のOutput呼び出しを1回のWriteにまとめるので行が混ざらない
	_ = l.out.Output(3, fmt.Sprintf("[%d] [%s] %s", l.Elapsed(), level, msg))
}

// nopLogger は何も出力しないLogger
type nopLogger struct{}

// Nop は出力を捨てるLoggerを返す
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Info(string)           {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Error(string)          {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) DeviceError(error)     {}
