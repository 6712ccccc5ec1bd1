// Package logging はアプリケーション全体で使用する構造化ロガーを提供する。
//
// logrusをラップし、環境変数で指定されたレベルと出力形式を適用する。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// 出力形式。
const (
	// FormatText は人間が読みやすいテキスト形式。
	FormatText = "text"
	// FormatJSON はログ収集基盤向けのJSON形式。
	FormatJSON = "json"
)

// New は指定されたレベルと形式で標準エラー出力に書き込むロガーを生成する。
func New(level, format string) (*logrus.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter は出力先を指定してロガーを生成する。テストで出力を捕捉するために使用する。
func NewWithWriter(w io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("ログレベルが不正です: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("ログ形式が不正です: %q", format)
	}
	return logger, nil
}

// Discard は何も出力しないロガーを返す。
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
