// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
)

// NewSetLogLevel returns a handler that takes requests to dynamically configure
// the log level. The desired log level should be provided in a POST request with
// "Content-Type: application/x-www-form-urlencoded" body, ex: level=DEBUG
func NewSetLogLevel(level zap.AtomicLevel) http.Handler {
	return &setLogLevelHandler{level}
}

type setLogLevelHandler struct {
	level zap.AtomicLevel
}

func (s *setLogLevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("bad body: %v", err), http.StatusBadRequest)
		return
	}

	level, err := parseLogLevel(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.level.SetLevel(level)
	logger.Infof("successfully set log level=%v", level)
	w.WriteHeader(http.StatusOK)
}

func parseLogLevel(values url.Values) (zapcore.Level, error) {
	level := values.Get("level")
	if level == "" {
		return zapcore.InvalidLevel, errors.New("must provide log level")
	}

	switch strings.TrimSpace(strings.ToUpper(level)) {
	case "FATAL", "ERROR":
		return zapcore.ErrorLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG", "VERBOSE", "MAX":
		return zapcore.DebugLevel, nil
	}
	return zapcore.InvalidLevel, fmt.Errorf("invalid log level %s", level)
}
