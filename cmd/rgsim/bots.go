package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"rgsim/internal/controller/jsbot"
	"rgsim/internal/controller/luabot"
	"rgsim/internal/sim/sandbox"
	"rgsim/internal/sim/tuning"
)

// loadBot picks the controller runtime from the file extension.
func loadBot(path string, tune tuning.Tuning, logger *log.Logger) (sandbox.Factory, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js":
		f, err := jsbot.Load(path, jsbot.Options{
			MaxCallStack: tune.MaxCallStack,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	case ".lua":
		f, err := luabot.Load(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported bot %q (want .js or .lua)", path)
}
