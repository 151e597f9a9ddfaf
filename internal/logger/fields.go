package logger

import (
	"time"

	"go.uber.org/zap"
)

func String(key, val string) Field               { return zap.String(key, val) }
func Strings(key string, val []string) Field     { return zap.Strings(key, val) }
func Int(key string, val int) Field              { return zap.Int(key, val) }
func Bool(key string, val bool) Field            { return zap.Bool(key, val) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }
func Any(key string, val any) Field              { return zap.Any(key, val) }
func Error(err error) Field                      { return zap.Error(err) }

// Board tags an entry with the board being synthesized.
func Board(name string) Field { return zap.String("board", name) }

// RunID tags an entry with the pipeline run identifier.
func RunID(id string) Field { return zap.String("run_id", id) }

// State tags an entry with a pipeline state name.
func State(key, state string) Field { return zap.String(key, state) }

// Attempt tags an entry with a tier attempt counter.
func Attempt(tier string, n int) Field { return zap.Int(tier+"_attempt", n) }
