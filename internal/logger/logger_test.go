package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestInit_Level(t *testing.T) {
	Init("debug")
	assert.Equal(t, zerolog.DebugLevel, Logger.GetLevel())

	Init("bogus")
	assert.Equal(t, zerolog.InfoLevel, Logger.GetLevel())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("INFO"))
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
	assert.Equal(t, gormlogger.Warn, GormLevel(""))
}
