/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.TraceLevel, ParseLogLevel("trace"))
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("Debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("loud"))
}

func TestSetLoggerLevelRetunesRegisteredLogger(t *testing.T) {
	l := NewLogger("LEVELTEST")

	require.True(t, SetLoggerLevel("LEVELTEST", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())

	assert.False(t, SetLoggerLevel("NOSUCHLOGGER", "debug"))

	SetAllLoggersLevel(logrus.WarnLevel)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestTextFormatter(t *testing.T) {
	f := &textFormatter{name: "ENGINE"}
	out, err := f.Format(&logrus.Entry{
		Time:    time.Date(2026, 8, 25, 10, 21, 7, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "connection established",
		Data:    logrus.Fields{"host": "localhost", "attempt": 2},
	})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "2026-08-25 10:21:07")
	assert.Contains(t, s, "connection established")
	assert.Contains(t, s, "attempt=2 host=localhost")
}

func TestJSONFormatter(t *testing.T) {
	f := &jsonFormatter{name: "ENGINE"}
	out, err := f.Format(&logrus.Entry{
		Time:    time.Date(2026, 8, 25, 10, 21, 7, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "slow statement",
		Data:    logrus.Fields{"elapsed_ms": 2500},
	})
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "ENGINE", rec["logger"])
	assert.Equal(t, "slow statement", rec["message"])
	fields, ok := rec["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2500, fields["elapsed_ms"])
}

func TestDailyFileWriter(t *testing.T) {
	dir := t.TempDir()
	w := newDailyFileWriter(dir, "ENGINE", 7)

	_, err := w.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second line\n"))
	require.NoError(t, err)

	today := time.Now().Format("2006-01-02")
	b, err := os.ReadFile(filepath.Join(dir, "engine."+today+".log"))
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(b))
}

func TestDailyFileWriterPrunesOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	stale := filepath.Join(dir, "engine."+old+".log")
	require.NoError(t, os.WriteFile(stale, []byte("stale\n"), 0o644))

	w := newDailyFileWriter(dir, "ENGINE", 7)
	_, err := w.Write([]byte("fresh\n"))
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("MOLE_TEST_STR", "value")
	assert.Equal(t, "value", EnvDefaultString("MOLE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", EnvDefaultString("MOLE_TEST_STR_UNSET", "fallback"))

	t.Setenv("MOLE_TEST_BOOL", "true")
	assert.True(t, EnvDefaultBool("MOLE_TEST_BOOL", false))
	assert.False(t, EnvDefaultBool("MOLE_TEST_BOOL_UNSET", false))

	t.Setenv("MOLE_TEST_INT", "14")
	assert.Equal(t, 14, EnvDefaultInt("MOLE_TEST_INT", 3))
	assert.Equal(t, 3, EnvDefaultInt("MOLE_TEST_INT_UNSET", 3))
}
