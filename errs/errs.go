// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel 錯誤分級，讓最外層（CLI / HTTP 邊界）知道該如何處置：
//   - Fatal：設定或系統層級問題，流程必須中止。
//   - Warn：請求或參數問題，可回報呼叫端後繼續服務。
//   - Log：僅需留下紀錄，不影響流程。
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

func (lv ErrLevel) String() string {
	switch lv {
	case Fatal:
		return "fatal"
	case Warn:
		return "warn"
	case Log:
		return "log"
	default:
		return ""
	}
}

// E 是本專案統一的錯誤型別。
// Message 是主訊息；Extra 是呼叫端追加的上下文（不影響主訊息）；
// Cause 串接底層錯誤（可被 errors.Is / errors.As 展開）；ErrLv 標示嚴重度。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
}

func (e *E) Error() string {
	s := fmt.Sprintf("[%s] %s", e.ErrLv, e.Message)
	if e.Extra != "" {
		s += " | " + e.Extra
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return s
}

// Unwrap 讓 errors.Is / errors.As 能向下展開 Cause。
func (e *E) Unwrap() error { return e.Cause }

// New 以指定分級建立錯誤。
func New(lv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: lv}
}

func NewFatal(msg string) *E { return New(Fatal, msg) }

func NewWarn(msg string) *E { return New(Warn, msg) }

func NewLog(msg string) *E { return New(Log, msg) }

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Logf(format string, a ...any) *E {
	return NewLog(fmt.Sprintf(format, a...))
}

// NewWithExtra 同 New，另附加上下文字串。
func NewWithExtra(lv ErrLevel, msg string, extra string) *E {
	e := New(lv, msg)
	e.Extra = extra
	return e
}

// Wrap 以新訊息包裝底層錯誤。
//
// 分級規則：
//   - cause 若已是 *E，沿用其 ErrLv（不升級、不降級）。
//   - cause 若是標準庫或三方錯誤，一律視為 Fatal；
//     若你確定該錯誤可預期、可處理，請改用 New* 自行指定分級，不要 Wrap。
func Wrap(cause error, msg string) *E {
	r := New(levelOrFatal(cause), msg)
	r.Cause = cause
	return r
}

// WrapWithExtra 同 Wrap，另附加上下文字串。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := NewWithExtra(levelOrFatal(cause), msg, extra)
	r.Cause = cause
	return r
}

// AsErr 取出錯誤鏈上最外層的 *E。
func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// LevelOf 回報錯誤的分級；非本包錯誤視為 Fatal，nil 視為 None。
// CLI 依此決定 exit code，HTTP 邊界依此決定 status code。
func LevelOf(err error) ErrLevel {
	if err == nil {
		return None
	}
	return levelOrFatal(err)
}

func levelOrFatal(err error) ErrLevel {
	var e *E
	if errors.As(err, &e) {
		return e.ErrLv
	}
	return Fatal
}
