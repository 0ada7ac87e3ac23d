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

package dto

import (
	"reflect"

	"github.com/zintix-labs/banditlab/spec"
)

var diagRenders = map[spec.PolicyKey]func(any) any{}

// RegisterDiagRender 註冊策略診斷輸出的解析函數。
// T 為該策略診斷輸出的 型別指標 (不傳指標會panic)
func RegisterDiagRender[T any](pkey spec.PolicyKey) {
	// 判斷送進來的T是否是指標型別
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Ptr {
		panic("RegisterDiagRender 必須傳入 指標型別")
	}

	// 註冊診斷型別json解析
	diagRenders[pkey] = func(v any) any {
		if val, ok := v.(T); ok {
			return val
		}
		return v
	}
}

// RenderDiag 把策略回報的診斷值轉成可序列化形式。
// 未註冊的策略原樣帶出。
func RenderDiag(pkey spec.PolicyKey, v any) any {
	if fn, ok := diagRenders[pkey]; ok {
		return fn(v)
	}
	return v
}
