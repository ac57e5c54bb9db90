// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wait 提供了受 ctx 控制的长驻 goroutine 运行辅助函数
package wait

import (
	"context"
	"time"

	"github.com/packetd/packetd/internal/rescue"
)

// Until 在独立的 goroutine 中反复运行 f 直到 ctx 被取消
//
// f 自身应该是阻塞的长循环（如内部含有 for-select） 一旦 f 因 panic 或者正常返回
// 且 ctx 尚未结束 Until 会在短暂停顿后重新拉起 f 避免单个 goroutine 异常退出导致
// 整条处理链路失效
func Until(ctx context.Context, f func()) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runOnce(f)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func runOnce(f func()) {
	defer rescue.HandleCrash()
	f()
}
