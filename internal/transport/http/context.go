// Copyright 2026 The Parishauth Authors
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

package http

import (
	"context"

	"github.com/horaires-messes/parishauth/internal/authz"
)

type contextKey string

const callerKey contextKey = "caller"

// WithCaller stores the authenticated caller in ctx
func WithCaller(ctx context.Context, c authz.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// GetCaller retrieves the authenticated caller from context.
func GetCaller(ctx context.Context) (authz.Caller, bool) {
	c, ok := ctx.Value(callerKey).(authz.Caller)
	return c, ok
}
