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


package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics records authentication and authorization outcomes.
// A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	decisions     *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters on reg, normally the registry
// served by HTTPMetrics.Handler so they appear on /metrics.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	a := &AuthMetrics{
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parishauth_logins_total",
				Help: "Login attempts by result.",
			},
			[]string{"result"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parishauth_registrations_total",
				Help: "Registration workflow transitions by outcome.",
			},
			[]string{"outcome"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parishauth_access_decisions_total",
				Help: "Access control decisions by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		),
	}
	for _, c := range []prometheus.Collector{a.logins, a.registrations, a.decisions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register auth metrics: %w", err)
		}
	}
	return a, nil
}

// LoginAttempt counts a login by result (success, invalid_credentials, pending_approval, error)
func (a *AuthMetrics) LoginAttempt(_ context.Context, result string) {
	if a == nil {
		return
	}
	a.logins.WithLabelValues(result).Inc()
}

// Registration counts a workflow transition (submitted, approved, rejected, conflict)
func (a *AuthMetrics) Registration(_ context.Context, outcome string) {
	if a == nil {
		return
	}
	a.registrations.WithLabelValues(outcome).Inc()
}

// AccessDecision counts a guard evaluation
func (a *AuthMetrics) AccessDecision(_ context.Context, allowed bool, reason string) {
	if a == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	a.decisions.WithLabelValues(outcome, reason).Inc()
}
