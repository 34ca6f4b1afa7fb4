// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package metrics instruments the e2ee core with Prometheus counters,
// gauges, and histograms. All collectors in this package register against
// Registry, a dedicated prometheus.Registry rather than the global default,
// so embedding applications can mount it on their own path without
// colliding with unrelated collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "agentcrypt"

// Registry is the collector registry every metric in this package binds to.
var Registry = prometheus.NewRegistry()
