// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package cache wraps data-producing operations with a persistent, time-windowed
// result cache. A Manager decides per call whether the table stored under a
// name is still fresh according to a Policy, serving it as-is, or whether to
// invoke the producer and replace the table wholesale.
//
// Freshness is decided from the table's created_at stamp alone, so a cache hit
// reads the rows exactly once and a miss never reads them at all.
package cache
