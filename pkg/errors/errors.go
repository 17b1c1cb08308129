// Copyright (c) 2019 Andy Pan
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

package errors

import "errors"

var (
	// ErrSpawn occurs when a thread cannot be spawned, see thread.SpawnError for the cause.
	ErrSpawn = errors.New("kthread: failed to spawn thread")
	// ErrTimeout occurs when a bounded wait elapses before the word changes or a wake arrives.
	ErrTimeout = errors.New("kthread: wait timed out")
	// ErrAllocation occurs when the allocator cannot serve a request.
	ErrAllocation = errors.New("kthread: allocation failure")
	// ErrOutOfMemory occurs when the linear memory cannot grow any further.
	ErrOutOfMemory = errors.New("kthread: linear memory exhausted")
	// ErrMisuse is the panic value for caller contract violations,
	// e.g. unlocking an unlocked mutex or joining a consumed thread.
	ErrMisuse = errors.New("kthread: misuse")
	// ErrWorkerRefused occurs when the host refuses to launch a new worker.
	ErrWorkerRefused = errors.New("kthread: host refused to create worker")
	// ErrHostClosed occurs when a worker is requested from a closed host.
	ErrHostClosed = errors.New("kthread: host has been closed")
	// ErrInvalidConfig occurs when a configuration value is out of range.
	ErrInvalidConfig = errors.New("kthread: invalid configuration")
)
