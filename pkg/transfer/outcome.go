// Copyright 2025 Emrys Liu
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

package transfer

import "sync"

// 📊 Tally is the four-count summary returned per run
type Tally struct {
	Found     int
	Succeeded int
	Skipped   int
	Failed    int
}

// 📦 Outcome is the run-scoped accounting record. It is mutated only
// by the orchestrator that owns it. Every name in found lands in
// exactly one of succeeded, skipped or failed once the run completes
// normally; renamed holds an entry iff the upload name differed from
// the source name.
type Outcome struct {
	mu        sync.Mutex
	found     []string
	succeeded []string
	skipped   []string
	failed    map[string]string // name -> reason
	renamed   map[string]string // original name -> upload name
	errors    []string          // run-level, non-per-file failures
}

// 🏭 NewOutcome creates an empty accounting record
func NewOutcome() *Outcome {
	return &Outcome{
		failed:  make(map[string]string),
		renamed: make(map[string]string),
	}
}

func (o *Outcome) markFound(names []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.found = append(o.found, names...)
}

func (o *Outcome) markSucceeded(entry string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded = append(o.succeeded, entry)
}

func (o *Outcome) markSkipped(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, name)
}

func (o *Outcome) markFailed(name, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[name] = reason
}

func (o *Outcome) markRenamed(original, uploadName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renamed[original] = uploadName
}

func (o *Outcome) addError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

// 📊 Tally returns the four-count summary
func (o *Outcome) Tally() Tally {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Tally{
		Found:     len(o.found),
		Succeeded: len(o.succeeded),
		Skipped:   len(o.skipped),
		Failed:    len(o.failed),
	}
}

// Found returns the post-filter candidate set, in listing order.
func (o *Outcome) Found() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.found...)
}

// Succeeded returns the success entries; renamed files use the
// "original -> renamed" notation.
func (o *Outcome) Succeeded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.succeeded...)
}

// Skipped returns the names skipped by the collision strategy.
func (o *Outcome) Skipped() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.skipped...)
}

// Failed returns name -> failure reason.
func (o *Outcome) Failed() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]string, len(o.failed))
	for k, v := range o.failed {
		out[k] = v
	}
	return out
}

// Renamed returns original name -> chosen upload name.
func (o *Outcome) Renamed() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]string, len(o.renamed))
	for k, v := range o.renamed {
		out[k] = v
	}
	return out
}

// Errors returns the run-level error messages.
func (o *Outcome) Errors() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.errors...)
}
