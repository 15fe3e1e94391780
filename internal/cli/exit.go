// Copyright 2025 Tom Barlow
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

// Package cli wires the orchestrator core into a runnable command-line
// program: argument parsing, adapter/registry bootstrap, and exit-code
// mapping. The core itself (coordinator, router, gate engine, ...) has no
// notion of a process exit code; this package is where that boundary is
// drawn.
package cli

import (
	"errors"
	"fmt"
	"os"

	orchestratorerrors "github.com/flowctl/orchestrator/pkg/errors"
)

// Exit codes for the orchestrator CLI.
const (
	ExitSuccess          = 0
	ExitExecutionFailed  = 1
	ExitInvalidWorkflow  = 2
	ExitGatesFailed      = 3
	ExitConfigError      = 4
)

// ExitError is an error that carries the process exit code it should
// produce.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

func newExecutionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExecutionFailed, Message: msg, Cause: cause}
}

func newInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidWorkflow, Message: msg, Cause: cause}
}

func newConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// handleExitError prints err and exits the process with its mapped exit
// code. A nil err is a no-op; any other error defaults to
// ExitExecutionFailed.
func handleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		printSuggestion(err)
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	printSuggestion(err)
	os.Exit(ExitExecutionFailed)
}

// printSuggestion walks err's unwrap chain for a UserVisibleError and
// prints its suggestion, if any.
func printSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(orchestratorerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if s := userErr.Suggestion(); s != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", s)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
