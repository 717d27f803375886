/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned when an address has no type or cannot be parsed.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidNode is returned when a mesh node descriptor fails validation.
	ErrInvalidNode = errors.New("invalid mesh node")

	// ErrNodeNotFound is returned when the catalog holds no node for an address.
	ErrNodeNotFound = errors.New("mesh node not found")

	// ErrModuleLoad is returned when a module cannot be loaded from its location.
	ErrModuleLoad = errors.New("module load failed")

	// ErrModuleSourceNotFound is returned when no module source accepts a location.
	ErrModuleSourceNotFound = errors.New("no module source can load the location")

	// ErrHubConfigurationMissing is returned when an address has no hub configuration in the catalog.
	ErrHubConfigurationMissing = errors.New("no hub configuration is specified")

	// ErrStartupNotFound is returned when a module does not declare the startup reference of a node.
	ErrStartupNotFound = errors.New("startup descriptor not found")

	// ErrHubNotStarted is returned when a hub grain is asked to deliver without an owned hub.
	ErrHubNotStarted = errors.New("hub not started")

	// ErrStreamProviderNotFound is returned when a stream provider name is not registered.
	ErrStreamProviderNotFound = errors.New("stream provider not found")

	// ErrProviderClosed is returned when a stream provider is used after Close.
	ErrProviderClosed = errors.New("stream provider is closed")

	// ErrGrainKindNotRegistered is returned when a grain kind has no registered factory.
	ErrGrainKindNotRegistered = errors.New("grain kind is not registered")

	// ErrGrainActivationFailure is returned when a grain fails to activate.
	ErrGrainActivationFailure = errors.New("grain activation failed")

	// ErrGrainDeactivationFailure is returned when a grain fails to deactivate.
	ErrGrainDeactivationFailure = errors.New("grain deactivation failed")

	// ErrSystemNotStarted indicates that the actor system has not been started before use.
	ErrSystemNotStarted = errors.New("actor system is not running")

	// ErrNameRequired is returned when a name is required but not provided.
	ErrNameRequired = errors.New("name is required")

	// ErrRequestTimeout indicates that a request timed out while waiting for a response.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrInvalidMessage indicates that a message is structurally or semantically invalid.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnhandled is returned when a grain receives a message it cannot handle.
	ErrUnhandled = errors.New("unhandled message")

	// ErrMeshNotStarted is returned when the mesh is used before Start.
	ErrMeshNotStarted = errors.New("mesh is not started")

	// ErrMeshStopped is returned when a stopped mesh is started again.
	ErrMeshStopped = errors.New("mesh is stopped")
)

// NewErrInvalidAddress wraps a base error with ErrInvalidAddress
func NewErrInvalidAddress(err error) error {
	return errors.Join(ErrInvalidAddress, err)
}

// NewErrInvalidNode wraps a base error with ErrInvalidNode
func NewErrInvalidNode(err error) error {
	return errors.Join(ErrInvalidNode, err)
}

// NewErrNodeNotFound formats an ErrNodeNotFound for the given address.
func NewErrNodeNotFound(address string) error {
	return fmt.Errorf("(address=%s) %w", address, ErrNodeNotFound)
}

// NewErrHubConfigurationMissing formats an ErrHubConfigurationMissing for the given address.
func NewErrHubConfigurationMissing(address string) error {
	return &configurationError{
		err:     ErrHubConfigurationMissing,
		message: fmt.Sprintf("No hub configuration is specified for %s", address),
	}
}

// NewErrStartupNotFound formats an ErrStartupNotFound for the given startup reference and module.
func NewErrStartupNotFound(reference, module string) error {
	return &configurationError{
		err:     ErrStartupNotFound,
		message: fmt.Sprintf("startup descriptor %q not found in module %s", reference, module),
	}
}

// NewErrStreamProviderNotFound formats an ErrStreamProviderNotFound for the given provider name.
func NewErrStreamProviderNotFound(name string) error {
	return fmt.Errorf("(provider=%s) %w", name, ErrStreamProviderNotFound)
}

// NewErrGrainKindNotRegistered formats an ErrGrainKindNotRegistered for the given kind.
func NewErrGrainKindNotRegistered(kind string) error {
	return fmt.Errorf("(kind=%s) %w", kind, ErrGrainKindNotRegistered)
}

// NewErrGrainActivationFailure marks err as an activation failure.
// The message of err is kept as is so callers can surface it unchanged.
func NewErrGrainActivationFailure(err error) error {
	return &activationError{err: err}
}

// NewErrGrainDeactivationFailure wraps a base error with ErrGrainDeactivationFailure
func NewErrGrainDeactivationFailure(err error) error {
	return errors.Join(ErrGrainDeactivationFailure, err)
}

// NewErrInvalidMessage wraps a base error with ErrInvalidMessage
func NewErrInvalidMessage(err error) error {
	return errors.Join(ErrInvalidMessage, err)
}

// IsConfigurationError reports whether err carries a deployment configuration problem,
// that is a missing hub configuration or a missing startup descriptor.
func IsConfigurationError(err error) bool {
	var cerr *configurationError
	return errors.As(err, &cerr)
}

// ModuleLoadError is returned when a module cannot be loaded from its location.
type ModuleLoadError struct {
	location string
	err      error
}

// enforce compilation error
var _ error = (*ModuleLoadError)(nil)

// NewModuleLoadError creates an instance of ModuleLoadError
func NewModuleLoadError(location string, err error) *ModuleLoadError {
	return &ModuleLoadError{location: location, err: err}
}

// Location returns the module location that failed to load
func (e *ModuleLoadError) Location() string {
	return e.location
}

// Error implements the standard error interface
func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("%s: location=(%s): %v", ErrModuleLoad.Error(), e.location, e.err)
}

// Unwrap returns the underlying causes
func (e *ModuleLoadError) Unwrap() []error {
	return []error{ErrModuleLoad, e.err}
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

type configurationError struct {
	err     error
	message string
}

func (e *configurationError) Error() string {
	return e.message
}

func (e *configurationError) Unwrap() error {
	return e.err
}

type activationError struct {
	err error
}

func (e *activationError) Error() string {
	return e.err.Error()
}

func (e *activationError) Unwrap() []error {
	return []error{ErrGrainActivationFailure, e.err}
}
