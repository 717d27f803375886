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

// Package node defines the catalog descriptor of a deployable unit of the mesh.
package node

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/systemorph/meshweaver/address"
	gerrors "github.com/systemorph/meshweaver/errors"
	"github.com/systemorph/meshweaver/internal/validation"
)

// builtinScheme prefixes the location of modules compiled into the binary
const builtinScheme = "builtin:"

// RoutingKind tells the router how an address of the node is reached
type RoutingKind int

const (
	// RoutingKindDirect delivers by invoking the hub grain of the address
	RoutingKindDirect RoutingKind = iota
	// RoutingKindStream delivers by publishing on the node stream
	RoutingKindStream
)

// String returns the textual form of the routing kind
func (k RoutingKind) String() string {
	switch k {
	case RoutingKindDirect:
		return "direct"
	case RoutingKindStream:
		return "stream"
	default:
		return fmt.Sprintf("RoutingKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k RoutingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *RoutingKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "direct":
		*k = RoutingKindDirect
	case "stream":
		*k = RoutingKindStream
	default:
		return fmt.Errorf("unknown routing kind %q", string(text))
	}
	return nil
}

// InstantiationKind tells the hub grain how to build the hub of the node
type InstantiationKind int

const (
	// InstantiationKindNone declares no hub; deliveries reach the node through its stream or a listener
	InstantiationKindNone InstantiationKind = iota
	// InstantiationKindHubConfiguration loads the node module in an isolated loader
	// and looks the hub factory up by startup reference
	InstantiationKindHubConfiguration
	// InstantiationKindStatic takes the hub factory from the factories compiled into the mesh
	InstantiationKindStatic
)

// String returns the textual form of the instantiation kind
func (k InstantiationKind) String() string {
	switch k {
	case InstantiationKindNone:
		return "none"
	case InstantiationKindHubConfiguration:
		return "hub-configuration"
	case InstantiationKindStatic:
		return "static"
	default:
		return fmt.Sprintf("InstantiationKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k InstantiationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *InstantiationKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "none":
		*k = InstantiationKindNone
	case "hub-configuration", "hubconfiguration":
		*k = InstantiationKindHubConfiguration
	case "static":
		*k = InstantiationKindStatic
	default:
		return fmt.Errorf("unknown instantiation kind %q", string(text))
	}
	return nil
}

// MeshNode describes how the runtime hosts and reaches the addresses it covers.
//
// Key is unique across the catalog. A node whose instantiation kind is
// InstantiationKindHubConfiguration carries a startup reference or a module location.
// Whether addresses are reached through a stream follows StreamProvider, see RoutesByStream.
type MeshNode struct {
	Key               string            `json:"key" yaml:"key"`
	AddressType       string            `json:"addressType" yaml:"address_type"`
	AddressID         string            `json:"addressId,omitempty" yaml:"address_id"`
	StreamProvider    string            `json:"streamProvider,omitempty" yaml:"stream_provider"`
	Namespace         string            `json:"namespace,omitempty" yaml:"namespace"`
	ModuleLocation    string            `json:"moduleLocation,omitempty" yaml:"module_location"`
	StartupReference  string            `json:"startupReference,omitempty" yaml:"startup_reference"`
	RoutingKind       RoutingKind       `json:"routingKind" yaml:"routing_kind"`
	InstantiationKind InstantiationKind `json:"instantiationKind" yaml:"instantiation_kind"`
}

var _ validation.Validator = (*MeshNode)(nil)

// Option configures a MeshNode
type Option func(*MeshNode)

// WithStream routes the node through the given stream provider and namespace
func WithStream(provider, namespace string) Option {
	return func(n *MeshNode) {
		n.StreamProvider = provider
		n.Namespace = namespace
		n.RoutingKind = RoutingKindStream
	}
}

// WithModule sets the module location and the startup reference of the hub factory
func WithModule(location, startupReference string) Option {
	return func(n *MeshNode) {
		n.ModuleLocation = location
		n.StartupReference = startupReference
		n.InstantiationKind = InstantiationKindHubConfiguration
	}
}

// WithStatic builds the hub from the compiled-in factory registered under startupReference
func WithStatic(startupReference string) Option {
	return func(n *MeshNode) {
		n.StartupReference = startupReference
		n.InstantiationKind = InstantiationKindStatic
	}
}

// WithKey overrides the derived key
func WithKey(key string) Option {
	return func(n *MeshNode) {
		n.Key = key
	}
}

// New creates a MeshNode for the given address type and id.
// The key defaults to the canonical form of the address.
func New(addressType, addressID string, opts ...Option) *MeshNode {
	n := &MeshNode{
		Key:         address.New(addressType, addressID).Key(),
		AddressType: addressType,
		AddressID:   addressID,
	}

	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Address returns the address the node is declared for
func (n *MeshNode) Address() address.Address {
	return address.New(n.AddressType, n.AddressID)
}

// StartupKey returns the key under which the hub factory is looked up in a module.
// It falls back to the node key when no startup reference is set.
func (n *MeshNode) StartupKey() string {
	if n.StartupReference != "" {
		return n.StartupReference
	}
	return n.Key
}

// Validate checks the node invariants
func (n *MeshNode) Validate() error {
	chain := validation.
		New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("key", n.Key)).
		AddValidator(validation.NewSegmentValidator("address type", n.AddressType, false)).
		AddValidator(validation.NewSegmentValidator("address id", n.AddressID, true))

	switch n.InstantiationKind {
	case InstantiationKindNone:
	case InstantiationKindHubConfiguration:
		chain.AddAssertion(n.StartupReference != "" || n.ModuleLocation != "",
			"a hub configuration node requires a startup reference or a module location")
	case InstantiationKindStatic:
		chain.AddAssertion(n.StartupReference != "", "a static node requires a startup reference")
	default:
		chain.AddAssertion(false, fmt.Sprintf("unknown instantiation kind %d", int(n.InstantiationKind)))
	}

	switch n.RoutingKind {
	case RoutingKindDirect:
	case RoutingKindStream:
		chain.AddAssertion(n.StreamProvider != "", "a stream routed node requires a stream provider")
	default:
		chain.AddAssertion(false, fmt.Sprintf("unknown routing kind %d", int(n.RoutingKind)))
	}

	if err := chain.Validate(); err != nil {
		return gerrors.NewErrInvalidNode(fmt.Errorf("(key=%s) %w", n.Key, err))
	}
	return nil
}

// RoutesByStream reports whether deliveries to the node go through its stream.
// The stream provider decides: a node naming a provider is stream routed whatever its RoutingKind says.
func (n *MeshNode) RoutesByStream() bool {
	return n.StreamProvider != ""
}

// Normalized returns a copy of the node whose RoutingKind agrees with RoutesByStream
func (n *MeshNode) Normalized() *MeshNode {
	clone := n.Clone()
	if clone.RoutesByStream() {
		clone.RoutingKind = RoutingKindStream
	}
	return clone
}

// Clone returns a copy of the node
func (n *MeshNode) Clone() *MeshNode {
	if n == nil {
		return nil
	}
	clone := *n
	return &clone
}

// StorageInfo is the storage view of a node, derived on demand
type StorageInfo struct {
	AddressID      string `json:"addressId"`
	ModuleName     string `json:"moduleName"`
	ModuleLocation string `json:"moduleLocation"`
	AddressType    string `json:"addressType"`
}

// StorageInfo derives the storage view of the node.
// The module name is the base name of the module location without its extension.
func (n *MeshNode) StorageInfo() StorageInfo {
	return StorageInfo{
		AddressID:      n.AddressID,
		ModuleName:     moduleName(n.ModuleLocation),
		ModuleLocation: n.ModuleLocation,
		AddressType:    n.AddressType,
	}
}

func moduleName(location string) string {
	if location == "" {
		return ""
	}

	base := filepath.Base(strings.TrimPrefix(location, builtinScheme))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
