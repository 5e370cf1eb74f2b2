// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInterfaceNotRegistered is returned when calling an interface the
// frontend has not registered.
var ErrInterfaceNotRegistered = errors.New("rpc interface not registered")

// Interface identifies a remote interface by name and version.
type Interface struct {
	Name    string
	Version string
}

func (i Interface) String() string { return i.Name + "@" + i.Version }

// The two read-oriented interfaces the viewer calls.
var (
	IModelReadRpcInterface = Interface{Name: "IModelReadRpcInterface", Version: "2.1.0"}
	IModelTileRpcInterface = Interface{Name: "IModelTileRpcInterface", Version: "2.1.0"}
)

// DefaultInterfaces is the set registered at startup.
func DefaultInterfaces() []Interface {
	return []Interface{IModelReadRpcInterface, IModelTileRpcInterface}
}

// Registry is the set of interfaces a Client may call.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Interface
}

// NewRegistry creates a registry holding ifaces.
func NewRegistry(ifaces ...Interface) *Registry {
	r := &Registry{byName: make(map[string]Interface)}
	for _, i := range ifaces {
		r.byName[i.Name] = i
	}
	return r
}

// Register adds iface. Registering another version of a known name fails.
func (r *Registry) Register(iface Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[iface.Name]; ok && existing.Version != iface.Version {
		return fmt.Errorf("rpc: %s already registered with version %s", iface.Name, existing.Version)
	}
	r.byName[iface.Name] = iface
	return nil
}

// Check returns ErrInterfaceNotRegistered unless iface is registered in the same version.
func (r *Registry) Check(iface Interface) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if existing, ok := r.byName[iface.Name]; ok && existing.Version == iface.Version {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInterfaceNotRegistered, iface)
}

// List returns the registered interfaces sorted by name.
func (r *Registry) List() []Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Interface, 0, len(r.byName))
	for _, i := range r.byName {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
