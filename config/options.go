// go-elrsbackpack
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-elrsbackpack.
//
// go-elrsbackpack is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-elrsbackpack is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-elrsbackpack; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package config

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Options holds host option values by name. It implements race.OptionLookup
// and may be changed while the controller runs.
type Options struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewOptions creates options from a map
func NewOptions(values map[string]string) *Options {
	o := &Options{values: make(map[string]string, len(values))}
	for k, v := range values {
		o.values[k] = v
	}
	return o
}

// UnmarshalYAML accepts any scalar value and stores its text.
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("options must be a mapping: %w", err)
	}

	values := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
			values[name] = ""
		case bool:
			if v {
				values[name] = "1"
			} else {
				values[name] = "0"
			}
		case map[string]interface{}, []interface{}:
			return fmt.Errorf("option %q must be a scalar", name)
		default:
			values[name] = fmt.Sprint(v)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = values
	return nil
}

// Option returns the value of name
func (o *Options) Option(name string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[name]
	return v, ok
}

// Set changes or adds an option
func (o *Options) Set(name, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.values == nil {
		o.values = make(map[string]string)
	}
	o.values[name] = value
}

// Names returns every option name in sorted order
func (o *Options) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.values))
	for name := range o.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
