/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"chainguard.dev/catalyst/agents/agenttrace"
)

// Tool types recorded in Component.Info.ToolType when Meta does not set one.
const (
	ToolTypeGeneric   = "generic"
	ToolTypeInstance  = "instance"
	ToolTypeContainer = "container"
)

const defaultVersion = "1.0.0"

// ToolContainer is implemented by instances that dispatch to a batch of tools.
type ToolContainer interface {
	Tools() []any
}

// GroundTruther is implemented by inputs that carry an expected answer.
type GroundTruther interface {
	GroundTruth() any
}

// Meta describes a wrapped function.
type Meta struct {
	// Name of the component. When empty it is derived from Instance or the function.
	Name string
	// ToolType overrides the derived tool type.
	ToolType string
	// Version defaults to 1.0.0.
	Version string
	// Instance is the receiver the function belongs to, if any.
	Instance any

	// Registered for the first invocation after wrapping.
	Tags     []string
	Metadata map[string]any
	Metrics  []agenttrace.Metric
	Feedback any
}

type identity struct {
	name     string
	toolType string
	version  string
	hashID   string
}

// resolveIdentity runs once per wrapped function.
func resolveIdentity(meta Meta, fn any) identity {
	id := identity{
		name:     meta.Name,
		toolType: meta.ToolType,
		version:  meta.Version,
	}

	derivedName, derivedType := deriveName(meta.Instance, fn)
	if id.name == "" {
		id.name = derivedName
	}
	if id.toolType == "" {
		id.toolType = derivedType
	}
	if id.version == "" {
		id.version = defaultVersion
	}
	id.hashID = HashID(fn)
	return id
}

func deriveName(instance, fn any) (string, string) {
	switch inst := instance.(type) {
	case nil:
		return FunctionName(fn), ToolTypeGeneric
	case ToolContainer:
		return ContainerName(inst), ToolTypeContainer
	default:
		return typeName(inst), ToolTypeInstance
	}
}

// ContainerName renders a container as Container(tool1,tool2,...) from the
// type names of the container and its tools.
func ContainerName(c ToolContainer) string {
	tools := c.Tools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, typeName(tool))
	}
	return fmt.Sprintf("%s(%s)", typeName(c), strings.Join(names, ","))
}

// FunctionName returns the package-qualified name of fn, without its import path.
func FunctionName(fn any) string {
	if fn == nil {
		return "unknown"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return typeName(fn)
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// HashID derives a stable identifier from the identity of fn: its symbol name
// and source position. It stays the same across runs of the same build.
func HashID(fn any) string {
	h := sha256.New()
	v := reflect.ValueOf(fn)
	if fn != nil && v.Kind() == reflect.Func {
		if f := runtime.FuncForPC(v.Pointer()); f != nil {
			file, line := f.FileLine(f.Entry())
			fmt.Fprintf(h, "%s\x00%s:%d", f.Name(), file, line)
			return hex.EncodeToString(h.Sum(nil))
		}
	}
	fmt.Fprintf(h, "%T", fn)
	return hex.EncodeToString(h.Sum(nil))
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
