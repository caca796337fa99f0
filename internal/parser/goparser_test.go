// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package widgets

import (
	"fmt"
	"context"
)

// Widget is exported.
type Widget struct {
	Name string
}

type unexportedHelper struct{}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) Describe(ctx context.Context) string {
	fmt.Println(ctx)
	return w.Name
}

func unexportedFunc() {}
`

func TestGoParserExtractsFunctionsModulesAndEdges(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse(context.Background(), []byte(sampleSource), "widgets/widget.go")
	require.NoError(t, err)

	var names []string
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	assert.ElementsMatch(t, []string{"NewWidget", "Describe", "unexportedFunc"}, names)

	require.Len(t, result.Modules, 1)
	mod := result.Modules[0]
	assert.Equal(t, "widgets/widget.go", mod.Path)
	assert.ElementsMatch(t, []string{"NewWidget", "Widget"}, mod.Exports)
	assert.ElementsMatch(t, []string{"fmt", "context"}, mod.Dependencies)

	var importTargets []string
	for _, e := range result.Edges {
		assert.Equal(t, "imports", e.EdgeType)
		importTargets = append(importTargets, e.ToName)
	}
	assert.ElementsMatch(t, []string{"fmt", "context"}, importTargets)
}

func TestGoParserMethodSignatureIncludesReceiver(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse(context.Background(), []byte(sampleSource), "widgets/widget.go")
	require.NoError(t, err)

	var describe *ParsedFunction
	for i := range result.Functions {
		if result.Functions[i].Name == "Describe" {
			describe = &result.Functions[i]
		}
	}
	require.NotNil(t, describe)
	assert.Contains(t, describe.Signature, "*Widget")
	assert.Greater(t, describe.EndLine, describe.StartLine)
}

func TestGoParserRejectsOversizedContent(t *testing.T) {
	p := &GoParser{maxFileSize: 8}
	_, err := p.Parse(context.Background(), []byte("package main\n"), "big.go")
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestGoParserRejectsInvalidUTF8(t *testing.T) {
	p := NewGoParser()
	_, err := p.Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.go")
	require.ErrorIs(t, err, ErrInvalidContent)
}

func TestGoParserHonorsCanceledContext(t *testing.T) {
	p := NewGoParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, []byte("package main\n"), "main.go")
	require.Error(t, err)
}

func TestGoParserToleratesSyntacticallyInvalidInput(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse(context.Background(), []byte("package main\nfunc ( {{{"), "broken.go")
	require.NoError(t, err, "a malformed file should produce a partial result, not an error")
	require.NotNil(t, result)
}

func TestGoParserHandlesMissingPackageClause(t *testing.T) {
	p := NewGoParser()
	src := "func orphan() {}\n"
	result, err := p.Parse(context.Background(), []byte(src), "orphan.go")
	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	assert.True(t, strings.HasSuffix(result.Modules[0].Path, "orphan.go"))
}
