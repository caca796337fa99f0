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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupMissesUnregisteredLanguage(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("go")
	assert.False(t, ok)

	_, err := r.Parse(context.Background(), "go", nil, "main.go")
	require.Error(t, err)
}

func TestRegistryDispatchesToRegisteredParser(t *testing.T) {
	r := NewRegistry()
	r.Register("go", NewGoParser())

	p, ok := r.Lookup("go")
	require.True(t, ok)
	require.NotNil(t, p)

	result, err := r.Parse(context.Background(), "go", []byte("package main\n\nfunc main() {}\n"), "main.go")
	require.NoError(t, err)
	require.Len(t, result.Functions, 1)
	assert.Equal(t, "main", result.Functions[0].Name)
}

func TestRegistryRegisterOverwritesExisting(t *testing.T) {
	r := NewRegistry()
	first := NewGoParser()
	second := NewGoParser()

	r.Register("go", first)
	r.Register("go", second)

	got, ok := r.Lookup("go")
	require.True(t, ok)
	assert.Same(t, second, got)
}
