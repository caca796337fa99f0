// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContractBasic(t *testing.T) {
	c := ParseContract("(a int, b string) (int, error)")
	assert.Equal(t, "int, error", c.Output)
	assert.Len(t, c.Inputs, 2)
	assert.Equal(t, "a", c.Inputs[0].Name)
	assert.Equal(t, "int", c.Inputs[0].Type)
	assert.Equal(t, "b", c.Inputs[1].Name)
	assert.Equal(t, "string", c.Inputs[1].Type)
}

func TestParseContractNestedTypes(t *testing.T) {
	c := ParseContract("(cb func(int) error, m map[string]int) error")
	assert.Len(t, c.Inputs, 2)
	assert.Equal(t, "cb", c.Inputs[0].Name)
	assert.Equal(t, "func(int) error", c.Inputs[0].Type)
	assert.Equal(t, "m", c.Inputs[1].Name)
}

func TestParseContractNoParams(t *testing.T) {
	c := ParseContract("() error")
	assert.Empty(t, c.Inputs)
	assert.Equal(t, "error", c.Output)
}

func TestAnalyzeQualityDetectsHighComplexity(t *testing.T) {
	src := "func f() { if a { } if b { } if c { } for i := 0; i < 10; i++ { } switch x { } }"
	q := AnalyzeQuality(src, false)
	assert.GreaterOrEqual(t, q.CyclomaticComplexity, 4)
	assert.Equal(t, 0.0, q.DocCoverage)
}

func TestAnalyzeQualityDocCoverage(t *testing.T) {
	q := AnalyzeQuality("func f() {}", true)
	assert.Equal(t, 1.0, q.DocCoverage)
}
