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
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// DefaultMaxFileSize is the largest file GoParser will accept (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// ErrFileTooLarge is returned when content exceeds maxFileSize.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// ErrInvalidContent is returned for non-UTF-8 input.
var ErrInvalidContent = errors.New("content is not valid UTF-8")

// GoParser is the one concrete Parser librarian registers by default. It
// uses tree-sitter's Go grammar for direct node traversal rather than the
// query language, trading some verbosity for precise control over symbol
// extraction.
//
// Thread Safety: safe for concurrent use; each Parse call creates its own
// tree-sitter parser instance.
type GoParser struct {
	maxFileSize int64
}

// NewGoParser returns a GoParser with the default file-size limit.
func NewGoParser() *GoParser {
	return &GoParser{maxFileSize: DefaultMaxFileSize}
}

func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w", ErrInvalidContent)
	}

	sp := sitter.NewParser()
	sp.SetLanguage(golang.GetLanguage())

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ParseResult{}
	var exports []string
	var deps []string

	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		switch node.Type() {
		case "import_declaration":
			deps = append(deps, extractImports(node, content)...)
		case "function_declaration":
			if fn, ok := extractFunction(node, content); ok {
				result.Functions = append(result.Functions, fn)
				if isExported(fn.Name) {
					exports = append(exports, fn.Name)
				}
			}
		case "method_declaration":
			if fn, ok := extractMethod(node, content); ok {
				result.Functions = append(result.Functions, fn)
			}
		case "type_declaration":
			for _, name := range extractTypeNames(node, content) {
				if isExported(name) {
					exports = append(exports, name)
				}
			}
		}
	}

	result.Modules = append(result.Modules, ParsedModule{
		Path:         filePath,
		Exports:      exports,
		Dependencies: deps,
	})
	for _, d := range deps {
		result.Edges = append(result.Edges, ParsedEdge{
			FromName: filePath,
			ToName:   d,
			EdgeType: "imports",
		})
	}

	return result, nil
}

func isExported(name string) bool {
	r, _ := utf8DecodeFirst(name)
	return strings.ToUpper(string(r)) == string(r) && strings.ToLower(string(r)) != string(r)
}

func utf8DecodeFirst(s string) (rune, int) {
	for _, r := range s {
		return r, 1
	}
	return 0, 0
}

func extractImports(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "interpreted_string_literal" {
			path := strings.Trim(n.Content(content), `"`)
			out = append(out, path)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return out
}

func extractFunction(node *sitter.Node, content []byte) (ParsedFunction, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ParsedFunction{}, false
	}
	return ParsedFunction{
		Name:      nameNode.Content(content),
		Signature: signatureOf(node, content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}, true
}

func extractMethod(node *sitter.Node, content []byte) (ParsedFunction, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ParsedFunction{}, false
	}
	recv := node.ChildByFieldName("receiver")
	recvType := ""
	if recv != nil {
		recvType = strings.TrimSpace(recv.Content(content))
	}
	return ParsedFunction{
		Name:      nameNode.Content(content),
		Signature: recvType + " " + signatureOf(node, content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}, true
}

func signatureOf(node *sitter.Node, content []byte) string {
	params := node.ChildByFieldName("parameters")
	result := node.ChildByFieldName("result")
	sig := ""
	if params != nil {
		sig += params.Content(content)
	}
	if result != nil {
		sig += " " + result.Content(content)
	}
	return strings.TrimSpace(sig)
}

func extractTypeNames(node *sitter.Node, content []byte) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "type_spec" {
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				names = append(names, nameNode.Content(content))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return names
}
